// Package app implements the application layer for memo.
package app

import (
	"context"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/memo/internal/adapters/fs"        //nolint:depguard // Wired in app layer
	"go.trai.ch/memo/internal/adapters/lock"      //nolint:depguard // Wired in app layer
	"go.trai.ch/memo/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/memo/internal/engine/session"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	executor     ports.Executor
	logger       ports.Logger
	store        ports.ArtifactStore
	hasher       ports.Hasher
	tracer       ports.Tracer

	registry *prometheus.Registry
	provider *sdktrace.TracerProvider
	config   *domain.Config
	manager  *session.Manager
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	executor ports.Executor,
	log ports.Logger,
	store ports.ArtifactStore,
	hasher ports.Hasher,
	tracer ports.Tracer,
) *App {
	return &App{
		configLoader: loader,
		executor:     executor,
		logger:       log,
		store:        store,
		hasher:       hasher,
		tracer:       tracer,
		registry:     prometheus.NewRegistry(),
	}
}

// GlobalOptions are the flags every command accepts. Non-empty values win over memo.yaml.
type GlobalOptions struct {
	ConfigPath string
	Root       string
	JSON       bool
	Verbose    bool
}

// logSettings is implemented by loggers whose format and level can change at runtime.
type logSettings interface {
	SetJSON(enable bool)
	SetVerbose(enable bool)
}

// Setup loads the configuration and prepares the cache. It must run before any
// other method.
func (a *App) Setup(opts GlobalOptions) error {
	cwd, err := os.Getwd()
	if err != nil {
		return zerr.Wrap(err, "failed to get working directory")
	}

	cfg, err := a.configLoader.Load(cwd, opts.ConfigPath)
	if err != nil {
		return zerr.Wrap(err, "failed to load configuration")
	}
	if opts.Root != "" {
		cfg.Root = opts.Root
	}
	cfg.JSONLogs = cfg.JSONLogs || opts.JSON

	if l, ok := a.logger.(logSettings); ok {
		l.SetJSON(cfg.JSONLogs)
		l.SetVerbose(opts.Verbose)
	}

	if err := a.store.SetRoot(cfg.Root); err != nil {
		return err
	}

	linker, err := fs.NewLinker(cfg.Link)
	if err != nil {
		return err
	}

	a.provider = setupOTel(telemetry.NewLogBridge(a.logger))

	overrides := session.NewOverrides()
	overrides.Disable(cfg.Disabled...)

	a.manager = session.NewManager(
		a.store,
		lock.NewFileLocker(cfg.LockTimeout, cfg.LockRetryDelay),
		linker,
		a.logger,
		a.tracer,
		session.WithMetrics(session.NewMetrics(a.registry)),
		session.WithOverrides(overrides),
	)
	a.config = cfg

	a.logger.Debug("cache ready", "root", cfg.Root, "link", linker.Name(), "config", cfg.Path)
	return nil
}

// Close flushes the tracer provider.
func (a *App) Close(ctx context.Context) error {
	if a.provider == nil {
		return nil
	}
	return a.provider.Shutdown(ctx)
}

// Config returns the configuration resolved by Setup.
func (a *App) Config() *domain.Config {
	return a.config
}

// RunOptions configuration for the Run method.
type RunOptions struct {
	Output      string
	Task        string
	CodeID      string
	CodePaths   []string
	Inputs      []string
	Command     []string
	MetricsFile string
	Stdout      io.Writer
}

// Run restores the output of a command from the cache, or runs the command and
// commits what it wrote. It reports whether the output was restored.
func (a *App) Run(ctx context.Context, opts RunOptions) (bool, error) {
	if a.manager == nil {
		return false, domain.ErrRootNotSet
	}

	inputs, err := ParseInputs(opts.Inputs)
	if err != nil {
		return false, err
	}

	codeID, err := a.codeIdentity(opts)
	if err != nil {
		return false, err
	}

	sess, err := a.manager.NewSession(opts.Output, codeID, inputs, opts.Task)
	if err != nil {
		return false, err
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	restored, err := sess.Run(ctx, func(ctx context.Context, dir string) error {
		a.logger.Info("computing", "output", opts.Output, "fingerprint", sess.Fingerprint().Short())
		return a.executor.Execute(ctx, domain.Command{
			Args: opts.Command,
			Dir:  dir,
			Env:  map[string]string{domain.OutputDirEnvVar: dir},
		}, stdout, stdout)
	})

	if opts.MetricsFile != "" {
		if werr := prometheus.WriteToTextfile(opts.MetricsFile, a.registry); werr != nil {
			a.logger.Warn("failed to write metrics", "path", opts.MetricsFile, "error", werr.Error())
		}
	}
	return restored, err
}

func (a *App) codeIdentity(opts RunOptions) (string, error) {
	switch {
	case opts.CodeID != "":
		return opts.CodeID, nil
	case len(opts.CodePaths) > 0:
		return a.hasher.CodeIdentity(opts.CodePaths...)
	default:
		return "", domain.ErrMissingCodeIdentity
	}
}

// ParseInputs turns key=value pairs into an input map. Values are YAML scalars or
// flow collections, so n=4 is an int and tags=[a,b] a list.
func ParseInputs(specs []string) (map[string]any, error) {
	inputs := make(map[string]any, len(specs))
	for _, spec := range specs {
		key, raw, ok := strings.Cut(spec, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidInputSpec, "missing key"), "input", spec)
		}
		if _, dup := inputs[key]; dup {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidInputSpec, "duplicate key"), "key", key)
		}

		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrInvalidInputSpec, err.Error()), "input", spec)
		}
		inputs[key] = value
	}
	return inputs, nil
}

// List returns every complete entry below the cache root.
func (a *App) List(ctx context.Context) ([]domain.EntryInfo, error) {
	return a.store.List(ctx)
}

// Show returns the manifest of one entry.
func (a *App) Show(output, fingerprint string) (*domain.Manifest, error) {
	return a.store.Manifest(output, domain.Fingerprint(fingerprint))
}

// VerifyResult is the outcome of re-hashing one entry.
type VerifyResult struct {
	Entry domain.EntryInfo
	Err   error
}

// Verify re-hashes every entry, or only those of output when it is not empty.
// It fails with domain.ErrEntryCorrupt if any entry no longer matches its manifest.
func (a *App) Verify(ctx context.Context, output string) ([]VerifyResult, error) {
	entries, err := a.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if output != "" {
		output = strings.TrimSuffix(output, "/")
		entries = slices.DeleteFunc(entries, func(e domain.EntryInfo) bool { return e.Output != output })
	}

	results := make([]VerifyResult, 0, len(entries))
	corrupt := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		verr := a.store.Verify(entry.Output, entry.Fingerprint)
		if verr != nil {
			corrupt++
		}
		results = append(results, VerifyResult{Entry: entry, Err: verr})
	}

	if corrupt > 0 {
		return results, zerr.With(zerr.Wrap(domain.ErrEntryCorrupt, "verification failed"), "corrupt", corrupt)
	}
	return results, nil
}

// Sweep reports reclaimable directories. Nothing is removed.
func (a *App) Sweep(ctx context.Context) (*domain.SweepReport, error) {
	return a.store.Sweep(ctx, nil)
}

// setupOTel configures the OpenTelemetry SDK so finished spans reach the logger.
func setupOTel(bridge *telemetry.LogBridge) *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(bridge),
	)

	// Tracers obtained from the global provider before this call delegate to tp.
	otel.SetTracerProvider(tp)
	return tp
}
