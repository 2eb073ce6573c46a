// Package config provides the configuration loader for memo.
package config

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

const (
	logFormatPretty = "pretty"
	logFormatJSON   = "json"
)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load resolves the configuration. An explicit path must exist; otherwise memo.yaml is
// searched from cwd upwards, and defaults rooted at cwd are used when none is found.
func (l *Loader) Load(cwd, path string) (*domain.Config, error) {
	if path == "" {
		found, ok := findConfiguration(cwd)
		if !ok {
			l.Logger.Debug("no config file found, using defaults", "cwd", cwd)
			return domain.DefaultConfig(filepath.Join(cwd, domain.DefaultRootDirName)), nil
		}
		path = found
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(cwd, path)
	}

	var memofile Memofile
	if err := readAndUnmarshalYAML(path, &memofile); err != nil {
		return nil, zerr.With(err, "path", path)
	}

	cfg, err := resolve(path, &memofile)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}

	l.Logger.Debug("loaded config", "path", path, "root", cfg.Root)
	return cfg, nil
}

func findConfiguration(cwd string) (string, bool) {
	currentDir := cwd
	for {
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, true
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			return "", false
		}
		currentDir = parentDir
	}
}

func resolve(configPath string, memofile *Memofile) (*domain.Config, error) {
	cfg := domain.DefaultConfig(resolveRoot(configPath, memofile.Root))
	cfg.Path = configPath

	switch mode := domain.LinkMode(memofile.Link); mode {
	case "":
	case domain.LinkAuto, domain.LinkSymlink, domain.LinkCopy:
		cfg.Link = mode
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrInvalidLinkMode, "unknown link mode"), "link", memofile.Link)
	}

	var err error
	if cfg.LockTimeout, err = parseDuration("lock.timeout", memofile.Lock.Timeout, cfg.LockTimeout); err != nil {
		return nil, err
	}
	if cfg.LockRetryDelay, err = parseDuration("lock.retry_delay", memofile.Lock.RetryDelay, cfg.LockRetryDelay); err != nil {
		return nil, err
	}

	switch memofile.Log.Format {
	case "", logFormatPretty:
	case logFormatJSON:
		cfg.JSONLogs = true
	default:
		return nil, zerr.With(
			zerr.Wrap(domain.ErrConfigParseFailed, "log.format must be 'pretty' or 'json'"),
			"format", memofile.Log.Format,
		)
	}

	cfg.Disabled = canonicalizeStrings(memofile.Disabled)
	return cfg, nil
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, zerr.With(errors.Join(domain.ErrConfigParseFailed, err), "field", field)
	}
	if d <= 0 {
		return 0, zerr.With(zerr.Wrap(domain.ErrConfigParseFailed, "duration must be positive"), "field", field)
	}
	return d, nil
}

func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Join(configDir, domain.DefaultRootDirName)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}

func canonicalizeStrings(strs []string) []string {
	if len(strs) == 0 {
		return nil
	}
	sorted := slices.Clone(strs)
	slices.Sort(sorted)
	return slices.Compact(sorted)
}

// readAndUnmarshalYAML reads a YAML file and unmarshals it into the target struct.
func readAndUnmarshalYAML[T any](configPath string, target *T) error {
	// #nosec G304 -- configPath is chosen by the user
	configFile, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return zerr.Wrap(domain.ErrConfigReadFailed, "config file does not exist")
		}
		return errors.Join(domain.ErrConfigReadFailed, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(configFile))
	decoder.KnownFields(true)
	if parseErr := decoder.Decode(target); parseErr != nil && !errors.Is(parseErr, io.EOF) {
		return errors.Join(domain.ErrConfigParseFailed, parseErr)
	}

	return nil
}
