// Package shell provides a pty-backed executor for memoized commands.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"

	"github.com/creack/pty"
	"go.trai.ch/memo/internal/core/domain"
	"go.trai.ch/memo/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor implements ports.Executor using os/exec and a pty.
type Executor struct {
	logger ports.Logger
}

// NewExecutor creates a new Executor. Output lines are echoed to logger at debug level.
func NewExecutor(logger ports.Logger) *Executor {
	return &Executor{logger: logger}
}

// Execute runs cmd in a pty and waits for it to finish. The pty merges the
// command's stdout and stderr, so everything is written to stdout.
func (e *Executor) Execute(ctx context.Context, cmd domain.Command, stdout, _ io.Writer) error {
	if len(cmd.Args) == 0 {
		return zerr.Wrap(domain.ErrCommandFailed, "empty command")
	}

	name := cmd.Args[0]
	env := resolveEnvironment(os.Environ(), cmd.Env)

	executable := name
	if !filepath.IsAbs(name) && !strings.ContainsRune(name, filepath.Separator) {
		if lp, err := lookPath(name, env); err == nil {
			executable = lp
		}
	}

	c := exec.CommandContext(ctx, executable, cmd.Args[1:]...) //nolint:gosec // user provided command
	c.Args[0] = name
	c.Dir = cmd.Dir
	c.Env = env

	ptmx, err := pty.Start(c)
	if err != nil {
		return zerr.With(errors.Join(domain.ErrCommandFailed, err), "command", name)
	}

	lines := &logWriter{logger: e.logger}
	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		defer func() { _ = ptmx.Close() }()
		defer func() { _ = lines.Close() }()

		// Reading a pty after the child exits fails with EIO on Linux; that is the normal end.
		_, _ = io.Copy(io.MultiWriter(stdout, lines), ptmx)
	}()

	err = c.Wait()
	<-ioDone

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.With(errors.Join(domain.ErrCommandFailed, err), "command", name), "exit_code", exitCode)
	}

	return nil
}

// logWriter forwards complete lines to the logger.
type logWriter struct {
	logger ports.Logger
	buf    []byte
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	// PTYs may introduce \r.
	w.logger.Debug(strings.TrimSuffix(string(line), "\r"))
}

// allowListedEnvVars are the system variables a memoized command inherits. The
// rest of the environment is dropped so that undeclared inputs cannot leak in.
var allowListedEnvVars = map[string]struct{}{
	"HOME":   {},
	"LANG":   {},
	"PATH":   {},
	"TERM":   {},
	"TMPDIR": {},
	"USER":   {},
}

// resolveEnvironment keeps the allow-listed system variables and applies overrides.
// The result is sorted.
func resolveEnvironment(sysEnv []string, overrides map[string]string) []string {
	envMap := make(map[string]string, len(allowListedEnvVars)+len(overrides))
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if _, allowed := allowListedEnvVars[k]; allowed {
			envMap[k] = v
		}
	}
	maps.Copy(envMap, overrides)

	result := make([]string, 0, len(envMap))
	for _, k := range slices.Sorted(maps.Keys(envMap)) {
		result = append(result, k+"="+envMap[k])
	}
	return result
}

// lookPath searches for an executable in the PATH of env rather than of this process.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if v, ok := strings.CutPrefix(e, "PATH="); ok {
			path = v
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if err := findExecutable(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
