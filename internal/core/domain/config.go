package domain

import "time"

// LinkMode selects how entries are mirrored into output locations.
type LinkMode string

const (
	// LinkAuto uses symlinks and falls back to copies where links are unavailable.
	LinkAuto LinkMode = "auto"
	// LinkSymlink always uses symlinks.
	LinkSymlink LinkMode = "symlink"
	// LinkCopy always copies.
	LinkCopy LinkMode = "copy"
)

const (
	// DefaultLockTimeout bounds how long a commit waits for a fingerprint lock.
	DefaultLockTimeout = 10 * time.Minute

	// DefaultLockRetryDelay is the polling interval while a lock is held elsewhere.
	DefaultLockRetryDelay = 50 * time.Millisecond
)

// Config is the resolved cache configuration.
type Config struct {
	// Root is the absolute cache root.
	Root string
	// Path is the config file the values were read from, empty for defaults.
	Path string

	LockTimeout    time.Duration
	LockRetryDelay time.Duration
	Link           LinkMode
	Disabled       []string
	JSONLogs       bool
}

// DefaultConfig returns the configuration used when no memo.yaml exists.
func DefaultConfig(root string) *Config {
	return &Config{
		Root:           root,
		LockTimeout:    DefaultLockTimeout,
		LockRetryDelay: DefaultLockRetryDelay,
		Link:           LinkAuto,
	}
}
