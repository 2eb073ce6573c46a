package config

// Memofile represents the structure of the memo.yaml configuration file.
type Memofile struct {
	Root     string   `yaml:"root"`
	Link     string   `yaml:"link"`
	Disabled []string `yaml:"disabled"`
	Lock     LockDTO  `yaml:"lock"`
	Log      LogDTO   `yaml:"log"`
}

// LockDTO configures fingerprint locking. Durations use time.ParseDuration syntax.
type LockDTO struct {
	Timeout    string `yaml:"timeout"`
	RetryDelay string `yaml:"retry_delay"`
}

// LogDTO configures log output.
type LogDTO struct {
	Format string `yaml:"format"`
}
