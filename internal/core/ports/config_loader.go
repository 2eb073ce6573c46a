package ports

import "go.trai.ch/memo/internal/core/domain"

// ConfigLoader defines the interface for loading the cache configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load reads the configuration. An explicit path wins; otherwise memo.yaml is searched
	// from cwd upwards and defaults are returned when none exists.
	Load(cwd, path string) (*domain.Config, error)
}
