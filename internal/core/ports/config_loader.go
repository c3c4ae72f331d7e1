package ports

import "go.trai.ch/envy/internal/core/domain"

// ConfigLoader defines the interface for loading the environment configuration.
//
//go:generate mockgen -source=config_loader.go -destination=mocks/mock_config_loader.go -package=mocks
type ConfigLoader interface {
	// Load finds envy.yaml starting at cwd and walking up, and parses it.
	Load(cwd string) (*domain.Environment, error)
}
