package ports

import (
	"context"

	"go.trai.ch/envy/internal/core/domain"
)

// RepodataSource provides the raw index document of one channel subdir.
//
//go:generate mockgen -source=repodata.go -destination=mocks/mock_repodata.go -package=mocks
type RepodataSource interface {
	// Fetch returns the repodata.json bytes of channel/subdir.
	// A subdir the channel does not carry yields (nil, nil).
	Fetch(ctx context.Context, channel domain.Channel, subdir string) ([]byte, error)
}
