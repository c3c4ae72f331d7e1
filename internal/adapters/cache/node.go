package cache

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/adapters/fetch" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
)

// NodeID is the unique identifier for the package cache Graft node.
const NodeID graft.ID = "adapter.cache"

// Opener opens the package cache for a set of settings. The caller closes the cache.
type Opener func(ctx context.Context, settings domain.Settings) (*Cache, error)

func init() {
	graft.Register(graft.Node[Opener]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fetch.NodeID},
		Run: func(ctx context.Context) (Opener, error) {
			downloader, err := graft.Dep[ports.Downloader](ctx)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context, settings domain.Settings) (*Cache, error) {
				return Open(ctx, settings.CacheDir, downloader, OptionsFromSettings(settings))
			}, nil
		},
	})
}
