package channel

import (
	"context"
	"path/filepath"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/adapters/fetch"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
)

// NodeID is the unique identifier for the channel source Graft node.
const NodeID graft.ID = "adapter.channel"

// Factory builds a RepodataSource for a set of settings.
type Factory func(settings domain.Settings) ports.RepodataSource

func init() {
	graft.Register(graft.Node[Factory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fetch.NodeID, logger.NodeID},
		Run: func(ctx context.Context) (Factory, error) {
			downloader, err := graft.Dep[ports.Downloader](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return func(settings domain.Settings) ports.RepodataSource {
				dir := filepath.Join(settings.CacheDir, domain.RepodataDirName)
				return NewSource(downloader, log, dir, settings.RepodataTTL)
			}, nil
		},
	})
}
