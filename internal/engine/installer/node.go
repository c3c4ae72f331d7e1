package installer

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/adapters/linker"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/adapters/prefix"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/core/ports"
)

// NodeID is the unique identifier for the installer Graft node.
const NodeID graft.ID = "engine.installer"

// Factory builds an Installer on top of an opened package cache.
type Factory func(cache ports.PackageCache) *Installer

func init() {
	graft.Register(graft.Node[Factory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			prefix.NodeID,
			linker.NodeID,
			telemetry.ReporterNodeID,
			telemetry.TracerNodeID,
			logger.NodeID,
		},
		Run: func(ctx context.Context) (Factory, error) {
			store, err := graft.Dep[ports.PrefixStore](ctx)
			if err != nil {
				return nil, err
			}

			lnk, err := graft.Dep[ports.Linker](ctx)
			if err != nil {
				return nil, err
			}

			reporter, err := graft.Dep[ports.Reporter](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}

			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			return func(cache ports.PackageCache) *Installer {
				return New(cache, store, lnk, reporter, tracer, log)
			}, nil
		},
	})
}
