package solver

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/envy/internal/engine/index"
)

// NodeID is the unique identifier for the solver Graft node.
const NodeID graft.ID = "engine.solver"

func init() {
	graft.Register(graft.Node[*Solver]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{telemetry.TracerNodeID, index.SpecCacheNodeID},
		Run: func(ctx context.Context) (*Solver, error) {
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			specs, err := graft.Dep[*index.SpecCache](ctx)
			if err != nil {
				return nil, err
			}
			return New(tracer, specs), nil
		},
	})
}
