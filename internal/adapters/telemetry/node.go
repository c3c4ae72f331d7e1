package telemetry

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/adapters/detector" //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/envy/internal/adapters/logger"   //nolint:depguard // Wired in adapter wiring
	"go.trai.ch/envy/internal/core/ports"
)

const (
	// TracerNodeID is the unique identifier for the tracer Graft node.
	TracerNodeID graft.ID = "adapter.telemetry"
	// ReporterNodeID is the unique identifier for the event reporter Graft node.
	ReporterNodeID graft.ID = "adapter.reporter"
)

func init() {
	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Tracer, error) {
			return NewOTelTracer("envy"), nil
		},
	})

	graft.Register(graft.Node[ports.Reporter]{
		ID:        ReporterNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.Reporter, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			if detector.DetectEnvironment(os.Stderr) == detector.ModeProgress {
				return NewProgressReporter(os.Stderr, log), nil
			}
			return NewLogReporter(log), nil
		},
	})
}
