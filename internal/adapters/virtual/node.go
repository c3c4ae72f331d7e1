package virtual

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/core/ports"
)

// NodeID is the unique identifier for the virtual package detector Graft node.
const NodeID graft.ID = "adapter.virtual"

func init() {
	graft.Register(graft.Node[ports.VirtualDetector]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.VirtualDetector, error) {
			return New(), nil
		},
	})
}
