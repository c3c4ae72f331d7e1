package prefix

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/core/ports"
)

// NodeID is the unique identifier for the prefix store Graft node.
const NodeID graft.ID = "adapter.prefix"

func init() {
	graft.Register(graft.Node[ports.PrefixStore]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.PrefixStore, error) {
			return New(), nil
		},
	})
}
