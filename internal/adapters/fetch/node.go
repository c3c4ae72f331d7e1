package fetch

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/core/ports"
)

// NodeID is the unique identifier for the downloader Graft node.
const NodeID graft.ID = "adapter.downloader"

func init() {
	graft.Register(graft.Node[ports.Downloader]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Downloader, error) {
			return New(), nil
		},
	})
}
