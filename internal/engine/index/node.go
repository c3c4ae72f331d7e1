package index

import (
	"context"

	"github.com/grindlemire/graft"
)

// SpecCacheNodeID is the unique identifier for the shared spec cache Graft node.
const SpecCacheNodeID graft.ID = "engine.specs"

func init() {
	graft.Register(graft.Node[*SpecCache]{
		ID:        SpecCacheNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*SpecCache, error) {
			return NewSpecCache(DefaultSpecCacheSize), nil
		},
	})
}
