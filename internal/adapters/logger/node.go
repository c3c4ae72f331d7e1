package logger

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/core/ports"
)

// NodeID is the unique identifier for the logger Graft node.
const NodeID graft.ID = "adapter.logger"

// FormatEnv selects JSON output when set to "json".
const FormatEnv = "ENVY_LOG_FORMAT"

func init() {
	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Logger, error) {
			l := New()
			if os.Getenv(FormatEnv) == "json" {
				l.SetJSON(true)
			}
			return l, nil
		},
	})
}
