// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/envy/internal/adapters/cache"
	_ "go.trai.ch/envy/internal/adapters/channel"
	_ "go.trai.ch/envy/internal/adapters/config"
	_ "go.trai.ch/envy/internal/adapters/fetch"
	_ "go.trai.ch/envy/internal/adapters/linker"
	_ "go.trai.ch/envy/internal/adapters/logger"
	_ "go.trai.ch/envy/internal/adapters/prefix"
	_ "go.trai.ch/envy/internal/adapters/telemetry"
	_ "go.trai.ch/envy/internal/adapters/virtual"
	// Register app and engine nodes.
	_ "go.trai.ch/envy/internal/app"
	_ "go.trai.ch/envy/internal/engine/index"
	_ "go.trai.ch/envy/internal/engine/installer"
	_ "go.trai.ch/envy/internal/engine/solver"
)
