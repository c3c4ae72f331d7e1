package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/envy/internal/adapters/cache"     //nolint:depguard // Wired in app layer
	"go.trai.ch/envy/internal/adapters/channel"   //nolint:depguard // Wired in app layer
	"go.trai.ch/envy/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/envy/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/envy/internal/adapters/prefix"    //nolint:depguard // Wired in app layer
	"go.trai.ch/envy/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/envy/internal/adapters/virtual"   //nolint:depguard // Wired in app layer
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/envy/internal/engine/index"
	"go.trai.ch/envy/internal/engine/installer"
	"go.trai.ch/envy/internal/engine/solver"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			prefix.NodeID,
			virtual.NodeID,
			solver.NodeID,
			index.SpecCacheNodeID,
			channel.NodeID,
			cache.NodeID,
			installer.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.ConfigLoader](ctx)
	if err != nil {
		return nil, err
	}
	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}
	tracer, err := graft.Dep[ports.Tracer](ctx)
	if err != nil {
		return nil, err
	}
	store, err := graft.Dep[ports.PrefixStore](ctx)
	if err != nil {
		return nil, err
	}
	detector, err := graft.Dep[ports.VirtualDetector](ctx)
	if err != nil {
		return nil, err
	}
	slv, err := graft.Dep[*solver.Solver](ctx)
	if err != nil {
		return nil, err
	}
	specs, err := graft.Dep[*index.SpecCache](ctx)
	if err != nil {
		return nil, err
	}
	sources, err := graft.Dep[channel.Factory](ctx)
	if err != nil {
		return nil, err
	}
	openCache, err := graft.Dep[cache.Opener](ctx)
	if err != nil {
		return nil, err
	}
	installers, err := graft.Dep[installer.Factory](ctx)
	if err != nil {
		return nil, err
	}

	return New(loader, log, tracer, store, detector, slv, specs, sources, openCache, installers), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	app, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	return &Components{
		App:    app,
		Logger: log,
	}, nil
}
