// Package app implements the application layer for envy.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.trai.ch/envy/internal/adapters/cache"   //nolint:depguard // Wired in app layer
	"go.trai.ch/envy/internal/adapters/channel" //nolint:depguard // Wired in app layer
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/envy/internal/engine/index"
	"go.trai.ch/envy/internal/engine/installer"
	"go.trai.ch/envy/internal/engine/planner"
	"go.trai.ch/envy/internal/engine/solver"
	"go.trai.ch/zerr"
)

// App represents the main application logic.
type App struct {
	configLoader ports.ConfigLoader
	logger       ports.Logger
	tracer       ports.Tracer
	store        ports.PrefixStore
	detector     ports.VirtualDetector
	solver       *solver.Solver
	specs        *index.SpecCache
	sources      channel.Factory
	openCache    cache.Opener
	installers   installer.Factory
}

// New creates a new App instance.
func New(
	loader ports.ConfigLoader,
	log ports.Logger,
	tracer ports.Tracer,
	store ports.PrefixStore,
	detector ports.VirtualDetector,
	slv *solver.Solver,
	specs *index.SpecCache,
	sources channel.Factory,
	openCache cache.Opener,
	installers installer.Factory,
) *App {
	return &App{
		configLoader: loader,
		logger:       log,
		tracer:       tracer,
		store:        store,
		detector:     detector,
		solver:       slv,
		specs:        specs,
		sources:      sources,
		openCache:    openCache,
		installers:   installers,
	}
}

// ConfigureLogging switches the logger to verbose and/or JSON output when it supports it.
func (a *App) ConfigureLogging(verbose, json bool) {
	if l, ok := a.logger.(interface{ SetVerbose(bool) }); ok {
		l.SetVerbose(verbose)
	}
	if l, ok := a.logger.(interface{ SetJSON(bool) }); ok && json {
		l.SetJSON(true)
	}
}

// SolveOptions configuration for the Solve method.
type SolveOptions struct {
	// Dir is where the search for envy.yaml starts.
	Dir string
}

// SolveResult is the outcome of a solve.
type SolveResult struct {
	Environment *domain.Environment
	Solution    domain.Solution
	// Warnings are index entries skipped while loading the channels.
	Warnings []index.Warning
	// Installed is the current state of the prefix.
	Installed domain.PrefixState
}

// Solve loads envy.yaml and the channel indexes and resolves the dependencies.
func (a *App) Solve(ctx context.Context, opts SolveOptions) (*SolveResult, error) {
	env, err := a.configLoader.Load(dirOrDefault(opts.Dir))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}

	state, err := a.loadPrefix(ctx, env.Prefix)
	if err != nil {
		return nil, err
	}

	ix, warnings, err := a.loadIndex(ctx, env)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load channel indexes")
	}

	virtuals, err := a.detector.Detect(env.Platform)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to detect virtual packages")
	}

	solution, err := a.solver.Solve(ctx, domain.SolverProblem{
		Specs:     env.Dependencies,
		Available: ix.All(),
		Virtual:   virtuals,
		Installed: state.PackageRecords(),
		Priority:  ix.Mode(),
	})
	if err != nil {
		return nil, err
	}

	return &SolveResult{
		Environment: env,
		Solution:    solution,
		Warnings:    warnings,
		Installed:   state,
	}, nil
}

func (a *App) loadIndex(ctx context.Context, env *domain.Environment) (*index.Index, []index.Warning, error) {
	ctx, span := a.tracer.Start(ctx, "load",
		ports.WithAttribute("channels", len(env.Channels)),
		ports.WithAttribute("platform", string(env.Platform)),
	)
	defer span.End()

	loader := index.NewLoader(a.sources(env.Settings), index.NewParser(a.specs))
	ix, warnings, err := loader.Load(ctx, env.Channels, env.Platform, env.ChannelPriority)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	span.SetAttribute("records", ix.Len())

	for _, w := range warnings {
		a.logger.Debug(fmt.Sprintf("skipped index entry %s: %v", w.File, w.Err))
	}
	if len(warnings) > 0 {
		a.logger.Warn(fmt.Sprintf("skipped %d malformed index entries", len(warnings)))
	}
	a.logger.Debug(fmt.Sprintf("index %016x holds %d records", ix.Fingerprint(), ix.Len()))
	return ix, warnings, nil
}

func (a *App) loadPrefix(ctx context.Context, prefix string) (domain.PrefixState, error) {
	state, err := a.store.Load(ctx, prefix)
	if err != nil {
		return state, zerr.Wrap(err, "failed to read prefix")
	}
	for _, issue := range state.Issues {
		a.logger.Warn(issue.Error())
	}
	return state, nil
}

// PlanOptions configuration for the Plan method.
type PlanOptions struct {
	Dir string
	// Reinstall names packages to install again even when unchanged.
	Reinstall []string
}

// PlanResult is a solve plus the transaction that applies it.
type PlanResult struct {
	SolveResult
	Transaction domain.Transaction
}

// Plan solves and computes the transaction from the installed state to the solution.
func (a *App) Plan(ctx context.Context, opts PlanOptions) (*PlanResult, error) {
	solved, err := a.Solve(ctx, SolveOptions{Dir: opts.Dir})
	if err != nil {
		return nil, err
	}

	_, span := a.tracer.Start(ctx, "plan")
	defer span.End()

	tx := planner.Plan(solved.Installed.Records, solved.Solution, planner.Options{
		Reinstall: domain.NewPackageNames(opts.Reinstall),
		LinkType:  solved.Environment.Settings.LinkType,
	})
	span.SetAttribute("operations", len(tx.Operations))

	return &PlanResult{SolveResult: *solved, Transaction: tx}, nil
}

// InstallOptions configuration for the Install method.
type InstallOptions struct {
	Dir       string
	Reinstall []string
	// DryRun stops after planning.
	DryRun bool
}

// InstallResult is a plan plus the outcome of applying it.
type InstallResult struct {
	PlanResult
	Applied installer.Result
	DryRun  bool
}

// Install plans and applies the transaction to the prefix.
func (a *App) Install(ctx context.Context, opts InstallOptions) (*InstallResult, error) {
	plan, err := a.Plan(ctx, PlanOptions{Dir: opts.Dir, Reinstall: opts.Reinstall})
	if err != nil {
		return nil, err
	}

	result := &InstallResult{PlanResult: *plan, DryRun: opts.DryRun}
	if opts.DryRun || plan.Transaction.IsEmpty() {
		result.Applied.Transaction = plan.Transaction
		return result, nil
	}

	env := plan.Environment
	c, err := a.openCache(ctx, env.Settings)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := c.Close(); cerr != nil {
			a.logger.Warn("failed to close package cache: " + cerr.Error())
		}
	}()

	applyOpts := installer.OptionsFromSettings(env.Settings)
	applyOpts.RequestedSpecs = make(map[domain.PackageName]string, len(env.Dependencies))
	for _, spec := range env.Dependencies {
		applyOpts.RequestedSpecs[spec.Name] = spec.String()
	}

	applied, err := a.installers(c).Apply(ctx, env.Prefix, plan.Transaction, applyOpts)
	result.Applied = applied
	if err != nil {
		return result, zerr.Wrap(err, "install failed")
	}
	return result, nil
}

// ListOptions configuration for the List method.
type ListOptions struct {
	Dir string
}

// ListResult is the installed state of the environment's prefix.
type ListResult struct {
	Environment *domain.Environment
	State       domain.PrefixState
}

// List reports the packages installed in the environment's prefix.
func (a *App) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	env, err := a.configLoader.Load(dirOrDefault(opts.Dir))
	if err != nil {
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	state, err := a.loadPrefix(ctx, env.Prefix)
	if err != nil {
		return nil, err
	}
	return &ListResult{Environment: env, State: state}, nil
}

// CacheOptions configuration for the cache commands.
type CacheOptions struct {
	Dir string
	// MaxAge collects unused entries older than this. Zero keeps them.
	MaxAge time.Duration
	DryRun bool
}

// CacheList reports the package cache entries.
func (a *App) CacheList(ctx context.Context, opts CacheOptions) ([]domain.CacheEntry, error) {
	c, err := a.cacheFor(ctx, opts.Dir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Close() }()
	return c.List(ctx)
}

// CacheGC collects corrupt, orphaned and unused cache entries.
func (a *App) CacheGC(ctx context.Context, opts CacheOptions) (domain.GCReport, error) {
	c, err := a.cacheFor(ctx, opts.Dir)
	if err != nil {
		return domain.GCReport{}, err
	}
	defer func() { _ = c.Close() }()

	report, err := c.GC(ctx, domain.GCOptions{MaxAge: opts.MaxAge, DryRun: opts.DryRun})
	if err != nil {
		return report, zerr.Wrap(err, "cache collection failed")
	}
	return report, nil
}

// cacheFor opens the cache configured by envy.yaml, or the default cache
// when there is no envy.yaml.
func (a *App) cacheFor(ctx context.Context, dir string) (*cache.Cache, error) {
	settings := domain.DefaultSettings()
	env, err := a.configLoader.Load(dirOrDefault(dir))
	switch {
	case err == nil:
		settings = env.Settings
	case errors.Is(err, domain.ErrConfigNotFound):
	default:
		return nil, zerr.Wrap(err, "failed to load configuration")
	}
	return a.openCache(ctx, settings)
}

func dirOrDefault(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}
