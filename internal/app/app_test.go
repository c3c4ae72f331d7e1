package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/envy/internal/adapters/cache"
	"go.trai.ch/envy/internal/adapters/telemetry"
	"go.trai.ch/envy/internal/app"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/envy/internal/core/ports/mocks"
	"go.trai.ch/envy/internal/engine/index"
	"go.trai.ch/envy/internal/engine/installer"
	"go.trai.ch/envy/internal/engine/solver"
	"go.trai.ch/zerr"
	"go.uber.org/mock/gomock"
)

const repodata = `{"info":{"subdir":"linux-64"},"packages":{` +
	`"a-1.0-0.tar.bz2":{"name":"a","version":"1.0","build":"0","build_number":0,"depends":[],"sha256":"a1"},` +
	`"a-2.0-0.tar.bz2":{"name":"a","version":"2.0","build":"0","build_number":0,"depends":["b"],"sha256":"a2"},` +
	`"b-1.0-0.tar.bz2":{"name":"b","version":"1.0","build":"0","build_number":0,"depends":[],"sha256":"b1"}}}`

type fixture struct {
	loader   *mocks.MockConfigLoader
	store    *mocks.MockPrefixStore
	detector *mocks.MockVirtualDetector
	source   *mocks.MockRepodataSource
	env      *domain.Environment
	opened   int
	app      *app.App
}

func newFixture(t *testing.T, deps ...string) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		loader:   mocks.NewMockConfigLoader(ctrl),
		store:    mocks.NewMockPrefixStore(ctrl),
		detector: mocks.NewMockVirtualDetector(ctrl),
		source:   mocks.NewMockRepodataSource(ctrl),
	}

	settings := domain.DefaultSettings()
	settings.CacheDir = t.TempDir()
	f.env = &domain.Environment{
		Name:            "demo",
		Channels:        []domain.Channel{domain.NewChannel("forge", 0, "")},
		ChannelPriority: domain.PriorityStrict,
		Platform:        domain.PlatformLinux64,
		Prefix:          t.TempDir(),
		Settings:        settings,
	}
	for _, d := range deps {
		f.env.Dependencies = append(f.env.Dependencies, domain.MustParseMatchSpec(d))
	}

	log := mocks.NewMockLogger(ctrl)
	log.EXPECT().Debug(gomock.Any()).AnyTimes()
	log.EXPECT().Warn(gomock.Any()).AnyTimes()
	log.EXPECT().Info(gomock.Any()).AnyTimes()

	f.source.EXPECT().Fetch(gomock.Any(), gomock.Any(), "linux-64").Return([]byte(repodata), nil).AnyTimes()
	f.source.EXPECT().Fetch(gomock.Any(), gomock.Any(), "noarch").Return(nil, nil).AnyTimes()
	f.detector.EXPECT().Detect(domain.PlatformLinux64).Return(nil, nil).AnyTimes()

	downloader := mocks.NewMockDownloader(ctrl)
	tracer := telemetry.NewNoOpTracer()
	specs := index.NewSpecCache(index.DefaultSpecCacheSize)

	f.app = app.New(
		f.loader,
		log,
		tracer,
		f.store,
		f.detector,
		solver.New(tracer, specs),
		specs,
		func(domain.Settings) ports.RepodataSource { return f.source },
		func(ctx context.Context, s domain.Settings) (*cache.Cache, error) {
			f.opened++
			return cache.Open(ctx, s.CacheDir, downloader, cache.OptionsFromSettings(s))
		},
		func(c ports.PackageCache) *installer.Installer {
			return installer.New(c, f.store, mocks.NewMockLinker(ctrl), telemetry.NoOpReporter{}, tracer, log)
		},
	)
	return f
}

func installedRecord(name, version string) *domain.PrefixRecord {
	return &domain.PrefixRecord{PackageRecord: domain.PackageRecord{
		Name:    domain.NewPackageName(name),
		Version: domain.MustParseVersion(version),
		Build:   "0",
		Subdir:  "linux-64",
		Channel: "forge",
		SHA256:  name + version,
	}}
}

func names(records []*domain.PackageRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.DistName())
	}
	return out
}

func TestApp_Solve(t *testing.T) {
	f := newFixture(t, "a")
	f.loader.EXPECT().Load("/work").Return(f.env, nil)
	f.store.EXPECT().Load(gomock.Any(), f.env.Prefix).Return(domain.PrefixState{}, nil)

	res, err := f.app.Solve(context.Background(), app.SolveOptions{Dir: "/work"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a-2.0-0", "b-1.0-0"}, names(res.Solution.Records))
	assert.Empty(t, res.Warnings)
	assert.Same(t, f.env, res.Environment)
}

func TestApp_SolveUnsatisfiable(t *testing.T) {
	f := newFixture(t, "a>=5")
	f.loader.EXPECT().Load(".").Return(f.env, nil)
	f.store.EXPECT().Load(gomock.Any(), f.env.Prefix).Return(domain.PrefixState{}, nil)

	_, err := f.app.Solve(context.Background(), app.SolveOptions{})
	require.ErrorIs(t, err, domain.ErrUnsatisfiable)

	var unsat *domain.UnsatisfiableError
	require.True(t, errors.As(err, &unsat))
	assert.Equal(t, []string{"a>=5"}, unsat.Conflict.Specs)
}

func TestApp_SolveConfigError(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".").Return(nil, zerr.Wrap(domain.ErrConfigNotFound, "no envy.yaml"))

	_, err := f.app.Solve(context.Background(), app.SolveOptions{})
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}

func TestApp_Plan(t *testing.T) {
	f := newFixture(t, "a>=2")
	f.loader.EXPECT().Load(".").Return(f.env, nil)
	f.store.EXPECT().Load(gomock.Any(), f.env.Prefix).Return(domain.PrefixState{
		Records: []*domain.PrefixRecord{installedRecord("a", "1.0")},
	}, nil)

	res, err := f.app.Plan(context.Background(), app.PlanOptions{})
	require.NoError(t, err)

	require.Len(t, res.Transaction.Operations, 2)
	assert.Equal(t, 1, res.Transaction.Stats.Changes)
	assert.Equal(t, 1, res.Transaction.Stats.Installs)
}

func TestApp_InstallDryRunSkipsCache(t *testing.T) {
	f := newFixture(t, "a")
	f.loader.EXPECT().Load(".").Return(f.env, nil)
	f.store.EXPECT().Load(gomock.Any(), f.env.Prefix).Return(domain.PrefixState{}, nil)

	res, err := f.app.Install(context.Background(), app.InstallOptions{DryRun: true})
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Len(t, res.Transaction.Operations, 2)
	assert.Zero(t, f.opened)
}

func TestApp_List(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".").Return(f.env, nil)
	issue := zerr.Wrap(domain.ErrPartialTransaction, "prefix holds an interrupted transaction")
	f.store.EXPECT().Load(gomock.Any(), f.env.Prefix).Return(domain.PrefixState{
		Records: []*domain.PrefixRecord{installedRecord("a", "1.0")},
		Issues:  []error{issue},
	}, nil)

	res, err := f.app.List(context.Background(), app.ListOptions{})
	require.NoError(t, err)
	require.Len(t, res.State.Records, 1)
	assert.ErrorIs(t, res.State.Issues[0], domain.ErrPartialTransaction)
}

func TestApp_CacheWithoutConfig(t *testing.T) {
	f := newFixture(t)
	t.Setenv(domain.CacheDirEnv, t.TempDir())
	f.loader.EXPECT().Load(".").Return(nil, zerr.Wrap(domain.ErrConfigNotFound, "no envy.yaml")).Times(2)

	entries, err := f.app.CacheList(context.Background(), app.CacheOptions{})
	require.NoError(t, err)
	assert.Empty(t, entries)

	report, err := f.app.CacheGC(context.Background(), app.CacheOptions{MaxAge: time.Hour})
	require.NoError(t, err)
	assert.Empty(t, report.Removed)
	assert.Equal(t, 2, f.opened)
}

func TestApp_CacheConfigParseError(t *testing.T) {
	f := newFixture(t)
	f.loader.EXPECT().Load(".").Return(nil, zerr.Wrap(domain.ErrConfigParseFailed, "bad yaml"))

	_, err := f.app.CacheList(context.Background(), app.CacheOptions{})
	require.ErrorIs(t, err, domain.ErrConfigParseFailed)
	assert.Zero(t, f.opened)
}
