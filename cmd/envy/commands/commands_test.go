package commands_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/envy/cmd/envy/commands"
	"go.trai.ch/envy/internal/app"
	"go.trai.ch/envy/internal/build"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/engine/installer"
)

type mockApp struct {
	verbose, json bool

	solveFunc     func(ctx context.Context, opts app.SolveOptions) (*app.SolveResult, error)
	planFunc      func(ctx context.Context, opts app.PlanOptions) (*app.PlanResult, error)
	installFunc   func(ctx context.Context, opts app.InstallOptions) (*app.InstallResult, error)
	listFunc      func(ctx context.Context, opts app.ListOptions) (*app.ListResult, error)
	cacheListFunc func(ctx context.Context, opts app.CacheOptions) ([]domain.CacheEntry, error)
	cacheGCFunc   func(ctx context.Context, opts app.CacheOptions) (domain.GCReport, error)
}

func (m *mockApp) ConfigureLogging(verbose, json bool) {
	m.verbose, m.json = verbose, json
}

func (m *mockApp) Solve(ctx context.Context, opts app.SolveOptions) (*app.SolveResult, error) {
	return m.solveFunc(ctx, opts)
}

func (m *mockApp) Plan(ctx context.Context, opts app.PlanOptions) (*app.PlanResult, error) {
	return m.planFunc(ctx, opts)
}

func (m *mockApp) Install(ctx context.Context, opts app.InstallOptions) (*app.InstallResult, error) {
	return m.installFunc(ctx, opts)
}

func (m *mockApp) List(ctx context.Context, opts app.ListOptions) (*app.ListResult, error) {
	return m.listFunc(ctx, opts)
}

func (m *mockApp) CacheList(ctx context.Context, opts app.CacheOptions) ([]domain.CacheEntry, error) {
	return m.cacheListFunc(ctx, opts)
}

func (m *mockApp) CacheGC(ctx context.Context, opts app.CacheOptions) (domain.GCReport, error) {
	return m.cacheGCFunc(ctx, opts)
}

var env = &domain.Environment{Name: "demo", Platform: domain.PlatformLinux64, Prefix: "/opt/env"}

func record(name, version string) *domain.PackageRecord {
	return &domain.PackageRecord{
		Name:    domain.NewPackageName(name),
		Version: domain.MustParseVersion(version),
		Build:   "0",
		Subdir:  "linux-64",
		Channel: "conda-forge",
	}
}

func execute(t *testing.T, a commands.Application, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	cli := commands.New(a)
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cli.SetOutput(out, errOut)
	cli.SetArgs(args)
	err := cli.Execute(context.Background())
	return out.String(), errOut.String(), err
}

func TestCommands_Solve(t *testing.T) {
	t.Run("prints the solution", func(t *testing.T) {
		var captured app.SolveOptions
		mock := &mockApp{
			solveFunc: func(_ context.Context, opts app.SolveOptions) (*app.SolveResult, error) {
				captured = opts
				return &app.SolveResult{
					Environment: env,
					Solution:    domain.Solution{Records: []*domain.PackageRecord{record("numpy", "1.26.4")}},
				}, nil
			},
		}

		out, _, err := execute(t, mock, "solve", "-C", "/work", "--verbose")
		require.NoError(t, err)
		assert.Equal(t, "/work", captured.Dir)
		assert.True(t, mock.verbose)
		assert.False(t, mock.json)
		assert.Contains(t, out, "numpy  1.26.4  0  conda-forge/linux-64")
	})

	t.Run("explains conflicts", func(t *testing.T) {
		mock := &mockApp{
			solveFunc: func(_ context.Context, _ app.SolveOptions) (*app.SolveResult, error) {
				return nil, &domain.UnsatisfiableError{Conflict: domain.Conflict{
					Specs: []string{"a>=2"},
					Lines: []string{"nothing provides a >=2"},
				}}
			},
		}

		_, errOut, err := execute(t, mock, "solve")
		require.ErrorIs(t, err, domain.ErrUnsatisfiable)
		assert.Contains(t, errOut, "Cannot satisfy a>=2")
		assert.Contains(t, errOut, "nothing provides a >=2")
	})
}

func TestCommands_Plan(t *testing.T) {
	var captured app.PlanOptions
	mock := &mockApp{
		planFunc: func(_ context.Context, opts app.PlanOptions) (*app.PlanResult, error) {
			captured = opts
			return &app.PlanResult{
				SolveResult: app.SolveResult{Environment: env},
				Transaction: domain.NewTransaction([]domain.Operation{domain.Install{Record: record("a", "1.0")}}),
			}, nil
		},
	}

	out, _, err := execute(t, mock, "plan", "--reinstall", "a,b", "--log-json")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, captured.Reinstall)
	assert.True(t, mock.json)
	assert.Contains(t, out, "Transaction: 1 install")
	assert.Contains(t, out, "+ a 1.0-0")
}

func TestCommands_Install(t *testing.T) {
	t.Run("dry run shows the transaction", func(t *testing.T) {
		var captured app.InstallOptions
		tx := domain.NewTransaction([]domain.Operation{domain.Install{Record: record("a", "1.0")}})
		mock := &mockApp{
			installFunc: func(_ context.Context, opts app.InstallOptions) (*app.InstallResult, error) {
				captured = opts
				return &app.InstallResult{
					PlanResult: app.PlanResult{SolveResult: app.SolveResult{Environment: env}, Transaction: tx},
					DryRun:     true,
				}, nil
			},
		}

		out, _, err := execute(t, mock, "install", "--dry-run")
		require.NoError(t, err)
		assert.True(t, captured.DryRun)
		assert.Contains(t, out, "+ a 1.0-0")
	})

	t.Run("reports the applied transaction", func(t *testing.T) {
		tx := domain.NewTransaction([]domain.Operation{domain.Install{Record: record("a", "1.0")}})
		mock := &mockApp{
			installFunc: func(_ context.Context, _ app.InstallOptions) (*app.InstallResult, error) {
				return &app.InstallResult{
					PlanResult: app.PlanResult{SolveResult: app.SolveResult{Environment: env}, Transaction: tx},
					Applied:    installer.Result{Transaction: tx, Linked: 1},
				}, nil
			},
		}

		out, _, err := execute(t, mock, "install")
		require.NoError(t, err)
		assert.Contains(t, out, "Linked 1 package, unlinked 0 packages in /opt/env")
	})

	t.Run("returns install errors", func(t *testing.T) {
		mock := &mockApp{
			installFunc: func(_ context.Context, _ app.InstallOptions) (*app.InstallResult, error) {
				return nil, domain.ErrPrefixLocked
			},
		}

		_, _, err := execute(t, mock, "install")
		require.ErrorIs(t, err, domain.ErrPrefixLocked)
	})
}

func TestCommands_List(t *testing.T) {
	mock := &mockApp{
		listFunc: func(_ context.Context, _ app.ListOptions) (*app.ListResult, error) {
			return &app.ListResult{
				Environment: env,
				State: domain.PrefixState{Records: []*domain.PrefixRecord{
					{PackageRecord: *record("a", "1.0")},
				}},
			}, nil
		},
	}

	out, _, err := execute(t, mock, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "/opt/env 1 package")
	assert.Contains(t, out, "a  1.0  0  conda-forge/linux-64")
}

func TestCommands_Cache(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		mock := &mockApp{
			cacheListFunc: func(_ context.Context, _ app.CacheOptions) ([]domain.CacheEntry, error) {
				return []domain.CacheEntry{{FileName: "a-1.0-0.conda", State: domain.CacheValid, Size: 512, LastUsed: time.Now()}}, nil
			},
		}

		out, _, err := execute(t, mock, "cache", "list")
		require.NoError(t, err)
		assert.Contains(t, out, "Package cache: 1 entry, 512 B")
		assert.Contains(t, out, "a-1.0-0.conda")
	})

	t.Run("gc wires flags", func(t *testing.T) {
		var captured app.CacheOptions
		mock := &mockApp{
			cacheGCFunc: func(_ context.Context, opts app.CacheOptions) (domain.GCReport, error) {
				captured = opts
				return domain.GCReport{Removed: []string{"sha256:aa"}, FreedBytes: 2048}, nil
			},
		}

		out, _, err := execute(t, mock, "cache", "gc", "--max-age", "720h", "--dry-run")
		require.NoError(t, err)
		assert.Equal(t, 720*time.Hour, captured.MaxAge)
		assert.True(t, captured.DryRun)
		assert.Contains(t, out, "Would remove 1 entry, freeing 2.0 kB")
	})

	t.Run("gc errors", func(t *testing.T) {
		mock := &mockApp{
			cacheGCFunc: func(_ context.Context, _ app.CacheOptions) (domain.GCReport, error) {
				return domain.GCReport{}, errors.New("simulated error")
			},
		}

		_, _, err := execute(t, mock, "cache", "gc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "simulated error")
	})
}

func TestCommands_Version(t *testing.T) {
	out, _, err := execute(t, &mockApp{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, build.Version)
}
