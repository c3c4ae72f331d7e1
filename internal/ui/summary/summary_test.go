package summary_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/engine/installer"
	"go.trai.ch/envy/internal/ui/summary"
)

const forge = "https://conda.anaconda.org/conda-forge"

func rec(name, version, build, subdir string) *domain.PackageRecord {
	return &domain.PackageRecord{
		Name:    domain.NewPackageName(name),
		Version: domain.MustParseVersion(version),
		Build:   build,
		Subdir:  subdir,
		Channel: forge,
	}
}

func installed(name, version, build string) *domain.PrefixRecord {
	return &domain.PrefixRecord{PackageRecord: *rec(name, version, build, "linux-64")}
}

func newPrinter(t *testing.T) (*summary.Printer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	return summary.New(&buf), &buf
}

func TestPrinter_Solution(t *testing.T) {
	p, buf := newPrinter(t)

	env := &domain.Environment{Name: "demo", Platform: domain.PlatformLinux64}
	p.Solution(env, domain.Solution{
		Records: []*domain.PackageRecord{
			rec("numpy", "1.26.4", "py312_0", "linux-64"),
			rec("python", "3.12.1", "h1_0", "linux-64"),
			rec("tzdata", "2024a", "h0", "noarch"),
		},
		Virtual: []*domain.PackageRecord{
			{Name: domain.NewPackageName("__glibc"), Version: domain.MustParseVersion("2.35"), Build: "0"},
		},
	})

	goldie.New(t).Assert(t, "solution", buf.Bytes())
}

func TestPrinter_Transaction(t *testing.T) {
	p, buf := newPrinter(t)

	to := rec("numpy", "1.26.4", "py312_0", "linux-64")
	to.Size = 15_000_000
	python := rec("python", "3.12.1", "h1_0", "linux-64")
	python.Size = 30_000_000
	openssl := rec("openssl", "3.2.0", "h0", "linux-64")
	openssl.Size = 3_000_000

	p.Transaction(domain.NewTransaction([]domain.Operation{
		domain.Change{From: installed("numpy", "1.25.0", "py311_0"), To: to, Reason: domain.ChangeVersion | domain.ChangeBuild},
		domain.Install{Record: python},
		domain.Remove{Record: installed("tzdata", "2023c", "h0")},
		domain.Reinstall{Record: openssl, From: installed("openssl", "3.2.0", "h0"), Reason: domain.ReinstallBroken},
	}))

	goldie.New(t).Assert(t, "transaction", buf.Bytes())
}

func TestPrinter_EmptyTransaction(t *testing.T) {
	p, buf := newPrinter(t)
	p.Transaction(domain.NewTransaction(nil))
	goldie.New(t).Assert(t, "transaction_empty", buf.Bytes())
}

func TestPrinter_Applied(t *testing.T) {
	p, buf := newPrinter(t)

	p.Applied(installer.Result{
		Transaction: domain.NewTransaction([]domain.Operation{domain.Install{Record: rec("a", "1.0", "0", "linux-64")}}),
		Linked:      3,
		Unlinked:    1,
		Clobbered:   map[string][]string{"bin/tool": {"a", "b"}},
	}, "/opt/env")

	goldie.New(t).Assert(t, "applied", buf.Bytes())
}

func TestPrinter_Records(t *testing.T) {
	p, buf := newPrinter(t)

	broken := installed("bb", "2.0", "1")
	broken.Broken = true
	p.Records("/opt/env", domain.PrefixState{
		Records: []*domain.PrefixRecord{installed("a", "1.0", "0"), broken},
		Issues:  []error{errors.New("prefix holds an interrupted transaction")},
	})

	goldie.New(t).Assert(t, "records", buf.Bytes())
}

func TestPrinter_CacheEntries(t *testing.T) {
	p, buf := newPrinter(t)
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	p.SetNow(func() time.Time { return now })

	p.CacheEntries([]domain.CacheEntry{
		{
			FileName: "numpy-1.26.4-py312_0.conda",
			State:    domain.CacheValid,
			Size:     8_000_000,
			LastUsed: now.Add(-2 * time.Hour),
		},
		{
			FileName: "python-3.12.1-h1_0.conda",
			State:    domain.CacheValid,
			Size:     30_000_000,
			LastUsed: now.Add(-72 * time.Hour),
			RefCount: 2,
		},
	})

	goldie.New(t).Assert(t, "cache_entries", buf.Bytes())
}

func TestPrinter_GCReport(t *testing.T) {
	p, buf := newPrinter(t)
	p.GCReport(domain.GCReport{
		Removed:    []string{"sha256:aa", "md5:bb"},
		FreedBytes: 1500,
		TempFiles:  1,
	}, true)
	goldie.New(t).Assert(t, "gc_report", buf.Bytes())
}

func TestPrinter_Conflict(t *testing.T) {
	p, buf := newPrinter(t)
	p.Conflict(domain.Conflict{
		Specs: []string{"a>=2", "b<1"},
		Lines: []string{"a 2.0 requires b >=1", "b<1 is requested"},
	})
	goldie.New(t).Assert(t, "conflict", buf.Bytes())
}
