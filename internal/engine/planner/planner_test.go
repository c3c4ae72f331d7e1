package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/engine/planner"
)

const forge = "https://conda.anaconda.org/conda-forge"

func rec(name, version string, deps ...string) *domain.PackageRecord {
	return &domain.PackageRecord{
		Name:    domain.NewPackageName(name),
		Version: domain.MustParseVersion(version),
		Build:   "0",
		Subdir:  "linux-64",
		Channel: forge,
		Depends: deps,
		SHA256:  name + "-" + version,
	}
}

func installed(r *domain.PackageRecord, files ...string) *domain.PrefixRecord {
	return &domain.PrefixRecord{
		PackageRecord: *r,
		Files:         files,
		Link:          &domain.LinkInfo{Type: domain.LinkHardlink},
	}
}

func solution(records ...*domain.PackageRecord) domain.Solution {
	domain.SortRecords(records)
	return domain.Solution{Records: records}
}

func describe(tx domain.Transaction) []string {
	out := make([]string, len(tx.Operations))
	for i, op := range tx.Operations {
		out[i] = domain.DescribeOperation(op)
	}
	return out
}

func TestPlan_VersionChange(t *testing.T) {
	current := []*domain.PrefixRecord{installed(rec("numpy", "1.20"))}
	target := solution(rec("numpy", "1.24"))

	tx := planner.Plan(current, target, planner.Options{})

	require.Len(t, tx.Operations, 1)
	change, ok := tx.Operations[0].(domain.Change)
	require.True(t, ok)
	assert.Equal(t, domain.ChangeVersion, change.Reason)
	assert.False(t, change.Reuse)
	assert.Equal(t, domain.Stats{LinkCount: 1, UnlinkCount: 1, Changes: 1}, tx.Stats)
}

func TestPlan_ResumesInterruptedInstall(t *testing.T) {
	all := []*domain.PackageRecord{
		rec("a", "1.0"), rec("b", "1.0"), rec("c", "1.0"), rec("d", "1.0"), rec("e", "1.0"),
	}
	target := solution(all...)

	first := planner.Plan(nil, target, planner.Options{})
	require.Len(t, first.Operations, 5)

	// Three of five installs made it into the prefix.
	var current []*domain.PrefixRecord
	for _, op := range first.Operations[:3] {
		current = append(current, installed(domain.Target(op)))
	}

	second := planner.Plan(current, target, planner.Options{})
	assert.Equal(t, domain.Stats{Installs: 2, LinkCount: 2}, second.Stats)
	for _, op := range second.Operations {
		_, ok := op.(domain.Install)
		assert.True(t, ok)
	}
	assert.Equal(t, first.Operations[3:], second.Operations)
}

func TestPlan_Idempotent(t *testing.T) {
	target := solution(rec("python", "3.11.0", "zlib"), rec("zlib", "1.3"))

	var current []*domain.PrefixRecord
	for _, op := range planner.Plan(nil, target, planner.Options{}).Operations {
		current = append(current, installed(domain.Target(op)))
	}

	tx := planner.Plan(current, target, planner.Options{LinkType: domain.LinkHardlink})
	assert.True(t, tx.IsEmpty())
}

func TestPlan_Ordering(t *testing.T) {
	current := []*domain.PrefixRecord{
		installed(rec("app", "1.0", "lib")),
		installed(rec("lib", "1.0", "base")),
		installed(rec("base", "1.0")),
		installed(rec("old-plugin", "1.0", "old-core")),
		installed(rec("old-core", "1.0")),
	}
	target := solution(
		rec("app", "2.0", "lib", "newdep"),
		rec("lib", "1.0", "base"),
		rec("base", "1.0"),
		rec("newdep", "1.0", "base"),
	)

	tx := planner.Plan(current, target, planner.Options{})

	assert.Equal(t, []string{
		"install conda-forge/linux-64::newdep-1.0-0",
		"change app-1.0-0 -> conda-forge/linux-64::app-2.0-0 (version)",
		"remove conda-forge/linux-64::old-plugin-1.0-0",
		"remove conda-forge/linux-64::old-core-1.0-0",
	}, describe(tx))
}

func TestPlan_CyclesBrokenByName(t *testing.T) {
	target := solution(rec("b", "1.0", "a"), rec("a", "1.0", "b"), rec("c", "1.0", "a"))

	tx := planner.Plan(nil, target, planner.Options{})
	assert.Equal(t, []string{
		"install conda-forge/linux-64::a-1.0-0",
		"install conda-forge/linux-64::b-1.0-0",
		"install conda-forge/linux-64::c-1.0-0",
	}, describe(tx))
}

func TestPlan_ChangeReasons(t *testing.T) {
	base := rec("zlib", "1.3")

	rebuilt := rec("zlib", "1.3")
	rebuilt.Build = "1"
	rebuilt.BuildNumber = 1
	rebuilt.SHA256 = "other"

	mirrored := rec("zlib", "1.3")
	mirrored.Channel = "https://mirror.example.com/main"

	tests := []struct {
		name   string
		to     *domain.PackageRecord
		reason domain.ChangeReason
		reuse  bool
	}{
		{name: "build", to: rebuilt, reason: domain.ChangeBuild},
		{name: "channel with same content", to: mirrored, reason: domain.ChangeChannel, reuse: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := planner.Plan([]*domain.PrefixRecord{installed(base)}, solution(tt.to), planner.Options{})
			require.Len(t, tx.Operations, 1)
			change, ok := tx.Operations[0].(domain.Change)
			require.True(t, ok)
			assert.Equal(t, tt.reason, change.Reason)
			assert.Equal(t, tt.reuse, change.Reuse)
		})
	}
}

func TestPlan_Reinstall(t *testing.T) {
	zlib := rec("zlib", "1.3")

	tests := []struct {
		name    string
		current *domain.PrefixRecord
		opts    planner.Options
		reason  domain.ReinstallReason
	}{
		{
			name:    "requested",
			current: installed(zlib),
			opts:    planner.Options{Reinstall: []domain.PackageName{zlib.Name}},
			reason:  domain.ReinstallRequested,
		},
		{
			name: "broken",
			current: func() *domain.PrefixRecord {
				r := installed(zlib)
				r.Broken = true
				return r
			}(),
			reason: domain.ReinstallBroken,
		},
		{
			name:    "link type",
			current: installed(zlib),
			opts:    planner.Options{LinkType: domain.LinkCopy},
			reason:  domain.ReinstallLinkType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := planner.Plan([]*domain.PrefixRecord{tt.current}, solution(zlib), tt.opts)
			require.Len(t, tx.Operations, 1)
			op, ok := tx.Operations[0].(domain.Reinstall)
			require.True(t, ok)
			assert.Equal(t, tt.reason, op.Reason)
			assert.Same(t, tt.current, op.From)
		})
	}
}

func TestSequence_MovesCollidingRemovals(t *testing.T) {
	oldTool := installed(rec("old-tool", "1.0"), "bin/tool", "share/old.txt")
	unrelated := installed(rec("leftover", "1.0"), "share/leftover.txt")
	current := []*domain.PrefixRecord{oldTool, unrelated}
	target := solution(rec("base", "1.0"), rec("new-tool", "1.0"))

	tx := planner.Plan(current, target, planner.Options{})
	require.Equal(t, []string{
		"install conda-forge/linux-64::base-1.0-0",
		"install conda-forge/linux-64::new-tool-1.0-0",
		"remove conda-forge/linux-64::old-tool-1.0-0",
		"remove conda-forge/linux-64::leftover-1.0-0",
	}, describe(tx))

	sequenced := planner.Sequence(tx, map[string][]string{
		"base":     {"lib/libbase.so"},
		"new-tool": {"bin/tool"},
	})

	assert.Equal(t, tx.ID, sequenced.ID)
	assert.Equal(t, []string{
		"install conda-forge/linux-64::base-1.0-0",
		"remove conda-forge/linux-64::old-tool-1.0-0",
		"install conda-forge/linux-64::new-tool-1.0-0",
		"remove conda-forge/linux-64::leftover-1.0-0",
	}, describe(sequenced))
}

func TestRecordPaths(t *testing.T) {
	r := installed(rec("a", "1.0"), "legacy")
	assert.Equal(t, []string{"legacy"}, planner.RecordPaths(r))

	r.PathsData.Paths = []domain.PathEntry{{Path: "bin/a"}, {Path: "lib/a.so"}}
	assert.Equal(t, []string{"bin/a", "lib/a.so"}, planner.RecordPaths(r))
	assert.Nil(t, planner.RecordPaths(nil))
}
