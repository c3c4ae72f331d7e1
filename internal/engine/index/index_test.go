package index_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/engine/index"
)

func loadFixture(t *testing.T) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "repodata.json"))
	require.NoError(t, err)
	return data
}

func TestParse(t *testing.T) {
	ch := domain.NewChannel("conda-forge", 0, "")
	ci, warnings, err := index.Parse(ch, "linux-64", loadFixture(t))
	require.NoError(t, err)

	assert.Len(t, warnings, 3)
	files := make([]string, 0, len(warnings))
	for _, w := range warnings {
		files = append(files, w.File)
		assert.Error(t, w.Err)
	}
	assert.ElementsMatch(t, []string{
		"broken-1.0-0.tar.bz2",
		"badspec-1.0-0.tar.bz2",
		"noname-1.0-0.tar.bz2",
	}, files)

	require.Len(t, ci.Records, 4)

	var python *domain.PackageRecord
	for _, r := range ci.Records {
		if r.Name.String() == "python" {
			python = r
		}
	}
	require.NotNil(t, python)
	assert.Equal(t, "python-3.11.0-h1_0.conda", python.FileName, ".conda wins over .tar.bz2")
	assert.Equal(t, "dd", python.SHA256)
	assert.Equal(t, "python", python.NoArch)
	assert.Equal(t, "a b", python.TrackFeatures)
	assert.Equal(t, "https://conda.anaconda.org/conda-forge/linux-64/python-3.11.0-h1_0.conda", python.URL)
	assert.Equal(t, "conda-forge/linux-64::python-3.11.0-h1_0", python.Identity())
}

func TestParse_ParsesDependencies(t *testing.T) {
	ch := domain.NewChannel("conda-forge", 0, "")
	ci, _, err := index.Parse(ch, "linux-64", loadFixture(t))
	require.NoError(t, err)

	for _, r := range ci.Records {
		assert.Len(t, r.DependSpecs, len(r.Depends), r.Identity())
		assert.Len(t, r.ConstrainSpecs, len(r.Constrains), r.Identity())
	}
}

func TestParse_BaseURL(t *testing.T) {
	raw := []byte(`{
		"info": {"subdir": "noarch", "base_url": "https://mirror.example.com/pkgs/"},
		"repodata_version": 2,
		"packages.conda": {"six-1.16.0-pyh_0.conda": {"name": "six", "version": "1.16.0", "build": "pyh_0", "build_number": 0, "depends": [], "noarch": true}}
	}`)
	ci, warnings, err := index.Parse(domain.NewChannel("conda-forge", 0, ""), "", raw)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	require.Len(t, ci.Records, 1)
	assert.Equal(t, "noarch", ci.Subdir)
	assert.Equal(t, "https://mirror.example.com/pkgs/six-1.16.0-pyh_0.conda", ci.Records[0].URL)
	assert.Equal(t, "generic", ci.Records[0].NoArch)
}

func TestParse_Corrupt(t *testing.T) {
	_, _, err := index.Parse(domain.NewChannel("conda-forge", 0, ""), "linux-64", []byte(`{"packages": [`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}

func channelIndex(channel string, priority int, records ...*domain.PackageRecord) *index.ChannelIndex {
	ch := domain.NewChannel(channel, priority, "")
	for _, r := range records {
		r.Channel = ch.URL
		r.Subdir = "linux-64"
	}
	return &index.ChannelIndex{Channel: ch, Subdir: "linux-64", Records: records}
}

func rec(name, version string, buildNumber uint64) *domain.PackageRecord {
	return &domain.PackageRecord{
		Name:        domain.NewPackageName(name),
		Version:     domain.MustParseVersion(version),
		Build:       "b" + version,
		BuildNumber: buildNumber,
		SHA256:      name + version,
	}
}

func TestIndex_MergeOrdering(t *testing.T) {
	ix := index.New(domain.PriorityFlexible)
	ix.Merge(channelIndex("conda-forge", 0, rec("numpy", "1.20", 0), rec("numpy", "1.24", 0), rec("numpy", "1.24", 2)), 0)
	ix.Merge(channelIndex("defaults", 1, rec("numpy", "1.25", 0), rec("zlib", "1.2", 0)), 1)

	bucket := ix.Records(domain.NewPackageName("numpy"))
	require.Len(t, bucket, 4)
	assert.Equal(t, "1.25", bucket[0].Version.String())
	assert.Equal(t, "1.24", bucket[1].Version.String())
	assert.Equal(t, uint64(2), bucket[1].BuildNumber)
	assert.Equal(t, "1.20", bucket[3].Version.String())

	assert.Equal(t, []domain.PackageName{domain.NewPackageName("numpy"), domain.NewPackageName("zlib")}, ix.Names())
	assert.Equal(t, 5, ix.Len())
	assert.Len(t, ix.All(), 5)
}

func TestIndex_StrictPriority(t *testing.T) {
	ix := index.New(domain.PriorityStrict)
	ix.Merge(channelIndex("defaults", 1, rec("numpy", "1.25", 0), rec("zlib", "1.2", 0)), 1)
	ix.Merge(channelIndex("conda-forge", 0, rec("numpy", "1.20", 0)), 0)
	ix.Merge(channelIndex("extra", 2, rec("numpy", "9.0", 0), rec("six", "1.16", 0)), 2)

	bucket := ix.Records(domain.NewPackageName("numpy"))
	require.Len(t, bucket, 1)
	assert.Equal(t, "1.20", bucket[0].Version.String())
	assert.Equal(t, 0, bucket[0].ChannelPriority)

	assert.Len(t, ix.Records(domain.NewPackageName("zlib")), 1)
	assert.Len(t, ix.Records(domain.NewPackageName("six")), 1)
}

func TestIndex_Find(t *testing.T) {
	ix := index.New(domain.PriorityDisabled)
	ix.Merge(channelIndex("conda-forge", 0, rec("numpy", "1.20", 0), rec("numpy", "1.24", 0)), 0)

	found := ix.Find(domain.MustParseMatchSpec("numpy<1.24"))
	require.Len(t, found, 1)
	assert.Equal(t, "1.20", found[0].Version.String())
	assert.Empty(t, ix.Find(domain.MustParseMatchSpec("scipy")))
}

func TestIndex_Fingerprint(t *testing.T) {
	build := func() *index.Index {
		ix := index.New(domain.PriorityStrict)
		ix.Merge(channelIndex("conda-forge", 0, rec("numpy", "1.20", 0), rec("zlib", "1.2", 0)), 0)
		return ix
	}
	a, b := build(), build()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.Merge(channelIndex("defaults", 1, rec("six", "1.16", 0)), 1)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}

func TestSpecCache(t *testing.T) {
	cache := index.NewSpecCache(2)
	a, err := cache.Parse("python >=3.11")
	require.NoError(t, err)
	b, err := cache.Parse("python >=3.11")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, cache.Len())

	_, err = cache.Parse(">=3")
	assert.ErrorIs(t, err, domain.ErrInvalidSpecSyntax)
	assert.Equal(t, 1, cache.Len())
}
