package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/envy/internal/core/domain"
)

func record(name, version, build string, buildNumber uint64) *domain.PackageRecord {
	return &domain.PackageRecord{
		Name:        domain.NewPackageName(name),
		Version:     domain.MustParseVersion(version),
		Build:       build,
		BuildNumber: buildNumber,
		Subdir:      "linux-64",
		Channel:     "https://conda.anaconda.org/conda-forge",
		SHA256:      "ABCDEF",
		MD5:         "0123",
	}
}

func TestParseMatchSpec(t *testing.T) {
	tests := []struct {
		text    string
		name    string
		version string
		build   string
		channel string
		subdir  string
	}{
		{text: "numpy", name: "numpy", version: "*"},
		{text: "NumPy>=1.20", name: "numpy", version: ">=1.20"},
		{text: "numpy >= 1.20 , <2", name: "numpy", version: ">=1.20,<2"},
		{text: "numpy 1.20.* py39*", name: "numpy", version: "1.20.*", build: "py39*"},
		{text: "numpy=1.20=py39_0", name: "numpy", version: "==1.20", build: "py39_0"},
		{text: "numpy=1.20", name: "numpy", version: "1.20.*"},
		{text: "numpy==1.20", name: "numpy", version: "==1.20"},
		{text: "python 3.11", name: "python", version: "3.11.*"},
		{text: "numpy >=1.0|<0.5", name: "numpy", version: ">=1.0|<0.5"},
		{text: "conda-forge::numpy", name: "numpy", version: "*", channel: "conda-forge"},
		{text: "conda-forge/linux-64::numpy", name: "numpy", version: "*", channel: "conda-forge", subdir: "linux-64"},
		{text: "numpy[version='>=1.20,<2',build=py*]", name: "numpy", version: ">=1.20,<2", build: "py*"},
		{text: "numpy[channel=conda-forge/osx-arm64]", name: "numpy", version: "*", channel: "conda-forge", subdir: "osx-arm64"},
		{text: "__glibc>=2.17", name: "__glibc", version: ">=2.17"},
		{text: "numpy >=1.20  # pinned", name: "numpy", version: ">=1.20"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ms, err := domain.ParseMatchSpec(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.name, ms.Name.String())
			assert.Equal(t, tt.version, ms.Version.String())
			assert.Equal(t, tt.build, ms.Build)
			assert.Equal(t, tt.channel, ms.Channel)
			assert.Equal(t, tt.subdir, ms.Subdir)
			assert.Equal(t, tt.text, ms.Original)
		})
	}
}

func TestParseMatchSpec_Errors(t *testing.T) {
	for _, text := range []string{
		"",
		"# only a comment",
		">=1.0",
		"numpy[foo=bar]",
		"numpy[version=1.0",
		"numpy[version]",
		"numpy 1.0 py 3",
		"numpy >=1.0$",
		"numpy=1.0=",
		"::numpy",
		"numpy[build_number=abc]",
	} {
		t.Run(text, func(t *testing.T) {
			_, err := domain.ParseMatchSpec(text)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidSpecSyntax)
		})
	}
}

func TestMatchSpecMatches(t *testing.T) {
	rec := record("numpy", "1.20.3", "py39h1234_0", 2)

	tests := []struct {
		spec string
		want bool
	}{
		{"numpy", true},
		{"scipy", false},
		{"numpy>=1.20", true},
		{"numpy<1.20", false},
		{"numpy=1.20", true},
		{"numpy=1.2", false},
		{"numpy 1.20.* py39*", true},
		{"numpy 1.20.* py38*", false},
		{"numpy * py39h????_0", true},
		{"conda-forge::numpy", true},
		{"defaults::numpy", false},
		{"conda-forge/linux-64::numpy", true},
		{"conda-forge/osx-64::numpy", false},
		{"numpy[build_number='>=2']", true},
		{"numpy[build_number=3]", false},
		{"numpy[sha256=abcdef]", true},
		{"numpy[md5=9999]", false},
		{"*[version=1.20.3]", true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			ms := domain.MustParseMatchSpec(tt.spec)
			assert.Equal(t, tt.want, ms.Matches(rec))
		})
	}
}

func TestMatchSpecRoundTrip(t *testing.T) {
	records := []*domain.PackageRecord{
		record("numpy", "1.20.3", "py39h1234_0", 2),
		record("numpy", "1.21.0", "py310_0", 0),
		record("numpy", "1.9", "py27_1", 1),
		record("numpy", "2.0.0rc1", "py312_0", 0),
		record("scipy", "1.20.3", "py39_0", 0),
	}

	specs := []string{
		"numpy",
		"numpy>=1.20",
		"numpy=1.20",
		"numpy=1.20.3=py39h1234_0",
		"numpy >=1.10,<2|1.9",
		"numpy[build=py3*]",
		"numpy[build_number='>=1',md5=0123]",
		"conda-forge/linux-64::numpy 1.2*",
		"numpy[subdir=linux-64]",
		"numpy ~=1.20.0",
		"numpy !=1.21.*",
	}

	for _, text := range specs {
		t.Run(text, func(t *testing.T) {
			original := domain.MustParseMatchSpec(text)
			reparsed, err := domain.ParseMatchSpec(original.String())
			require.NoError(t, err, "canonical form %q", original.String())
			assert.Equal(t, original.String(), reparsed.String())
			for _, r := range records {
				assert.Equal(t, original.Matches(r), reparsed.Matches(r), "record %s", r.Identity())
			}
		})
	}
}

func TestMatchSpecBuildPattern(t *testing.T) {
	spec := domain.MustParseMatchSpec("numpy 1.20.* py39*_0")
	assert.True(t, spec.Matches(record("numpy", "1.20.3", "py39h1234_0", 0)))
	assert.False(t, spec.Matches(record("numpy", "1.20.3", "py39h1234_1", 0)))
	assert.False(t, spec.Matches(record("numpy", "1.20.3", "py310_0", 0)))

	literal := domain.MatchSpec{Name: domain.NewPackageName("numpy"), Version: domain.AnyVersion(), Build: "py39*"}
	assert.True(t, literal.Matches(record("numpy", "1.20.3", "py39h1234_0", 0)))

	_, err := domain.ParseMatchSpec("numpy[build='py[39']")
	require.ErrorIs(t, err, domain.ErrInvalidSpecSyntax)
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, domain.GlobMatch("py*", "py39_0"))
	assert.True(t, domain.GlobMatch("*_0", "py39_0"))
	assert.True(t, domain.GlobMatch("py??_0", "py39_0"))
	assert.True(t, domain.GlobMatch("*", ""))
	assert.False(t, domain.GlobMatch("py3?_1", "py39_0"))
	assert.False(t, domain.GlobMatch("py", "py39"))
	assert.True(t, domain.GlobMatch("py3{8,9}_*", "py39_0"))
	assert.True(t, domain.GlobMatch("[", "["))
}

func TestParseBuildNumberSpec(t *testing.T) {
	bn, err := domain.ParseBuildNumberSpec(">=2")
	require.NoError(t, err)
	assert.True(t, bn.Matches(2))
	assert.False(t, bn.Matches(1))
	assert.Equal(t, ">=2", bn.String())

	bn, err = domain.ParseBuildNumberSpec("3")
	require.NoError(t, err)
	assert.True(t, bn.Matches(3))
	assert.Equal(t, "3", bn.String())

	_, err = domain.ParseBuildNumberSpec("x")
	assert.ErrorIs(t, err, domain.ErrInvalidSpecSyntax)
}
