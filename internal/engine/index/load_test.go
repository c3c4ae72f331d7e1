package index_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports/mocks"
	"go.trai.ch/envy/internal/engine/index"
	"go.uber.org/mock/gomock"
)

func doc(subdir string, pkgs ...string) []byte {
	out := `{"info":{"subdir":"` + subdir + `"},"packages":{`
	for i, p := range pkgs {
		if i > 0 {
			out += ","
		}
		out += p
	}
	return []byte(out + "}}")
}

func pkg(name, version string) string {
	fn := name + "-" + version + "-0.tar.bz2"
	return `"` + fn + `":{"name":"` + name + `","version":"` + version + `","build":"0","build_number":0,"depends":[],"sha256":"aa"}`
}

func TestLoader_MergesChannelsInPriorityOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockRepodataSource(ctrl)

	first := domain.NewChannel("first", 0, "")
	second := domain.NewChannel("second", 1, "")

	source.EXPECT().Fetch(gomock.Any(), first, "linux-64").Return(doc("linux-64", pkg("a", "1.0")), nil)
	source.EXPECT().Fetch(gomock.Any(), first, "noarch").Return(nil, nil)
	source.EXPECT().Fetch(gomock.Any(), second, "linux-64").Return(doc("linux-64", pkg("a", "2.0"), pkg("b", "1.0")), nil)
	source.EXPECT().Fetch(gomock.Any(), second, "noarch").Return(doc("noarch", pkg("c", "1.0")), nil)

	loader := index.NewLoader(source, nil)
	ix, warnings, err := loader.Load(context.Background(), []domain.Channel{first, second},
		domain.PlatformLinux64, domain.PriorityStrict)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	a := ix.Records(domain.NewPackageName("a"))
	require.Len(t, a, 1, "strict priority hides a from the second channel")
	assert.Equal(t, "1.0", a[0].Version.String())
	assert.Equal(t, 0, a[0].ChannelPriority)

	require.Len(t, ix.Records(domain.NewPackageName("b")), 1)
	c := ix.Records(domain.NewPackageName("c"))
	require.Len(t, c, 1)
	assert.Equal(t, 1, c[0].ChannelPriority)
}

func TestLoader_FlexibleKeepsAllChannels(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockRepodataSource(ctrl)

	first := domain.NewChannel("first", 0, "")
	second := domain.NewChannel("second", 1, "")

	source.EXPECT().Fetch(gomock.Any(), first, "noarch").Return(doc("noarch", pkg("a", "1.0")), nil)
	source.EXPECT().Fetch(gomock.Any(), second, "noarch").Return(doc("noarch", pkg("a", "2.0")), nil)

	ix, _, err := index.NewLoader(source, nil).Load(context.Background(), []domain.Channel{first, second},
		domain.PlatformNoArch, domain.PriorityFlexible)
	require.NoError(t, err)
	assert.Len(t, ix.Records(domain.NewPackageName("a")), 2)
}

func TestLoader_FetchError(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockRepodataSource(ctrl)
	ch := domain.NewChannel("first", 0, "")

	source.EXPECT().Fetch(gomock.Any(), ch, gomock.Any()).
		Return(nil, domain.WithCause(domain.ErrChannelFetchFailed, errors.New("offline"))).
		AnyTimes()

	_, _, err := index.NewLoader(source, nil).Load(context.Background(), []domain.Channel{ch},
		domain.PlatformLinux64, domain.PriorityStrict)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrChannelFetchFailed)
}

func TestLoader_CorruptDocument(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockRepodataSource(ctrl)
	ch := domain.NewChannel("first", 0, "")

	source.EXPECT().Fetch(gomock.Any(), ch, gomock.Any()).Return([]byte("{"), nil).AnyTimes()

	_, _, err := index.NewLoader(source, nil).Load(context.Background(), []domain.Channel{ch},
		domain.PlatformLinux64, domain.PriorityStrict)
	assert.ErrorIs(t, err, domain.ErrCorruptIndex)
}
