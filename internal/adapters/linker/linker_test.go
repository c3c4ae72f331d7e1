package linker_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/envy/internal/adapters/linker"
	"go.trai.ch/envy/internal/core/domain"
)

const placeholder = "/opt/placeholder_placeholder_placeholder_placeholder"

func writeFile(t *testing.T, path, body string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
	require.NoError(t, os.Chmod(path, mode))
}

// pkgDir builds an extracted package with a plain file, a text file with a
// placeholder, a binary file with a placeholder and a symlink.
func pkgDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "lib", "libfoo.so.1"), "plain", 0o755)
	writeFile(t, filepath.Join(dir, "bin", "foo-config"), "#!/bin/sh\necho "+placeholder+"/lib\n", 0o755)
	writeFile(t, filepath.Join(dir, "lib", "libfoo.a"), "\x7fELF"+placeholder+"/share\x00rest", 0o644)
	require.NoError(t, os.Symlink("libfoo.so.1", filepath.Join(dir, "lib", "libfoo.so")))
	writeFile(t, filepath.Join(dir, "info", "paths.json"), `{
  "paths_version": 1,
  "paths": [
    {"_path": "lib/libfoo.so.1", "path_type": "hardlink", "sha256": "x", "size_in_bytes": 5},
    {"_path": "bin/foo-config", "path_type": "hardlink", "prefix_placeholder": "`+placeholder+`", "file_mode": "text"},
    {"_path": "lib/libfoo.a", "path_type": "hardlink", "prefix_placeholder": "`+placeholder+`", "file_mode": "binary"},
    {"_path": "lib/libfoo.so", "path_type": "softlink"},
    {"_path": "share/doc", "path_type": "directory"}
  ]
}`, 0o644)
	return dir
}

func link(t *testing.T, l *linker.Linker, pkg, prefix string, lt domain.LinkType) []domain.PathEntry {
	t.Helper()
	paths, err := l.ReadPaths(pkg)
	require.NoError(t, err)
	installed, err := l.Link(context.Background(), domain.LinkRequest{
		Prefix:     prefix,
		PackageDir: pkg,
		Paths:      paths,
		LinkType:   lt,
	})
	require.NoError(t, err)
	return installed
}

func TestReadPaths_PathsJSON(t *testing.T) {
	paths, err := linker.New().ReadPaths(pkgDir(t))
	require.NoError(t, err)
	require.Len(t, paths.Paths, 5)
	assert.Equal(t, 1, paths.PathsVersion)
	assert.Equal(t, "lib/libfoo.so.1", paths.Paths[0].Path)
	assert.Equal(t, domain.FileModeBinary, paths.Paths[2].FileMode)
	assert.Equal(t, domain.PathSoftlink, paths.Paths[3].PathType)
}

func TestReadPaths_Legacy(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bin", "tool"), "x", 0o755)
	writeFile(t, filepath.Join(dir, "etc", "tool.conf"), "x", 0o644)
	writeFile(t, filepath.Join(dir, "lib", "libtool.so"), "x", 0o644)
	writeFile(t, filepath.Join(dir, "info", "files"), "bin/tool\netc/tool.conf\nlib/libtool.so\n", 0o644)
	writeFile(t, filepath.Join(dir, "info", "has_prefix"),
		"etc/tool.conf\n/opt/build_env binary lib/libtool.so\n", 0o644)
	writeFile(t, filepath.Join(dir, "info", "no_link"), "bin/tool\n", 0o644)

	paths, err := linker.New().ReadPaths(dir)
	require.NoError(t, err)
	require.Len(t, paths.Paths, 3)

	assert.True(t, paths.Paths[0].NoLink)
	assert.Equal(t, "/opt/anaconda1anaconda2anaconda3", paths.Paths[1].PrefixPlaceholder)
	assert.Equal(t, domain.FileModeText, paths.Paths[1].FileMode)
	assert.Equal(t, "/opt/build_env", paths.Paths[2].PrefixPlaceholder)
	assert.Equal(t, domain.FileModeBinary, paths.Paths[2].FileMode)
}

func TestReadPaths_Missing(t *testing.T) {
	_, err := linker.New().ReadPaths(t.TempDir())
	assert.ErrorIs(t, err, domain.ErrPathsReadFailed)
}

func TestLink_Hardlink(t *testing.T) {
	l := linker.New()
	pkg := pkgDir(t)
	prefix := filepath.Join(t.TempDir(), "env")

	installed := link(t, l, pkg, prefix, domain.LinkHardlink)
	require.Len(t, installed, 5)

	srcInfo, err := os.Stat(filepath.Join(pkg, "lib", "libfoo.so.1"))
	require.NoError(t, err)
	dstInfo, err := os.Stat(filepath.Join(prefix, "lib", "libfoo.so.1"))
	require.NoError(t, err)
	assert.True(t, os.SameFile(srcInfo, dstInfo))

	text, err := os.ReadFile(filepath.Join(prefix, "bin", "foo-config"))
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/sh\necho "+prefix+"/lib\n", string(text))
	info, err := os.Stat(filepath.Join(prefix, "bin", "foo-config"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	assert.NotEmpty(t, installed[1].SHA256InPrefix)

	target, err := os.Readlink(filepath.Join(prefix, "lib", "libfoo.so"))
	require.NoError(t, err)
	assert.Equal(t, "libfoo.so.1", target)

	assert.DirExists(t, filepath.Join(prefix, "share", "doc"))
}

func TestLink_CopyAndSoftlink(t *testing.T) {
	l := linker.New()
	pkg := pkgDir(t)

	copied := filepath.Join(t.TempDir(), "env")
	link(t, l, pkg, copied, domain.LinkCopy)
	srcInfo, err := os.Stat(filepath.Join(pkg, "lib", "libfoo.so.1"))
	require.NoError(t, err)
	dstInfo, err := os.Stat(filepath.Join(copied, "lib", "libfoo.so.1"))
	require.NoError(t, err)
	assert.False(t, os.SameFile(srcInfo, dstInfo))

	linked := filepath.Join(t.TempDir(), "env")
	link(t, l, pkg, linked, domain.LinkSoftlink)
	target, err := os.Readlink(filepath.Join(linked, "lib", "libfoo.so.1"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(pkg, "lib", "libfoo.so.1"), target)

	// Rewritten files are never links into the cache.
	info, err := os.Lstat(filepath.Join(linked, "bin", "foo-config"))
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
}

func TestLink_BinaryPrefixTooLong(t *testing.T) {
	l := linker.New()
	pkg := pkgDir(t)
	prefix := filepath.Join(t.TempDir(), string(bytes.Repeat([]byte("p"), len(placeholder))))

	paths, err := l.ReadPaths(pkg)
	require.NoError(t, err)
	_, err = l.Link(context.Background(), domain.LinkRequest{Prefix: prefix, PackageDir: pkg, Paths: paths})
	assert.ErrorIs(t, err, domain.ErrPaddingTooShort)
}

func TestReplaceBinary(t *testing.T) {
	data := []byte("head\x00/opt/ph/lib:/opt/ph/bin\x00tail/opt/ph")
	out, err := linker.ReplaceBinary(data, []byte("/opt/ph"), []byte("/p"))
	require.NoError(t, err)
	assert.Len(t, out, len(data))
	assert.Equal(t, []byte("head\x00/p/lib:/p/bin\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00\x00tail/p\x00\x00\x00\x00\x00"), out)

	unchanged, err := linker.ReplaceBinary([]byte("nothing here"), []byte("/opt/ph"), []byte("/much/longer/prefix"))
	require.NoError(t, err)
	assert.Equal(t, []byte("nothing here"), unchanged)
}

func TestUnlinkAndRemoveEmptyDirs(t *testing.T) {
	l := linker.New()
	pkg := pkgDir(t)
	prefix := filepath.Join(t.TempDir(), "env")
	installed := link(t, l, pkg, prefix, domain.LinkHardlink)
	writeFile(t, filepath.Join(prefix, "conda-meta", "history"), "", 0o644)
	writeFile(t, filepath.Join(prefix, "lib", "other.so"), "keep", 0o644)

	var paths []string
	for _, e := range installed {
		paths = append(paths, e.Path)
	}
	paths = append(paths, "lib/already-gone.so")

	require.NoError(t, l.Unlink(context.Background(), prefix, paths))
	require.NoError(t, l.RemoveEmptyDirs(prefix, paths))

	assert.NoFileExists(t, filepath.Join(prefix, "lib", "libfoo.so.1"))
	assert.NoDirExists(t, filepath.Join(prefix, "bin"))
	assert.NoDirExists(t, filepath.Join(prefix, "share"))
	assert.FileExists(t, filepath.Join(prefix, "lib", "other.so"))
	assert.DirExists(t, filepath.Join(prefix, "conda-meta"))
	assert.DirExists(t, prefix)

	// The package cache is untouched.
	assert.FileExists(t, filepath.Join(pkg, "lib", "libfoo.so.1"))
}
