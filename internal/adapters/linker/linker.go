// Package linker places the files of extracted packages into a prefix and removes them again.
package linker

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

// Linker implements ports.Linker on the local filesystem.
type Linker struct{}

// New creates a Linker.
func New() *Linker {
	return &Linker{}
}

// Link materializes every entry of req.Paths below req.Prefix. Files carrying
// a prefix placeholder are copied and rewritten; everything else follows
// req.LinkType. The returned entries describe the files as installed.
func (l *Linker) Link(ctx context.Context, req domain.LinkRequest) ([]domain.PathEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]domain.PathEntry, 0, len(req.Paths.Paths))
	for _, entry := range req.Paths.Paths {
		installed, err := l.linkOne(req, entry)
		if err != nil {
			err = zerr.With(err, "path", entry.Path)
			if req.Record != nil {
				err = zerr.With(err, "package", req.Record.Identity())
			}
			return out, err
		}
		out = append(out, installed)
	}
	return out, nil
}

func (l *Linker) linkOne(req domain.LinkRequest, entry domain.PathEntry) (domain.PathEntry, error) {
	rel := filepath.FromSlash(entry.Path)
	if !filepath.IsLocal(rel) {
		return entry, zerr.Wrap(domain.ErrLinkFailed, "path escapes the prefix")
	}
	src := filepath.Join(req.PackageDir, rel)
	dst := filepath.Join(req.Prefix, rel)

	if entry.PathType == domain.PathDirectory {
		if err := os.MkdirAll(dst, domain.DirPerm); err != nil {
			return entry, domain.WithCause(domain.ErrLinkFailed, err)
		}
		return entry, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return entry, domain.WithCause(domain.ErrLinkFailed, err)
	}
	if err := removeExisting(dst); err != nil {
		return entry, domain.WithCause(domain.ErrLinkFailed, err)
	}

	switch {
	case entry.PathType == domain.PathSoftlink:
		target, err := os.Readlink(src)
		if err != nil {
			return entry, domain.WithCause(domain.ErrLinkFailed, err)
		}
		if err := os.Symlink(target, dst); err != nil {
			return entry, domain.WithCause(domain.ErrLinkFailed, err)
		}
		return entry, nil

	case entry.PrefixPlaceholder != "":
		return rewrite(src, dst, req.Prefix, entry)

	case entry.NoLink || req.LinkType == domain.LinkCopy:
		if err := copyFile(src, dst); err != nil {
			return entry, domain.WithCause(domain.ErrLinkFailed, err)
		}

	case req.LinkType == domain.LinkSoftlink:
		abs, err := filepath.Abs(src)
		if err != nil {
			return entry, domain.WithCause(domain.ErrLinkFailed, err)
		}
		if err := os.Symlink(abs, dst); err != nil {
			return entry, domain.WithCause(domain.ErrLinkFailed, err)
		}

	default:
		// Hard links fail across devices and on some filesystems; copy instead.
		if err := os.Link(src, dst); err != nil {
			if err := copyFile(src, dst); err != nil {
				return entry, domain.WithCause(domain.ErrLinkFailed, err)
			}
		}
	}
	return entry, nil
}

// rewrite copies src to dst, replacing the placeholder with prefix.
func rewrite(src, dst, prefix string, entry domain.PathEntry) (domain.PathEntry, error) {
	info, err := os.Stat(src)
	if err != nil {
		return entry, domain.WithCause(domain.ErrLinkFailed, err)
	}
	//nolint:gosec // Path is below the extracted package
	data, err := os.ReadFile(src)
	if err != nil {
		return entry, domain.WithCause(domain.ErrLinkFailed, err)
	}

	placeholder := []byte(entry.PrefixPlaceholder)
	var replaced []byte
	switch entry.FileMode {
	case domain.FileModeBinary:
		replaced, err = ReplaceBinary(data, placeholder, []byte(prefix))
		if err != nil {
			return entry, err
		}
	default:
		replaced = bytes.ReplaceAll(data, placeholder, []byte(prefix))
	}

	if err := os.WriteFile(dst, replaced, info.Mode().Perm()); err != nil {
		return entry, domain.WithCause(domain.ErrLinkFailed, err)
	}
	// WriteFile applies the umask to new files.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return entry, domain.WithCause(domain.ErrLinkFailed, err)
	}

	sum := sha256.Sum256(replaced)
	entry.SHA256InPrefix = hex.EncodeToString(sum[:])
	entry.SizeInBytes = int64(len(replaced))
	return entry, nil
}

// ReplaceBinary replaces placeholder inside every NUL terminated string of
// data and pads the shortened string with NUL bytes, so offsets stay intact.
// A prefix longer than the placeholder cannot fit and fails.
func ReplaceBinary(data, placeholder, prefix []byte) ([]byte, error) {
	if !bytes.Contains(data, placeholder) {
		return data, nil
	}
	if len(prefix) > len(placeholder) {
		err := zerr.Wrap(domain.ErrPaddingTooShort, "cannot rewrite binary file")
		err = zerr.With(err, "placeholder_length", len(placeholder))
		return nil, zerr.With(err, "prefix_length", len(prefix))
	}

	out := make([]byte, 0, len(data))
	i := 0
	for {
		j := bytes.Index(data[i:], placeholder)
		if j < 0 {
			out = append(out, data[i:]...)
			break
		}
		start := i + j
		end := len(data)
		if k := bytes.IndexByte(data[start:], 0); k >= 0 {
			end = start + k
		}
		segment := data[start:end]
		fixed := bytes.ReplaceAll(segment, placeholder, prefix)

		out = append(out, data[i:start]...)
		out = append(out, fixed...)
		out = append(out, make([]byte, len(segment)-len(fixed))...)
		i = end
	}
	return out, nil
}

// Unlink removes the given prefix-relative files. Missing files are ignored.
func (l *Linker) Unlink(_ context.Context, prefix string, paths []string) error {
	var errs []error
	for _, p := range paths {
		rel := filepath.FromSlash(p)
		if !filepath.IsLocal(rel) {
			continue
		}
		target := filepath.Join(prefix, rel)
		info, err := os.Lstat(target)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err == nil && info.IsDir() {
			continue
		}
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, zerr.With(domain.WithCause(domain.ErrUnlinkFailed, err), "path", p))
		}
	}
	return errors.Join(errs...)
}

// RemoveEmptyDirs removes the directories that held or were paths once they
// are empty, walking up toward prefix. The prefix and conda-meta are kept.
func (l *Linker) RemoveEmptyDirs(prefix string, paths []string) error {
	seen := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		rel := filepath.FromSlash(p)
		if !filepath.IsLocal(rel) {
			continue
		}
		// Directory entries are candidates themselves; files fail ReadDir below.
		for dir := rel; dir != "." && !seen[dir]; dir = filepath.Dir(dir) {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	// Deepest first, so children go before their parents.
	slices.SortFunc(dirs, func(a, b string) int {
		if da, db := strings.Count(a, string(filepath.Separator)), strings.Count(b, string(filepath.Separator)); da != db {
			return db - da
		}
		return strings.Compare(a, b)
	})

	for _, dir := range dirs {
		if dir == domain.CondaMetaDirName {
			continue
		}
		target := filepath.Join(prefix, dir)
		items, err := os.ReadDir(target)
		if err != nil || len(items) > 0 {
			continue
		}
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return zerr.With(domain.WithCause(domain.ErrUnlinkFailed, err), "path", dir)
		}
	}
	return nil
}

func removeExisting(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return zerr.With(zerr.New("a directory is in the way"), "path", path)
	}
	return os.Remove(path)
}

func copyFile(src, dst string) error {
	//nolint:gosec // Path is below the extracted package
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	//nolint:gosec // Path is below the prefix
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dst, info.Mode().Perm())
}
