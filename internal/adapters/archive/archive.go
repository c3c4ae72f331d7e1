// Package archive extracts conda package archives: .tar.bz2 and .conda
// (a zip holding zstd compressed info and pkg tarballs).
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

// Extract unpacks the archive at src into dst, which is created when missing.
// The format follows the file name.
func Extract(ctx context.Context, src, dst string) error {
	kind, ok := domain.ArchiveKindOf(src)
	if !ok {
		err := zerr.Wrap(domain.ErrUnsupportedArchive, "cannot extract")
		return zerr.With(err, "archive", src)
	}
	if err := os.MkdirAll(dst, domain.DirPerm); err != nil {
		return extractErr(err, src)
	}

	var err error
	switch kind {
	case domain.ArchiveTarBz2:
		err = extractTarBz2(ctx, src, dst)
	case domain.ArchiveConda:
		err = extractConda(ctx, src, dst)
	}
	return err
}

func extractTarBz2(ctx context.Context, src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return extractErr(err, src)
	}
	defer func() { _ = f.Close() }()

	if err := untar(ctx, bzip2.NewReader(f), dst); err != nil {
		return wrapExtract(err, src)
	}
	return nil
}

func extractConda(ctx context.Context, src, dst string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return extractErr(err, src)
	}
	defer func() { _ = zr.Close() }()

	found := false
	for _, entry := range zr.File {
		name := path.Base(entry.Name)
		if !strings.HasSuffix(name, ".tar.zst") {
			continue
		}
		if !strings.HasPrefix(name, "info-") && !strings.HasPrefix(name, "pkg-") {
			continue
		}
		found = true
		if err := extractZstdMember(ctx, entry, dst); err != nil {
			return wrapExtract(err, src)
		}
	}
	if !found {
		err := zerr.Wrap(domain.ErrExtractFailed, "no package members in .conda archive")
		return zerr.With(err, "archive", src)
	}
	return nil
}

func extractZstdMember(ctx context.Context, entry *zip.File, dst string) error {
	rc, err := entry.Open()
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	dec, err := zstd.NewReader(rc)
	if err != nil {
		return err
	}
	defer dec.Close()

	return untar(ctx, dec, dst)
}

// untar writes the entries of r below dst. Entries and symlink targets that
// would leave dst are rejected.
func untar(ctx context.Context, r io.Reader, dst string) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		name := strings.TrimPrefix(path.Clean(hdr.Name), "./")
		if name == "." {
			continue
		}
		if !filepath.IsLocal(name) {
			return unsafePath(hdr.Name)
		}
		target := filepath.Join(dst, filepath.FromSlash(name))

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, domain.DirPerm); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, fs.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !filepath.IsLocal(path.Join(path.Dir(name), hdr.Linkname)) {
				return unsafePath(hdr.Name + " -> " + hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		case tar.TypeLink:
			linkName := strings.TrimPrefix(path.Clean(hdr.Linkname), "./")
			if !filepath.IsLocal(linkName) {
				return unsafePath(hdr.Name + " => " + hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Link(filepath.Join(dst, filepath.FromSlash(linkName)), target); err != nil {
				return err
			}
		default:
			// Devices, fifos and the like have no place in a package.
		}
	}
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), domain.DirPerm); err != nil {
		return err
	}
	if perm == 0 {
		perm = domain.FilePerm
	}
	_ = os.Remove(target)
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func unsafePath(name string) error {
	return zerr.With(zerr.Wrap(domain.ErrUnsafeArchivePath, "refusing archive entry"), "entry", name)
}

func wrapExtract(err error, src string) error {
	if errors.Is(err, domain.ErrUnsafeArchivePath) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return zerr.With(err, "archive", src)
	}
	return extractErr(err, src)
}

func extractErr(err error, src string) error {
	wrapped := zerr.Wrap(domain.WithCause(domain.ErrExtractFailed, err), "cannot extract")
	return zerr.With(wrapped, "archive", src)
}
