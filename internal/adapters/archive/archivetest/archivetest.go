// Package archivetest builds .conda archives for tests.
package archivetest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// File is one archive member. Link makes it a symlink.
type File struct {
	Name string
	Body string
	Mode int64
	Link string
}

// WriteConda writes a .conda archive at dst. Members below info/ go to the
// info tarball, everything else to the pkg tarball.
func WriteConda(dst string, files []File) error {
	var info, pkg []File
	for _, f := range files {
		if strings.HasPrefix(f.Name, "info/") {
			info = append(info, f)
			continue
		}
		pkg = append(pkg, f)
	}

	stem := strings.TrimSuffix(filepath.Base(dst), ".conda")
	infoTar, err := zstdTar(info)
	if err != nil {
		return err
	}
	pkgTar, err := zstdTar(pkg)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	members := []struct {
		name string
		data []byte
	}{
		{"metadata.json", []byte(`{"conda_pkg_format_version": 2}`)},
		{"pkg-" + stem + ".tar.zst", pkgTar},
		{"info-" + stem + ".tar.zst", infoTar},
	}
	for _, m := range members {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: m.name, Method: zip.Store})
		if err != nil {
			return err
		}
		if _, err := w.Write(m.data); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}
	return os.WriteFile(dst, buf.Bytes(), 0o600)
}

func zstdTar(files []File) ([]byte, error) {
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	tw := tar.NewWriter(enc)
	for _, f := range files {
		hdr := &tar.Header{Name: f.Name, Mode: f.Mode, Size: int64(len(f.Body)), Typeflag: tar.TypeReg}
		if hdr.Mode == 0 {
			hdr.Mode = 0o644
		}
		if f.Link != "" {
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = f.Link
			hdr.Size = 0
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if f.Link == "" {
			if _, err := tw.Write([]byte(f.Body)); err != nil {
				return nil, err
			}
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
