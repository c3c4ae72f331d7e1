package linker

import (
	"bufio"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

// legacyPlaceholder is the placeholder of has_prefix lines that only name a path.
const legacyPlaceholder = "/opt/anaconda1anaconda2anaconda3"

// ReadPaths reads info/paths.json, falling back to the legacy info/files,
// info/has_prefix and info/no_link files of older packages.
func (l *Linker) ReadPaths(pkgDir string) (domain.PathsData, error) {
	infoDir := filepath.Join(pkgDir, "info")

	//nolint:gosec // Path is below the extracted package
	data, err := os.ReadFile(filepath.Join(infoDir, "paths.json"))
	switch {
	case err == nil:
		var paths domain.PathsData
		if err := json.Unmarshal(data, &paths); err != nil {
			return domain.PathsData{}, pathsErr(err, pkgDir)
		}
		for i := range paths.Paths {
			if paths.Paths[i].PathType == "" {
				paths.Paths[i].PathType = domain.PathHardlink
			}
			if paths.Paths[i].PrefixPlaceholder != "" && paths.Paths[i].FileMode == "" {
				paths.Paths[i].FileMode = domain.FileModeText
			}
		}
		return paths, nil
	case errors.Is(err, fs.ErrNotExist):
		return readLegacyPaths(pkgDir, infoDir)
	default:
		return domain.PathsData{}, pathsErr(err, pkgDir)
	}
}

func readLegacyPaths(pkgDir, infoDir string) (domain.PathsData, error) {
	files, err := readLines(filepath.Join(infoDir, "files"))
	if err != nil {
		return domain.PathsData{}, pathsErr(err, pkgDir)
	}
	hasPrefix, err := readLines(filepath.Join(infoDir, "has_prefix"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.PathsData{}, pathsErr(err, pkgDir)
	}
	noLink, err := readLines(filepath.Join(infoDir, "no_link"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return domain.PathsData{}, pathsErr(err, pkgDir)
	}

	type prefixInfo struct {
		placeholder string
		mode        domain.FileMode
	}
	prefixed := make(map[string]prefixInfo, len(hasPrefix))
	for _, line := range hasPrefix {
		fields := strings.Fields(line)
		switch len(fields) {
		case 1:
			prefixed[fields[0]] = prefixInfo{placeholder: legacyPlaceholder, mode: domain.FileModeText}
		case 3:
			prefixed[fields[2]] = prefixInfo{
				placeholder: strings.Trim(fields[0], `"'`),
				mode:        domain.FileMode(fields[1]),
			}
		default:
			err := zerr.With(zerr.Wrap(domain.ErrPathsReadFailed, "malformed has_prefix line"), "line", line)
			return domain.PathsData{}, zerr.With(err, "package", pkgDir)
		}
	}
	unlinked := make(map[string]bool, len(noLink))
	for _, p := range noLink {
		unlinked[p] = true
	}

	paths := domain.PathsData{PathsVersion: 1}
	for _, p := range files {
		entry := domain.PathEntry{Path: p, PathType: domain.PathHardlink, NoLink: unlinked[p]}
		if info, err := os.Lstat(filepath.Join(pkgDir, filepath.FromSlash(p))); err == nil && info.Mode()&fs.ModeSymlink != 0 {
			entry.PathType = domain.PathSoftlink
		}
		if pi, ok := prefixed[p]; ok {
			entry.PrefixPlaceholder = pi.placeholder
			entry.FileMode = pi.mode
		}
		paths.Paths = append(paths.Paths, entry)
	}
	return paths, nil
}

func readLines(path string) ([]string, error) {
	//nolint:gosec // Path is below the extracted package
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, sc.Err()
}

func pathsErr(err error, pkgDir string) error {
	return zerr.With(domain.WithCause(domain.ErrPathsReadFailed, err), "package", pkgDir)
}
