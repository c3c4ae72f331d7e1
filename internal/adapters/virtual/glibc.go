package virtual

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
)

// libcCandidates are the usual locations of the glibc shared object.
var libcCandidates = []string{
	"/lib/x86_64-linux-gnu/libc.so.6",
	"/lib/aarch64-linux-gnu/libc.so.6",
	"/lib64/libc.so.6",
	"/usr/lib64/libc.so.6",
	"/lib/libc.so.6",
	"/usr/lib/libc.so.6",
}

// glibcBanner matches the version banner glibc embeds in libc.so.6.
var glibcBanner = regexp.MustCompile(`GNU C Library[^\n]*release version (\d+\.\d+)`)

// glibcVersion reads the banner of the first libc.so.6 found.
func glibcVersion() string {
	for _, path := range libcCandidates {
		if v := bannerVersion(path); v != "" {
			return v
		}
	}
	return ""
}

func bannerVersion(path string) string {
	//nolint:gosec // Fixed system library paths
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return ""
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	sc.Split(splitNUL)
	for sc.Scan() {
		if m := glibcBanner.FindSubmatch(sc.Bytes()); m != nil {
			return string(m[1])
		}
	}
	return ""
}

// splitNUL splits binary data into NUL terminated strings.
func splitNUL(data []byte, atEOF bool) (int, []byte, error) {
	for i, b := range data {
		if b == 0 {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
