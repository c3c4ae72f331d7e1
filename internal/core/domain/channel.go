package domain

import (
	"path/filepath"
	"strings"
)

// DefaultChannelAlias is prepended to bare channel names.
const DefaultChannelAlias = "https://conda.anaconda.org"

// Channel is a configured package source.
type Channel struct {
	// Name is the canonical channel name used in record identities.
	Name string
	// URL is the channel root; subdirs live below it.
	URL string
	// Priority is the channel's position in the configured list. Lower wins.
	Priority int
}

// NewChannel resolves a configured channel entry. URLs are kept, paths become
// file URLs relative to base, bare names are placed under DefaultChannelAlias.
func NewChannel(entry string, priority int, base string) Channel {
	entry = strings.TrimRight(strings.TrimSpace(entry), "/")
	switch {
	case strings.Contains(entry, "://"):
		return Channel{Name: CanonicalChannelName(entry), URL: entry, Priority: priority}
	case isPathLike(entry):
		path := entry
		if !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		path = filepath.Clean(path)
		return Channel{Name: CanonicalChannelName(filepath.ToSlash(path)), URL: "file://" + filepath.ToSlash(path), Priority: priority}
	default:
		return Channel{Name: entry, URL: DefaultChannelAlias + "/" + entry, Priority: priority}
	}
}

// SubdirURL returns the URL of one subdir of the channel.
func (c Channel) SubdirURL(subdir string) string {
	return c.URL + "/" + subdir
}

func isPathLike(s string) bool {
	return strings.HasPrefix(s, ".") || strings.HasPrefix(s, "/") || strings.HasPrefix(s, "~") ||
		filepath.IsAbs(s)
}
