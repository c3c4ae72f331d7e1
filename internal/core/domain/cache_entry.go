package domain

import "time"

// CacheState is the verification state of a package cache entry.
type CacheState string

const (
	// CacheUnverified means the entry exists but its digest was never checked.
	CacheUnverified CacheState = "unverified"
	// CacheValid means the archive digest matched the key.
	CacheValid CacheState = "valid"
	// CacheCorrupt means the archive digest did not match the key.
	CacheCorrupt CacheState = "corrupt"
)

// CacheEntry describes one archive in the package cache.
type CacheEntry struct {
	Key          string
	FileName     string
	URL          string
	ArchivePath  string
	ExtractedDir string
	State        CacheState
	RefCount     int
	Size         int64
	LastVerified time.Time
	LastUsed     time.Time
}

// GCOptions select what a cache collection removes.
type GCOptions struct {
	// MaxAge removes unleased entries not used for longer. Zero keeps valid entries.
	MaxAge time.Duration
	// DryRun reports without deleting.
	DryRun bool
}

// GCReport summarizes a cache collection.
type GCReport struct {
	Removed    []string
	FreedBytes int64
	TempFiles  int
}
