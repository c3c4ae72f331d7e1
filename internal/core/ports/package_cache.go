package ports

import (
	"context"

	"go.trai.ch/envy/internal/core/domain"
)

//go:generate mockgen -source=package_cache.go -destination=mocks/mock_package_cache.go -package=mocks

// PackageCache stores verified package archives and their extracted contents.
type PackageCache interface {
	// Acquire returns a leased, verified and extracted package for the record,
	// fetching it when the cache does not hold it yet.
	Acquire(ctx context.Context, record *domain.PackageRecord) (CachedPackage, error)
	// List reports the cache entries.
	List(ctx context.Context) ([]domain.CacheEntry, error)
	// GC removes corrupt, orphaned and unused entries.
	GC(ctx context.Context, opts domain.GCOptions) (domain.GCReport, error)
}

// CachedPackage is a leased cache entry. The entry is not collected while the lease is held.
type CachedPackage interface {
	// Dir is the extracted package directory.
	Dir() string
	// ArchivePath is the verified archive.
	ArchivePath() string
	// Entry describes the cache entry.
	Entry() domain.CacheEntry
	// Release ends the lease.
	Release() error
}
