package ports

import (
	"context"

	"go.trai.ch/envy/internal/core/domain"
)

//go:generate mockgen -source=prefix.go -destination=mocks/mock_prefix.go -package=mocks

// PrefixStore reads and writes the installed state of a prefix.
type PrefixStore interface {
	// Load reads every record of the prefix. Missing files mark a record Broken;
	// an interrupted transaction shows up in State.Issues.
	Load(ctx context.Context, prefix string) (domain.PrefixState, error)
	// Lock takes the exclusive prefix lock or fails with domain.ErrPrefixLocked.
	Lock(prefix string) (unlock func() error, err error)
	// Write persists a record atomically.
	Write(prefix string, record *domain.PrefixRecord) error
	// Delete removes a record.
	Delete(prefix string, record *domain.PrefixRecord) error
	// BeginJournal marks a transaction as in flight.
	BeginJournal(prefix string, tx domain.Transaction) error
	// EndJournal clears the in-flight marker.
	EndJournal(prefix string) error
}

// Linker places package files into a prefix and removes them again.
type Linker interface {
	// ReadPaths reads the path metadata of an extracted package.
	ReadPaths(pkgDir string) (domain.PathsData, error)
	// Link materializes the package's files below prefix and returns the
	// entries as installed.
	Link(ctx context.Context, req domain.LinkRequest) ([]domain.PathEntry, error)
	// Unlink removes the given prefix-relative paths.
	Unlink(ctx context.Context, prefix string, paths []string) error
	// RemoveEmptyDirs removes directories left empty below prefix, walking up
	// from the parents of paths.
	RemoveEmptyDirs(prefix string, paths []string) error
}

// VirtualDetector reports the virtual packages of a platform.
type VirtualDetector interface {
	Detect(platform domain.Platform) ([]domain.VirtualPackage, error)
}
