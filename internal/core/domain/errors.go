package domain

import (
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrInvalidSpecSyntax is returned when a match spec, version or version spec cannot be parsed.
	ErrInvalidSpecSyntax = zerr.New("invalid spec syntax")

	// ErrCorruptIndex is returned when a channel index document cannot be parsed at all.
	ErrCorruptIndex = zerr.New("corrupt channel index")

	// ErrPackageNotFound is returned when a root spec names a package that no channel provides.
	ErrPackageNotFound = zerr.New("package not found")

	// ErrUnsatisfiable is returned when the requested specs cannot be satisfied jointly.
	ErrUnsatisfiable = zerr.New("unsatisfiable requirements")

	// ErrSolverAborted is returned when the solver exceeds its decision budget.
	ErrSolverAborted = zerr.New("solver aborted")

	// ErrArchiveCorrupt is returned when a fetched archive keeps failing hash verification.
	ErrArchiveCorrupt = zerr.New("archive corrupt")

	// ErrNetworkFailure is returned when a download fails after all retries.
	ErrNetworkFailure = zerr.New("network failure")

	// ErrResourceNotFound is returned when a downloaded resource does not exist.
	ErrResourceNotFound = zerr.New("resource not found")

	// ErrPrefixLocked is returned when another transaction holds the prefix lock.
	ErrPrefixLocked = zerr.New("prefix is locked by another transaction")

	// ErrPartialTransaction is reported when a previous transaction was interrupted.
	ErrPartialTransaction = zerr.New("previous transaction did not complete")

	// ErrStaleTransaction is returned when the prefix changed after a transaction was planned.
	ErrStaleTransaction = zerr.New("prefix changed since the transaction was planned")

	// ErrTransactionFailed is returned when an operation of a transaction fails.
	ErrTransactionFailed = zerr.New("transaction failed")

	// ErrMissingHash is returned when a record carries neither sha256 nor md5.
	ErrMissingHash = zerr.New("package record has no content hash")

	// ErrUnsupportedArchive is returned when an archive has an unknown extension.
	ErrUnsupportedArchive = zerr.New("unsupported archive format")

	// ErrUnsafeArchivePath is returned when an archive entry would escape the destination.
	ErrUnsafeArchivePath = zerr.New("archive entry escapes destination")

	// ErrExtractFailed is returned when an archive cannot be extracted.
	ErrExtractFailed = zerr.New("failed to extract archive")

	// ErrCacheOpenFailed is returned when the package cache cannot be opened.
	ErrCacheOpenFailed = zerr.New("failed to open package cache")

	// ErrCacheRegistryFailed is returned when the cache registry cannot be read or written.
	ErrCacheRegistryFailed = zerr.New("package cache registry failure")

	// ErrCacheLockFailed is returned when a cache key lock cannot be acquired.
	ErrCacheLockFailed = zerr.New("failed to lock cache entry")

	// ErrPathsReadFailed is returned when a package's path metadata cannot be read.
	ErrPathsReadFailed = zerr.New("failed to read package paths")

	// ErrLinkFailed is returned when a file cannot be placed into the prefix.
	ErrLinkFailed = zerr.New("failed to link file")

	// ErrUnlinkFailed is returned when a file cannot be removed from the prefix.
	ErrUnlinkFailed = zerr.New("failed to unlink file")

	// ErrPaddingTooShort is returned when a binary prefix placeholder is shorter than the target prefix.
	ErrPaddingTooShort = zerr.New("prefix placeholder too short for binary replacement")

	// ErrPrefixRecordReadFailed is returned when a prefix record cannot be read.
	ErrPrefixRecordReadFailed = zerr.New("failed to read prefix record")

	// ErrPrefixRecordWriteFailed is returned when a prefix record cannot be written.
	ErrPrefixRecordWriteFailed = zerr.New("failed to write prefix record")

	// ErrPrefixCreateFailed is returned when the prefix metadata directory cannot be created.
	ErrPrefixCreateFailed = zerr.New("failed to create prefix")

	// ErrConfigReadFailed is returned when the config file cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read config file")

	// ErrConfigParseFailed is returned when the config file cannot be parsed.
	ErrConfigParseFailed = zerr.New("failed to parse config file")

	// ErrConfigNotFound is returned when no envy.yaml can be found.
	ErrConfigNotFound = zerr.New("could not find envy.yaml")

	// ErrInvalidPlatform is returned for an unknown platform string.
	ErrInvalidPlatform = zerr.New("invalid platform")

	// ErrChannelFetchFailed is returned when a channel index cannot be retrieved.
	ErrChannelFetchFailed = zerr.New("failed to fetch channel index")
)

// WithCause joins a sentinel with the failure behind it so errors.Is matches both.
func WithCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
