package domain

import (
	"os"
	"path/filepath"
)

const (
	// EnvyDirName is the name of the project-local envy directory.
	EnvyDirName = ".envy"

	// DefaultPrefixDirName is the name of the default prefix inside EnvyDirName.
	DefaultPrefixDirName = "env"

	// ConfigFileName is the name of the project configuration file.
	ConfigFileName = "envy.yaml"

	// CondaMetaDirName is the prefix directory holding one record per installed package.
	CondaMetaDirName = "conda-meta"

	// PrefixLockFileName is the advisory lock file inside CondaMetaDirName.
	PrefixLockFileName = ".envy.lock"

	// JournalFileName marks an in-flight transaction inside CondaMetaDirName.
	JournalFileName = ".envy-transaction.json"

	// CacheDirEnv overrides the package cache directory.
	CacheDirEnv = "ENVY_CACHE_DIR"

	// ArchivesDirName holds verified archives inside the cache.
	ArchivesDirName = "archives"

	// PkgsDirName holds extracted packages inside the cache.
	PkgsDirName = "pkgs"

	// LocksDirName holds per-key lock files inside the cache.
	LocksDirName = "locks"

	// TmpDirName holds in-flight downloads and extractions inside the cache.
	TmpDirName = "tmp"

	// RepodataDirName holds cached channel indexes inside the cache.
	RepodataDirName = "repodata"

	// RegistryFileName is the sqlite registry of cache entries.
	RegistryFileName = "registry.db"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DefaultPrefixPath returns the default prefix relative to a project root.
func DefaultPrefixPath(root string) string {
	return filepath.Join(root, EnvyDirName, DefaultPrefixDirName)
}

// DefaultCachePath returns the package cache directory.
// ENVY_CACHE_DIR wins over the user cache directory.
func DefaultCachePath() string {
	if dir := os.Getenv(CacheDirEnv); dir != "" {
		return dir
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "envy")
	}
	return filepath.Join(EnvyDirName, "cache")
}

// CondaMetaPath returns the metadata directory of a prefix.
func CondaMetaPath(prefix string) string {
	return filepath.Join(prefix, CondaMetaDirName)
}
