package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.trai.ch/envy/internal/adapters/filelock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

// List reports every registry entry with its active lease count.
func (c *Cache) List(ctx context.Context) ([]domain.CacheEntry, error) {
	return c.registry.list(ctx, c.opts.Now())
}

// GC removes Corrupt entries, entries whose files vanished, unleased entries
// unused for longer than opts.MaxAge and temp files no transfer owns.
// Entries whose key lock is held by an in-flight transfer are skipped.
func (c *Cache) GC(ctx context.Context, opts domain.GCOptions) (domain.GCReport, error) {
	var report domain.GCReport
	now := c.opts.Now()

	if !opts.DryRun {
		if err := c.registry.pruneLeases(ctx, now); err != nil {
			return report, err
		}
	}

	entries, err := c.registry.list(ctx, now)
	if err != nil {
		return report, err
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !c.collectable(e, opts, now) {
			continue
		}
		removed, err := c.removeEntry(ctx, e, opts.DryRun)
		if err != nil {
			return report, err
		}
		if removed {
			report.Removed = append(report.Removed, e.Key)
			report.FreedBytes += e.Size
		}
	}

	temps, err := c.collectTemp(opts.DryRun)
	if err != nil {
		return report, err
	}
	report.TempFiles = temps
	return report, nil
}

func (c *Cache) collectable(e domain.CacheEntry, opts domain.GCOptions, now time.Time) bool {
	if e.RefCount > 0 {
		return false
	}
	switch {
	case e.State != domain.CacheValid:
		return true
	case !exists(e.ArchivePath) || !exists(e.ExtractedDir):
		return true
	case opts.MaxAge > 0 && now.Sub(e.LastUsed) > opts.MaxAge:
		return true
	default:
		return false
	}
}

// removeEntry deletes the entry's files and registry row under its key lock.
func (c *Cache) removeEntry(ctx context.Context, e domain.CacheEntry, dryRun bool) (bool, error) {
	lock, err := filelock.TryLock(c.lockPath(e.Key))
	if errors.Is(err, filelock.ErrContended) {
		return false, nil
	}
	if err != nil {
		return false, zerr.With(zerr.Wrap(err, domain.ErrCacheLockFailed.Error()), "key", e.Key)
	}
	defer func() { _ = lock.Unlock() }()

	if dryRun {
		return true, nil
	}

	for _, p := range []string{filepath.Dir(e.ArchivePath), e.ExtractedDir} {
		if err := os.RemoveAll(p); err != nil {
			return false, zerr.With(zerr.Wrap(err, "failed to remove cache entry"), "path", p)
		}
	}
	if err := c.registry.remove(ctx, e.Key); err != nil {
		return false, err
	}
	return true, nil
}

// collectTemp removes leftovers of interrupted transfers. Temp names start
// with "<alg>-<hex>-", so a free key lock means nobody is writing them.
func (c *Cache) collectTemp(dryRun bool) (int, error) {
	tmpDir := filepath.Join(c.dir, domain.TmpDirName)
	items, err := os.ReadDir(tmpDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, zerr.With(zerr.Wrap(err, "failed to read temp directory"), "path", tmpDir)
	}

	count := 0
	for _, item := range items {
		parts := strings.SplitN(item.Name(), "-", 3)
		if len(parts) < 3 {
			continue
		}
		key := parts[0] + ":" + parts[1]
		lock, err := filelock.TryLock(c.lockPath(key))
		if err != nil {
			continue
		}
		if !dryRun {
			_ = os.RemoveAll(filepath.Join(tmpDir, item.Name()))
		}
		_ = lock.Unlock()
		count++
	}
	return count, nil
}
