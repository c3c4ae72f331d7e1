// Package cache implements the content-addressed package cache.
//
// Archives live at archives/<alg>/<hex>/<file name> and their extracted form at
// pkgs/<alg>/<hex>/. An entry becomes visible in the sqlite registry only once
// both are verified and in place, so readers never see a partial entry.
package cache

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.trai.ch/envy/internal/adapters/archive"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/adapters/filelock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

const (
	defaultLeaseTTL       = 24 * time.Hour
	defaultCorruptRetries = 3
)

// errAbandoned marks a shared transfer stopped because every caller left.
var errAbandoned = errors.New("transfer abandoned by its callers")

// Options tune a Cache.
type Options struct {
	// FetchConcurrency bounds simultaneous network transfers.
	FetchConcurrency int
	// Retries is how often a transfer that fails verification is repeated.
	Retries int
	// VerifyInterval is how long a Valid entry is trusted before its archive
	// digest is checked again.
	VerifyInterval time.Duration
	// LeaseTTL bounds how long a lease of a crashed process pins an entry.
	LeaseTTL time.Duration
	// BackOff builds the delay policy between corrupt retries.
	BackOff func() backoff.BackOff
	// Now returns the current time.
	Now func() time.Time
}

// OptionsFromSettings derives cache options from the environment settings.
func OptionsFromSettings(s domain.Settings) Options {
	return Options{
		FetchConcurrency: s.FetchConcurrency,
		Retries:          s.Retries,
		VerifyInterval:   s.VerifyInterval,
	}
}

func (o Options) withDefaults() Options {
	d := domain.DefaultSettings()
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = d.FetchConcurrency
	}
	if o.Retries < 0 {
		o.Retries = defaultCorruptRetries
	}
	if o.VerifyInterval <= 0 {
		o.VerifyInterval = d.VerifyInterval
	}
	if o.LeaseTTL <= 0 {
		o.LeaseTTL = defaultLeaseTTL
	}
	if o.BackOff == nil {
		o.BackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Cache implements ports.PackageCache. It is safe for concurrent use and may
// be shared with other processes using the same directory.
type Cache struct {
	dir        string
	downloader ports.Downloader
	registry   *registry
	opts       Options
	transfers  *semaphore.Weighted
	group      singleflight.Group

	mu      sync.Mutex
	flights map[string]*flight
}

// flight is the context of a shared transfer. It is cancelled once the last
// caller waiting for it has left.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Open creates the cache layout below dir and opens its registry.
func Open(ctx context.Context, dir string, downloader ports.Downloader, opts Options) (*Cache, error) {
	dir = filepath.Clean(dir)
	for _, sub := range []string{domain.ArchivesDirName, domain.PkgsDirName, domain.LocksDirName, domain.TmpDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), domain.DirPerm); err != nil {
			return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheOpenFailed.Error()), "dir", dir)
		}
	}

	reg, err := openRegistry(ctx, filepath.Join(dir, domain.RegistryFileName))
	if err != nil {
		return nil, err
	}

	opts = opts.withDefaults()
	return &Cache{
		dir:        dir,
		downloader: downloader,
		registry:   reg,
		opts:       opts,
		transfers:  semaphore.NewWeighted(int64(opts.FetchConcurrency)),
		flights:    make(map[string]*flight),
	}, nil
}

// Close closes the registry. Outstanding handles must be released first.
func (c *Cache) Close() error {
	return c.registry.close()
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	return c.dir
}

// Acquire returns a leased, Valid entry for the record, fetching and
// extracting the archive when needed. Concurrent calls for the same content
// share one transfer, which only stops when every caller has given up.
func (c *Cache) Acquire(ctx context.Context, record *domain.PackageRecord) (ports.CachedPackage, error) {
	key := record.Key()
	if key == "" {
		return nil, zerr.With(zerr.Wrap(domain.ErrMissingHash, "cannot cache package"), "package", record.Identity())
	}

	entry, err := c.shared(ctx, record, key)
	if err != nil {
		return nil, err
	}

	now := c.opts.Now()
	lease := uuid.NewString()
	if err := c.registry.addLease(ctx, lease, key, now.Add(c.opts.LeaseTTL)); err != nil {
		return nil, err
	}
	if err := c.registry.touch(ctx, key, time.Time{}, now); err != nil {
		_ = c.registry.dropLease(context.WithoutCancel(ctx), lease)
		return nil, err
	}
	entry.LastUsed = now
	entry.RefCount++
	return &handle{cache: c, lease: lease, entry: entry}, nil
}

// shared waits for the coalesced transfer of key. A caller that is cancelled
// leaves without stopping the transfer for the others; the last one to leave
// cancels it and waits until its temporary files are gone.
func (c *Cache) shared(ctx context.Context, record *domain.PackageRecord, key string) (domain.CacheEntry, error) {
	for {
		f := c.join(ctx, key)
		ch := c.group.DoChan(key, func() (any, error) {
			entry, err := c.ensure(f.ctx, record, key)
			if err != nil && f.ctx.Err() != nil {
				return nil, errAbandoned
			}
			return entry, err
		})

		select {
		case <-ctx.Done():
			if c.leave(key, f) {
				<-ch
			}
			return domain.CacheEntry{}, ctx.Err()
		case res := <-ch:
			c.leave(key, f)
			if errors.Is(res.Err, errAbandoned) {
				// The transfer we joined was cancelled by callers that left before us.
				if err := ctx.Err(); err != nil {
					return domain.CacheEntry{}, err
				}
				continue
			}
			if res.Err != nil {
				return domain.CacheEntry{}, res.Err
			}
			entry, ok := res.Val.(domain.CacheEntry)
			if !ok {
				return domain.CacheEntry{}, zerr.With(zerr.New("unexpected cache result"), "key", key)
			}
			return entry, nil
		}
	}
}

// join registers the caller as a waiter of the transfer of key.
func (c *Cache) join(ctx context.Context, key string) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

// leave removes a waiter and reports whether it was the last one.
func (c *Cache) leave(key string, f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return false
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	return true
}

// ensure returns a Valid entry for key, fetching it under the key lock when
// the registry has none.
func (c *Cache) ensure(ctx context.Context, record *domain.PackageRecord, key string) (domain.CacheEntry, error) {
	if entry, ok, err := c.lookup(ctx, key); err != nil || ok {
		return entry, err
	}

	lock, err := filelock.Acquire(ctx, c.lockPath(key))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.CacheEntry{}, ctxErr
		}
		return domain.CacheEntry{}, zerr.With(zerr.Wrap(err, domain.ErrCacheLockFailed.Error()), "key", key)
	}
	defer func() { _ = lock.Unlock() }()

	// Another process may have finished the entry while we waited.
	if entry, ok, err := c.lookup(ctx, key); err != nil || ok {
		return entry, err
	}

	attempt := 0
	var entry domain.CacheEntry
	op := func() error {
		attempt++
		e, err := c.fetch(ctx, record, key)
		if err == nil {
			entry = e
			return nil
		}
		if errors.Is(err, domain.ErrArchiveCorrupt) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.opts.BackOff(), uint64(c.opts.Retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.CacheEntry{}, ctxErr
		}
		if errors.Is(err, domain.ErrArchiveCorrupt) {
			return domain.CacheEntry{}, zerr.With(err, "attempts", attempt)
		}
		return domain.CacheEntry{}, err
	}
	return entry, nil
}

// lookup returns the registry entry when it is Valid and present on disk,
// re-verifying the archive once the verification interval has passed.
func (c *Cache) lookup(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	entry, ok, err := c.registry.get(ctx, key)
	if err != nil || !ok || entry.State != domain.CacheValid {
		return domain.CacheEntry{}, false, err
	}
	if !exists(entry.ArchivePath) || !exists(entry.ExtractedDir) {
		return domain.CacheEntry{}, false, nil
	}

	now := c.opts.Now()
	if now.Sub(entry.LastVerified) < c.opts.VerifyInterval {
		return entry, true, nil
	}

	valid, _, err := verifyFile(key, entry.ArchivePath)
	if err != nil || !valid {
		entry.State = domain.CacheCorrupt
		if perr := c.registry.put(ctx, entry); perr != nil {
			return domain.CacheEntry{}, false, perr
		}
		return domain.CacheEntry{}, false, nil
	}
	if err := c.registry.touch(ctx, key, now, entry.LastUsed); err != nil {
		return domain.CacheEntry{}, false, err
	}
	entry.LastVerified = now
	return entry, true, nil
}

// fetch downloads, verifies and extracts one archive and publishes the entry.
// The caller holds the key lock.
func (c *Cache) fetch(ctx context.Context, record *domain.PackageRecord, key string) (domain.CacheEntry, error) {
	fileName := record.FileName
	if fileName == "" {
		fileName = path.Base(record.URL)
	}
	alg, hexPart := splitKey(key)
	tmpDir := filepath.Join(c.dir, domain.TmpDirName)

	tmpArchive, size, err := c.download(ctx, record.URL, tmpDir, alg+"-"+hexPart+"-*-"+fileName)
	if tmpArchive != "" {
		defer func() { _ = os.Remove(tmpArchive) }()
	}
	if err != nil {
		return domain.CacheEntry{}, err
	}

	valid, actual, err := verifyFile(key, tmpArchive)
	if err != nil {
		return domain.CacheEntry{}, zerr.With(zerr.Wrap(err, "failed to hash archive"), "key", key)
	}
	entry := domain.CacheEntry{
		Key:          key,
		FileName:     fileName,
		URL:          record.URL,
		ArchivePath:  filepath.Join(c.dir, domain.ArchivesDirName, alg, hexPart, fileName),
		ExtractedDir: filepath.Join(c.dir, domain.PkgsDirName, alg, hexPart),
		Size:         size,
	}
	if !valid {
		entry.State = domain.CacheCorrupt
		if err := c.registry.put(ctx, entry); err != nil {
			return domain.CacheEntry{}, err
		}
		corrupt := zerr.Wrap(domain.ErrArchiveCorrupt, "archive digest mismatch")
		corrupt = zerr.With(corrupt, "key", key)
		corrupt = zerr.With(corrupt, "url", record.URL)
		corrupt = zerr.With(corrupt, "expected", key)
		return domain.CacheEntry{}, zerr.With(corrupt, "actual", actual)
	}

	tmpExtract, err := os.MkdirTemp(tmpDir, alg+"-"+hexPart+"-*.extract")
	if err != nil {
		return domain.CacheEntry{}, zerr.With(zerr.Wrap(err, "failed to create extraction directory"), "key", key)
	}
	defer func() { _ = os.RemoveAll(tmpExtract) }()

	if err := archive.Extract(ctx, tmpArchive, tmpExtract); err != nil {
		return domain.CacheEntry{}, zerr.With(err, "key", key)
	}

	if err := publish(tmpArchive, entry.ArchivePath); err != nil {
		return domain.CacheEntry{}, zerr.With(zerr.Wrap(err, "failed to store archive"), "key", key)
	}
	if err := publish(tmpExtract, entry.ExtractedDir); err != nil {
		return domain.CacheEntry{}, zerr.With(zerr.Wrap(err, "failed to store extracted package"), "key", key)
	}

	now := c.opts.Now()
	entry.State = domain.CacheValid
	entry.LastVerified = now
	entry.LastUsed = now
	if err := c.registry.put(ctx, entry); err != nil {
		return domain.CacheEntry{}, err
	}
	return entry, nil
}

// download streams url into a new temp file below dir, holding a transfer slot.
func (c *Cache) download(ctx context.Context, url, dir, pattern string) (string, int64, error) {
	if err := c.transfers.Acquire(ctx, 1); err != nil {
		return "", 0, err
	}
	defer c.transfers.Release(1)

	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", 0, zerr.With(zerr.Wrap(err, "failed to create download file"), "url", url)
	}
	name := f.Name()

	n, err := c.downloader.Download(ctx, url, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = zerr.Wrap(cerr, "failed to write download")
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return name, n, ctxErr
		}
		return name, n, err
	}
	return name, n, nil
}

// publish moves src to dst, replacing whatever stale content dst holds.
func publish(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}
	return os.Rename(src, dst)
}

func (c *Cache) lockPath(key string) string {
	alg, hexPart := splitKey(key)
	return filepath.Join(c.dir, domain.LocksDirName, alg+"-"+hexPart+".lock")
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

// handle is a leased cache entry.
type handle struct {
	cache    *Cache
	lease    string
	entry    domain.CacheEntry
	released bool
}

func (h *handle) Dir() string              { return h.entry.ExtractedDir }
func (h *handle) ArchivePath() string      { return h.entry.ArchivePath }
func (h *handle) Entry() domain.CacheEntry { return h.entry }

// Release ends the lease. Releasing twice is a no-op.
func (h *handle) Release() error {
	if h.released {
		return nil
	}
	h.released = true
	return h.cache.registry.dropLease(context.Background(), h.lease)
}
