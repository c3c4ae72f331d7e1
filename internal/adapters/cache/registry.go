package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	key           TEXT PRIMARY KEY,
	file_name     TEXT NOT NULL,
	url           TEXT NOT NULL,
	archive_path  TEXT NOT NULL,
	extracted_dir TEXT NOT NULL,
	state         TEXT NOT NULL,
	size          INTEGER NOT NULL DEFAULT 0,
	last_verified INTEGER NOT NULL DEFAULT 0,
	last_used     INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS leases (
	id      TEXT PRIMARY KEY,
	key     TEXT NOT NULL,
	expires INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS leases_key ON leases (key);
`

// registry persists cache entries and leases in sqlite.
type registry struct {
	db *sql.DB
}

func openRegistry(ctx context.Context, path string) (*registry, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheOpenFailed.Error()), "registry", path)
	}
	// One connection serializes writers of this process; other processes wait on busy_timeout.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, zerr.With(zerr.Wrap(err, domain.ErrCacheOpenFailed.Error()), "registry", path)
	}
	return &registry{db: db}, nil
}

func (r *registry) close() error {
	return r.db.Close()
}

const entryColumns = `key, file_name, url, archive_path, extracted_dir, state, size, last_verified, last_used`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (domain.CacheEntry, error) {
	var (
		e                  domain.CacheEntry
		state              string
		verified, lastUsed int64
	)
	if err := s.Scan(&e.Key, &e.FileName, &e.URL, &e.ArchivePath, &e.ExtractedDir,
		&state, &e.Size, &verified, &lastUsed); err != nil {
		return domain.CacheEntry{}, err
	}
	e.State = domain.CacheState(state)
	e.LastVerified = fromUnix(verified)
	e.LastUsed = fromUnix(lastUsed)
	return e, nil
}

// get returns the entry for key, or ok=false when there is none.
func (r *registry) get(ctx context.Context, key string) (domain.CacheEntry, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE key = ?`, key)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CacheEntry{}, false, nil
	}
	if err != nil {
		return domain.CacheEntry{}, false, registryErr(err, key)
	}
	return e, true, nil
}

func (r *registry) put(ctx context.Context, e domain.CacheEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO entries (`+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			file_name = excluded.file_name,
			url = excluded.url,
			archive_path = excluded.archive_path,
			extracted_dir = excluded.extracted_dir,
			state = excluded.state,
			size = excluded.size,
			last_verified = excluded.last_verified,
			last_used = excluded.last_used
	`,
		e.Key, e.FileName, e.URL, e.ArchivePath, e.ExtractedDir, string(e.State),
		e.Size, toUnix(e.LastVerified), toUnix(e.LastUsed),
	)
	if err != nil {
		return registryErr(err, e.Key)
	}
	return nil
}

func (r *registry) touch(ctx context.Context, key string, verified, used time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entries SET last_verified = MAX(last_verified, ?), last_used = ? WHERE key = ?`,
		toUnix(verified), toUnix(used), key)
	if err != nil {
		return registryErr(err, key)
	}
	return nil
}

func (r *registry) remove(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE key = ?`, key); err != nil {
		return registryErr(err, key)
	}
	return nil
}

// list returns every entry ordered by key, with RefCount set from the leases alive at now.
func (r *registry) list(ctx context.Context, now time.Time) ([]domain.CacheEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`,
			(SELECT COUNT(*) FROM leases l WHERE l.key = e.key AND l.expires > ?)
		FROM entries e
		ORDER BY key
	`, toUnix(now))
	if err != nil {
		return nil, registryErr(err, "")
	}
	defer func() { _ = rows.Close() }()

	var entries []domain.CacheEntry
	for rows.Next() {
		var (
			e                  domain.CacheEntry
			state              string
			verified, lastUsed int64
		)
		if err := rows.Scan(&e.Key, &e.FileName, &e.URL, &e.ArchivePath, &e.ExtractedDir,
			&state, &e.Size, &verified, &lastUsed, &e.RefCount); err != nil {
			return nil, registryErr(err, "")
		}
		e.State = domain.CacheState(state)
		e.LastVerified = fromUnix(verified)
		e.LastUsed = fromUnix(lastUsed)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, registryErr(err, "")
	}
	return entries, nil
}

func (r *registry) addLease(ctx context.Context, id, key string, expires time.Time) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO leases (id, key, expires) VALUES (?, ?, ?)`,
		id, key, toUnix(expires))
	if err != nil {
		return registryErr(err, key)
	}
	return nil
}

func (r *registry) dropLease(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM leases WHERE id = ?`, id); err != nil {
		return registryErr(err, "")
	}
	return nil
}

// pruneLeases deletes leases that expired before now.
func (r *registry) pruneLeases(ctx context.Context, now time.Time) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM leases WHERE expires <= ?`, toUnix(now)); err != nil {
		return registryErr(err, "")
	}
	return nil
}

func registryErr(err error, key string) error {
	wrapped := zerr.Wrap(err, domain.ErrCacheRegistryFailed.Error())
	if key == "" {
		return wrapped
	}
	return zerr.With(wrapped, "key", key)
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
