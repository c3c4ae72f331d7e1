// Package prefix persists the installed state of a prefix in its conda-meta directory.
package prefix

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/envy/internal/adapters/filelock" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

// Store implements ports.PrefixStore.
type Store struct {
	now func() time.Time
}

// New creates a Store.
func New() *Store {
	return &Store{now: time.Now}
}

// journal is the content of the in-flight transaction marker.
type journal struct {
	Transaction uuid.UUID `json:"transaction"`
	StartedAt   time.Time `json:"started_at"`
	Operations  []string  `json:"operations"`
}

// Load reads every record below conda-meta. Records are sorted by name; when
// a name is recorded twice the newest record comes first.
func (s *Store) Load(ctx context.Context, prefix string) (domain.PrefixState, error) {
	var state domain.PrefixState
	meta := domain.CondaMetaPath(prefix)

	items, err := os.ReadDir(meta)
	if errors.Is(err, fs.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, zerr.With(domain.WithCause(domain.ErrPrefixRecordReadFailed, err), "prefix", prefix)
	}

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return state, err
		}
		name := item.Name()
		if item.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := readRecord(filepath.Join(meta, name))
		if err != nil {
			state.Issues = append(state.Issues, err)
			continue
		}
		rec.Broken = missingFiles(prefix, rec)
		state.Records = append(state.Records, rec)
	}

	slices.SortStableFunc(state.Records, func(a, b *domain.PrefixRecord) int {
		if c := a.Name.Compare(b.Name); c != 0 {
			return c
		}
		if c := cmp.Compare(b.InstalledAt, a.InstalledAt); c != 0 {
			return c
		}
		return b.Version.Compare(a.Version)
	})

	if j, ok, err := readJournal(meta); err != nil {
		state.Issues = append(state.Issues, err)
	} else if ok {
		issue := zerr.Wrap(domain.ErrPartialTransaction, "prefix holds an interrupted transaction")
		issue = zerr.With(issue, "transaction", j.Transaction.String())
		issue = zerr.With(issue, "started_at", j.StartedAt.Format(time.RFC3339))
		state.Issues = append(state.Issues, zerr.With(issue, "prefix", prefix))
	}

	return state, nil
}

func readRecord(path string) (*domain.PrefixRecord, error) {
	//nolint:gosec // Path is below conda-meta
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrPrefixRecordReadFailed, err), "path", path)
	}
	var rec domain.PrefixRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrPrefixRecordReadFailed, err), "path", path)
	}
	if rec.Name.IsZero() {
		return nil, zerr.With(zerr.Wrap(domain.ErrPrefixRecordReadFailed, "record has no name"), "path", path)
	}
	return &rec, nil
}

// missingFiles reports whether a file the record installed is gone.
func missingFiles(prefix string, rec *domain.PrefixRecord) bool {
	paths := rec.Files
	if len(rec.PathsData.Paths) > 0 {
		paths = paths[:0:0]
		for _, e := range rec.PathsData.Paths {
			if e.PathType != domain.PathDirectory {
				paths = append(paths, e.Path)
			}
		}
	}
	for _, p := range paths {
		if _, err := os.Lstat(filepath.Join(prefix, filepath.FromSlash(p))); err != nil {
			return true
		}
	}
	return false
}

// Lock takes the prefix lock without waiting.
func (s *Store) Lock(prefix string) (func() error, error) {
	lock, err := filelock.TryLock(filepath.Join(domain.CondaMetaPath(prefix), domain.PrefixLockFileName))
	if errors.Is(err, filelock.ErrContended) {
		return nil, zerr.With(zerr.Wrap(domain.ErrPrefixLocked, "cannot start transaction"), "prefix", prefix)
	}
	if err != nil {
		return nil, zerr.With(domain.WithCause(domain.ErrPrefixCreateFailed, err), "prefix", prefix)
	}
	return lock.Unlock, nil
}

// Write persists rec as conda-meta/<name>-<version>-<build>.json.
func (s *Store) Write(prefix string, rec *domain.PrefixRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return zerr.With(domain.WithCause(domain.ErrPrefixRecordWriteFailed, err), "package", rec.Identity())
	}
	path := filepath.Join(domain.CondaMetaPath(prefix), rec.MetaFileName())
	if err := atomicWriteFile(path, data); err != nil {
		return zerr.With(domain.WithCause(domain.ErrPrefixRecordWriteFailed, err), "path", path)
	}
	return nil
}

// Delete removes the record file of rec. A missing file is not an error.
func (s *Store) Delete(prefix string, rec *domain.PrefixRecord) error {
	path := filepath.Join(domain.CondaMetaPath(prefix), rec.MetaFileName())
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(domain.WithCause(domain.ErrPrefixRecordWriteFailed, err), "path", path)
	}
	return nil
}

// BeginJournal records tx as in flight.
func (s *Store) BeginJournal(prefix string, tx domain.Transaction) error {
	j := journal{Transaction: tx.ID, StartedAt: s.now().UTC()}
	for _, op := range tx.Operations {
		j.Operations = append(j.Operations, domain.DescribeOperation(op))
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return domain.WithCause(domain.ErrPrefixRecordWriteFailed, err)
	}
	path := filepath.Join(domain.CondaMetaPath(prefix), domain.JournalFileName)
	if err := atomicWriteFile(path, data); err != nil {
		return zerr.With(domain.WithCause(domain.ErrPrefixRecordWriteFailed, err), "path", path)
	}
	return nil
}

// EndJournal removes the in-flight marker.
func (s *Store) EndJournal(prefix string) error {
	path := filepath.Join(domain.CondaMetaPath(prefix), domain.JournalFileName)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(domain.WithCause(domain.ErrPrefixRecordWriteFailed, err), "path", path)
	}
	return nil
}

func readJournal(meta string) (journal, bool, error) {
	path := filepath.Join(meta, domain.JournalFileName)
	//nolint:gosec // Path is below conda-meta
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return journal{}, false, nil
	}
	if err != nil {
		return journal{}, false, zerr.With(domain.WithCause(domain.ErrPrefixRecordReadFailed, err), "path", path)
	}
	var j journal
	if err := json.Unmarshal(data, &j); err != nil {
		// An unreadable marker still means the last run did not finish.
		return journal{}, true, nil
	}
	return j, true, nil
}

// atomicWriteFile writes data to a temp file next to path and renames it into place.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*.json")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, domain.FilePerm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
