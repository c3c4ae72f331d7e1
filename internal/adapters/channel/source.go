// Package channel retrieves channel indexes (repodata.json) and keeps a local copy of each.
package channel

import (
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/envy/internal/core/ports"
	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"
)

// RepodataFileName is the index document of a channel subdir.
const RepodataFileName = "repodata.json"

// Source implements ports.RepodataSource with a TTL bound file cache.
type Source struct {
	downloader ports.Downloader
	logger     ports.Logger
	dir        string
	ttl        time.Duration
	now        func() time.Time
	group      singleflight.Group
}

// NewSource creates a Source caching documents below dir for ttl.
// A zero ttl always refetches; the cached copy then only serves as a fallback.
func NewSource(downloader ports.Downloader, logger ports.Logger, dir string, ttl time.Duration) *Source {
	return &Source{
		downloader: downloader,
		logger:     logger,
		dir:        filepath.Clean(dir),
		ttl:        ttl,
		now:        time.Now,
	}
}

// Fetch returns the repodata.json of channel/subdir. A subdir the channel
// does not carry yields (nil, nil). When the channel cannot be reached a
// stale cached copy is used.
func (s *Source) Fetch(ctx context.Context, channel domain.Channel, subdir string) ([]byte, error) {
	url := channel.SubdirURL(subdir) + "/" + RepodataFileName
	v, err, _ := s.group.Do(url, func() (any, error) {
		return s.fetch(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	data, _ := v.([]byte)
	return data, nil
}

func (s *Source) fetch(ctx context.Context, url string) ([]byte, error) {
	path := s.cachePath(url)

	cached, fresh := s.readCache(path)
	if fresh {
		s.logger.Debug("using cached index " + url)
		return cached, nil
	}

	data, err := s.download(ctx, url)
	switch {
	case err == nil:
		if werr := atomicWriteFile(path, data); werr != nil {
			s.logger.Warn("failed to cache index " + url + ": " + werr.Error())
		}
		return data, nil
	case errors.Is(err, domain.ErrResourceNotFound):
		return nil, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case cached != nil:
		s.logger.Warn("using stale index " + url + ": " + err.Error())
		return cached, nil
	default:
		return nil, zerr.With(domain.WithCause(domain.ErrChannelFetchFailed, err), "url", url)
	}
}

func (s *Source) download(ctx context.Context, url string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := s.downloader.Download(ctx, url, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// readCache returns the cached document and whether it is younger than the TTL.
func (s *Source) readCache(path string) ([]byte, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, false
	}
	//nolint:gosec // Path is below the repodata cache
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, s.ttl > 0 && s.now().Sub(info.ModTime()) < s.ttl
}

func (s *Source) cachePath(url string) string {
	return filepath.Join(s.dir, strconv.FormatUint(xxhash.Sum64String(url), 16)+".json")
}

// atomicWriteFile writes data to a temp file and renames it over path.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(dir, "repodata-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); !errors.Is(statErr, fs.ErrNotExist) {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
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
