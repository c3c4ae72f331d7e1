// Package fetch implements the Downloader port over HTTP and the local filesystem.
package fetch

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.trai.ch/envy/internal/core/domain"
	"go.trai.ch/zerr"
)

const (
	httpClientTimeout = 10 * time.Minute

	// DefaultRetries is the number of retries after the first failed attempt.
	DefaultRetries = 3
)

// Client implements ports.Downloader.
type Client struct {
	httpClient *http.Client
	retries    int
	newBackOff func() backoff.BackOff
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client (used for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithRetries sets how often a failed transfer is retried.
func WithRetries(n int) Option {
	return func(cl *Client) {
		if n >= 0 {
			cl.retries = n
		}
	}
}

// WithBackOff sets the delay policy between attempts.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(cl *Client) {
		cl.newBackOff = f
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: httpClientTimeout},
		retries:    DefaultRetries,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// resettable is satisfied by *os.File, which lets a retry start over.
type resettable interface {
	Truncate(size int64) error
	Seek(offset int64, whence int) (int64, error)
}

// Download streams rawURL into w. http(s) URLs are retried with exponential
// backoff; file:// URLs and plain paths are read once.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, downloadErr(rawURL, err)
	}

	switch u.Scheme {
	case "http", "https":
		return c.downloadHTTP(ctx, rawURL, w)
	case "file":
		return c.copyFile(ctx, rawURL, u.Path, w)
	case "":
		return c.copyFile(ctx, rawURL, rawURL, w)
	default:
		err := zerr.With(zerr.Wrap(domain.ErrNetworkFailure, "unsupported url scheme"), "scheme", u.Scheme)
		return 0, zerr.With(err, "url", rawURL)
	}
}

func (c *Client) downloadHTTP(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	var written int64
	attempt := 0

	op := func() error {
		if attempt > 0 && written > 0 {
			r, ok := w.(resettable)
			if !ok {
				return backoff.Permanent(errors.New("cannot rewind destination after partial transfer"))
			}
			if err := r.Truncate(0); err != nil {
				return backoff.Permanent(err)
			}
			if _, err := r.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(err)
			}
			written = 0
		}
		attempt++

		n, err := c.get(ctx, rawURL, w)
		written = n
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.retries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return written, ctxErr
		}
		return written, zerr.With(downloadErr(rawURL, err), "attempts", attempt)
	}
	return written, nil
}

// get performs a single attempt. Client errors are permanent.
func (c *Client) get(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, backoff.Permanent(err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, backoff.Permanent(zerr.Wrap(domain.ErrResourceNotFound, resp.Status))
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusRequestTimeout:
		return 0, statusErr(resp)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return 0, backoff.Permanent(statusErr(resp))
	case resp.StatusCode != http.StatusOK:
		return 0, statusErr(resp)
	}

	return io.Copy(w, resp.Body)
}

func (c *Client) copyFile(ctx context.Context, rawURL, path string, w io.Writer) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	//nolint:gosec // Path comes from a configured channel or record URL
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, downloadErr(rawURL, zerr.Wrap(domain.ErrResourceNotFound, err.Error()))
		}
		return 0, downloadErr(rawURL, err)
	}
	defer func() {
		_ = f.Close()
	}()

	n, err := io.Copy(w, f)
	if err != nil {
		return n, downloadErr(rawURL, err)
	}
	return n, nil
}

func statusErr(resp *http.Response) error {
	return zerr.With(zerr.New("unexpected status "+resp.Status), "status_code", resp.StatusCode)
}

func downloadErr(rawURL string, cause error) error {
	err := zerr.Wrap(domain.WithCause(domain.ErrNetworkFailure, cause), "download failed")
	return zerr.With(err, "url", rawURL)
}
