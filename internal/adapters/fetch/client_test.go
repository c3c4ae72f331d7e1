package fetch_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/envy/internal/adapters/fetch"
	"go.trai.ch/envy/internal/core/domain"
)

func newClient(retries int) *fetch.Client {
	return fetch.New(
		fetch.WithRetries(retries),
		fetch.WithBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
}

func TestClient_DownloadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := newClient(0).Download(context.Background(), srv.URL+"/pkg.conda", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "payload", buf.String())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	_, err := newClient(3).Download(context.Background(), srv.URL, &buf)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "ok", buf.String())
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newClient(2).Download(context.Background(), srv.URL, &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ClientErrorsArePermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newClient(3).Download(context.Background(), srv.URL+"/missing", &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)

	_, err = newClient(3).Download(context.Background(), srv.URL+"/forbidden", &bytes.Buffer{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrResourceNotFound)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_RewindsFileBetweenAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Content-Length", "100")
			_, _ = w.Write([]byte("partial"))
			return
		}
		_, _ = w.Write([]byte("complete"))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "download")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	n, err := newClient(2).Download(context.Background(), srv.URL, f)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "complete", string(data))
}

func TestClient_DownloadLocal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repodata.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), domain.FilePerm))

	var buf bytes.Buffer
	_, err := newClient(0).Download(context.Background(), "file://"+path, &buf)
	require.NoError(t, err)
	assert.Equal(t, "{}", buf.String())

	buf.Reset()
	_, err = newClient(0).Download(context.Background(), path, &buf)
	require.NoError(t, err)
	assert.Equal(t, "{}", buf.String())

	_, err = newClient(0).Download(context.Background(), filepath.Join(dir, "nope.json"), &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrResourceNotFound)
}

func TestClient_Cancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newClient(3).Download(ctx, srv.URL, &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestClient_UnsupportedScheme(t *testing.T) {
	_, err := newClient(0).Download(context.Background(), "ftp://example.com/x", &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetworkFailure)
}
