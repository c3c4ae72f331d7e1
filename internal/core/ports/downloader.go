package ports

import (
	"context"
	"io"
)

// Downloader retrieves a resource by URL.
//
//go:generate mockgen -source=downloader.go -destination=mocks/mock_downloader.go -package=mocks
type Downloader interface {
	// Download streams the resource at url into w and returns the number of bytes written.
	// Failures that are worth retrying wrap domain.ErrNetworkFailure.
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}
