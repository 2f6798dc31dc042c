// Package imagefetch retrieves sky-camera frames from the external blob
// store. Uploads happen elsewhere; this service only ever receives URLs.
package imagefetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mkallio/skycast-go/internal/errors"
	"github.com/mkallio/skycast-go/internal/httpclient"
	"github.com/mkallio/skycast-go/internal/logging"
)

// maxImageBytes caps a single fetched frame. Sky camera uploads are capped at
// 5 MB at the uploader, anything larger is a misbehaving URL.
const maxImageBytes = 8 * 1024 * 1024

// Fetcher downloads image bytes over HTTP with an explicit timeout.
// A hung fetch is treated identically to a failed one.
type Fetcher struct {
	client  *httpclient.Client
	timeout time.Duration
	log     *slog.Logger
}

// New creates a Fetcher with the given per-fetch timeout.
func New(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: httpclient.New(&httpclient.Config{
			DefaultTimeout: timeout,
		}),
		timeout: timeout,
		log:     logging.ForService("imagefetch"),
	}
}

// NewWithClient creates a Fetcher around an existing client, used in tests.
func NewWithClient(client *httpclient.Client, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: timeout,
		log:     logging.ForService("imagefetch"),
	}
}

// Fetch downloads the image at url. Network errors, timeouts and non-2xx
// responses all surface as image-fetch errors; the caller decides whether
// that is recoverable.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, errors.Newf("image URL is empty").
			Component("imagefetch").
			Category(errors.CategoryValidation).
			Build()
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	resp, err := f.client.Get(ctx, url)
	if err != nil {
		category := errors.CategoryImageFetch
		if ctx.Err() == context.DeadlineExceeded {
			category = errors.CategoryTimeout
		}
		return nil, errors.New(fmt.Errorf("fetching sky image: %w", err)).
			Component("imagefetch").
			Category(category).
			Context("url", url).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, errors.Newf("fetching sky image: unexpected status %d", resp.StatusCode).
			Component("imagefetch").
			Category(errors.CategoryImageFetch).
			Context("url", url).
			Context("status", resp.StatusCode).
			Build()
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, errors.New(fmt.Errorf("reading sky image body: %w", err)).
			Component("imagefetch").
			Category(errors.CategoryImageFetch).
			Context("url", url).
			Build()
	}
	if len(data) > maxImageBytes {
		return nil, errors.Newf("sky image exceeds %d byte limit", maxImageBytes).
			Component("imagefetch").
			Category(errors.CategoryImageFetch).
			Context("url", url).
			Build()
	}

	f.log.Debug("Fetched sky image",
		"url", url,
		"bytes", len(data),
		"elapsed", time.Since(start).String())

	return data, nil
}
