// Package downloader streams product images to disk. Every failure mode
// that can leave a truncated file behind removes the file, so the resume
// check (file exists and is non-empty) stays trustworthy across runs.
package downloader

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	errs "yupoocrawl/pkg/errors"
	"yupoocrawl/pkg/logger"
	"yupoocrawl/pkg/retry"
	"yupoocrawl/pkg/storage"
)

// chunkSize is the streaming copy buffer size
const chunkSize = 8 * 1024

// Fetcher is the slice of the session client the downloader needs
type Fetcher interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
}

// Downloader fetches images over an authenticated session with its own
// pacing, independent of the page-fetch limiter.
type Downloader struct {
	client      Fetcher
	limiter     *rate.Limiter
	maxRetries  int
	backoffUnit time.Duration
	timeout     time.Duration
	logger      logger.Logger
}

// Options tune a downloader; zero values get defaults
type Options struct {
	ImageDelay  time.Duration
	MaxRetries  int
	BackoffUnit time.Duration
	Timeout     time.Duration
}

// New creates a downloader over an existing session client
func New(client Fetcher, opts Options, log logger.Logger) *Downloader {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	limit := rate.Inf
	if opts.ImageDelay > 0 {
		limit = rate.Every(opts.ImageDelay)
	}

	return &Downloader{
		client:      client,
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  opts.MaxRetries,
		backoffUnit: opts.BackoffUnit,
		timeout:     opts.Timeout,
		logger:      log,
	}
}

// Download streams one image to dest. It returns wrote=false with a nil
// error when the file is already materialized, so callers can distinguish
// new downloads from resumed skips. On exhausted retries no partial file
// remains.
func (d *Downloader) Download(ctx context.Context, rawURL, dest string) (wrote bool, err error) {
	dir := filepath.Dir(dest)
	id := filepath.Base(dest)
	ext := filepath.Ext(id)
	id = id[:len(id)-len(ext)]

	if storage.HasImage(dir, id, ext) {
		d.logger.DebugWithFields("image already downloaded, skipping", map[string]interface{}{
			"image_id": id,
		})
		return false, nil
	}

	cfg := &retry.Config{
		MaxAttempts: d.maxRetries,
		Backoff: &retry.LinearBackoff{
			BaseDelay: d.backoffUnit,
			Increment: d.backoffUnit,
		},
		RetryIf: retry.DefaultRetryIf,
		Context: ctx,
		Logger:  d.logger,
	}

	err = retry.Do(func() error {
		return d.fetchOnce(ctx, rawURL, dest)
	}, cfg)

	if err != nil {
		os.Remove(dest)
		return false, err
	}
	return true, nil
}

// fetchOnce performs a single download attempt. Any error after the file
// was created removes it before returning.
func (d *Downloader) fetchOnce(ctx context.Context, rawURL, dest string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	resp, err := d.client.Get(reqCtx, rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errType := errs.ErrorTypeUnknown
		if errs.IsRetryableStatusCode(resp.StatusCode) {
			errType = errs.ErrorTypeServerError
		}
		return errs.New(errType, resp.StatusCode, "image fetch returned status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create directory for %s", dest)
	}

	f, err := os.Create(dest)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create %s", dest)
	}

	buf := make([]byte, chunkSize)
	written, copyErr := io.CopyBuffer(f, resp.Body, buf)
	closeErr := f.Close()

	if copyErr != nil {
		os.Remove(dest)
		return errs.Wrap(errs.ErrorTypeNetwork, copyErr, "stream interrupted for %s", rawURL)
	}
	if closeErr != nil {
		os.Remove(dest)
		return errs.Wrap(errs.ErrorTypeUnknown, closeErr, "failed to finalize %s", dest)
	}
	if written == 0 {
		os.Remove(dest)
		return errs.New(errs.ErrorTypeNetwork, 0, "empty response body for %s", rawURL)
	}

	d.logger.DebugWithFields("image downloaded", map[string]interface{}{
		"dest":  dest,
		"bytes": written,
	})
	return nil
}
