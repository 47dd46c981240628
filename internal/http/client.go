package http

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	ioutils "github.com/handiism/naip-downloader/internal/io"
	"github.com/handiism/naip-downloader/internal/model"
)

// Options configures a Client.
type Options struct {
	// Timeout bounds a whole listing request, body included. For file
	// downloads it bounds the wait for the response and every gap between
	// received chunks, so a large file streaming steadily is never cut off.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MaxRetries is the number of attempts made for a retryable failure.
	// Values below 1 are treated as 1.
	MaxRetries int

	// RetryCooldown is the wait before the second attempt.
	RetryCooldown time.Duration

	// RetryExponent multiplies the cooldown after every failed attempt.
	RetryExponent float64

	// Transport overrides the default round tripper. Nil uses http.DefaultTransport.
	Transport http.RoundTripper
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Timeout:       60 * time.Second,
		UserAgent:     "naip-downloader",
		MaxRetries:    3,
		RetryCooldown: time.Second,
		RetryExponent: 2,
	}
}

// Client wraps HTTP operations against the Box shared-folder UI.
//
// Client provides:
//   - Configured User-Agent header
//   - Timeout handling (whole request for listings, idle time for downloads)
//   - Retry of transient failures (network errors, 429, 5xx) with exponential cooldown
//   - Atomic file download with progress tracking
//
// Example usage:
//
//	client := NewClient(DefaultOptions(), logger)
//
//	// Fetch a listing page
//	page, err := client.Get(ctx, "https://nrcs.app.box.com/v/naip/folder/17936490251?page=1")
//
//	// Download file with progress
//	n, err := client.DownloadFile(ctx, fileURL, "/data/2021/MS/ms_m_2021/ms_m_2021.zip", func(written, total int64) {
//	    fmt.Printf("%d / %d\n", written, total)
//	})
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	opts         Options
	logger       zerolog.Logger
}

// NewClient creates a new HTTP client from opts.
func NewClient(opts Options, logger zerolog.Logger) *Client {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	if opts.RetryExponent <= 0 {
		opts.RetryExponent = 1
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		streamClient: &http.Client{Transport: opts.Transport},
		opts:         opts,
		logger:       logger.With().Str("component", "http").Logger(),
	}
}

// ProgressWriter wraps a writer to track download progress.
//
// Example:
//
//	pw := &ProgressWriter{
//	    Writer: file,
//	    Total:  contentLength,
//	    OnUpdate: func(written, total int64) {
//	        fmt.Printf("%d / %d bytes\n", written, total)
//	    },
//	}
//	io.Copy(pw, response.Body)
type ProgressWriter struct {
	// Writer is the underlying writer to write data to.
	Writer io.Writer

	// Total is the expected total bytes (from Content-Length header), -1 if unknown.
	Total int64

	// Written is the current number of bytes written.
	Written int64

	// OnUpdate is called after each Write with current progress.
	OnUpdate func(written, total int64)
}

// Write implements io.Writer, tracking progress and calling OnUpdate.
func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.Writer.Write(p)
	pw.Written += int64(n)
	if pw.OnUpdate != nil {
		pw.OnUpdate(pw.Written, pw.Total)
	}
	return n, err
}

// Get performs a GET request and returns the response body as bytes.
//
// Returns a *model.TransportError when the request fails or the status is
// not 200 OK. Retryable failures are attempted up to MaxRetries times.
//
// Example:
//
//	data, err := client.Get(ctx, listingURL)
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := c.withRetry(ctx, url, func() error {
		resp, err := c.do(ctx, c.httpClient, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &model.TransportError{URL: url, Err: err}
		}
		return nil
	})
	return body, err
}

// DownloadFile streams url to destPath and returns the number of bytes written.
//
// Data is written to destPath + ".part" and renamed to destPath once the body
// has been fully received, so destPath only ever holds complete files. An
// interrupted or failed download leaves no file behind under destPath.
//
// The transfer itself is not time limited. An attempt fails with a retryable
// transport error once no data has arrived for Options.Timeout.
//
// Parameters:
//   - ctx: Context for cancellation
//   - url: URL to download from
//   - destPath: Local file path to save to
//   - onProgress: Optional callback called with (bytesWritten, totalBytes).
//     Pass nil to disable progress tracking.
func (c *Client) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) (int64, error) {
	tmpPath := destPath + ioutils.PartialSuffix

	var written int64
	err := c.withRetry(ctx, url, func() error {
		n, err := c.downloadOnce(ctx, url, tmpPath, onProgress)
		written = n
		return err
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}

	if err := ioutils.CommitFile(tmpPath, destPath); err != nil {
		return 0, err
	}
	return written, nil
}

func (c *Client) downloadOnce(ctx context.Context, url, tmpPath string, onProgress func(written, total int64)) (int64, error) {
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	wd := newWatchdog(c.opts.Timeout, func() { cancel(errStalled) })
	defer wd.stop()

	n, err := c.stream(attemptCtx, url, tmpPath, wd, onProgress)
	if err != nil && ctx.Err() == nil && errors.Is(context.Cause(attemptCtx), errStalled) {
		return n, &model.TransportError{URL: url, Err: errStalled}
	}
	return n, err
}

func (c *Client) stream(ctx context.Context, url, tmpPath string, wd *watchdog, onProgress func(written, total int64)) (int64, error) {
	resp, err := c.do(ctx, c.streamClient, url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	file, err := os.Create(tmpPath)
	if err != nil {
		return 0, err
	}

	var writer io.Writer = file
	if onProgress != nil {
		writer = &ProgressWriter{
			Writer:   file,
			Total:    resp.ContentLength,
			OnUpdate: onProgress,
		}
	}

	n, copyErr := io.Copy(writer, &watchedReader{r: resp.Body, wd: wd})
	closeErr := file.Close()
	if copyErr != nil {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		return n, &model.TransportError{URL: url, Err: copyErr}
	}
	return n, closeErr
}

// do sends a single GET and returns the response only for 200 OK.
func (c *Client) do(ctx context.Context, hc *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &model.TransportError{URL: url, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &model.TransportError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// withRetry runs op until it succeeds, fails with a non-retryable error or
// the attempts are exhausted.
func (c *Client) withRetry(ctx context.Context, url string, op func() error) error {
	var err error
	for tries := 0; tries < c.opts.MaxRetries; tries++ {
		err = op()
		if err == nil || !retryable(err) || tries == c.opts.MaxRetries-1 {
			break
		}

		cooldown := c.cooldown(tries)
		c.logger.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", tries+1).
			Int("max_attempts", c.opts.MaxRetries).
			Dur("cooldown", cooldown).
			Msg("retrying request")

		if werr := wait(ctx, cooldown); werr != nil {
			return werr
		}
	}
	return err
}

func (c *Client) cooldown(tries int) time.Duration {
	factor := math.Pow(c.opts.RetryExponent, float64(tries))
	return time.Duration(float64(c.opts.RetryCooldown) * factor)
}

func retryable(err error) bool {
	var te *model.TransportError
	return errors.As(err, &te) && te.Retryable()
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
