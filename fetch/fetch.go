// Package fetch downloads images over HTTP as futurize tasks.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"slices"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/time/rate"

	"github.com/caihong2050-art/futurize/futurize"
	"github.com/caihong2050-art/futurize/pkg/retry"
)

// NetworkTask is the kind tag of download controllers.
const NetworkTask = 2

const (
	defaultChunkSize = 32 << 10
	defaultMaxBytes  = 32 << 20
	// maxPrealloc bounds the buffer reserved up front from Content-Length.
	maxPrealloc = 8 << 20
)

// ErrTooLarge is returned for bodies longer than Config.MaxBytes.
var ErrTooLarge = errors.New("fetch: body too large")

// Config configures a Client.
type Config struct {
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 disables pacing
	Burst             int
	MaxAttempts       int
	ChunkSize         int
	MaxBytes          int64 // 0 means 32 MiB
	UserAgent         string
}

// DefaultConfig returns the settings used by the gallery.
func DefaultConfig() Config {
	return Config{
		Timeout:           30 * time.Second,
		RequestsPerSecond: 4,
		Burst:             4,
		MaxAttempts:       3,
		ChunkSize:         defaultChunkSize,
		MaxBytes:          defaultMaxBytes,
		UserAgent:         "futurize-gallery/1.0",
	}
}

// Transfer is the progress value of a download. Total is -1 while the
// length is unknown.
type Transfer struct {
	Read  int64
	Total int64
}

// Fraction returns Read/Total when the total is known.
func (t Transfer) Fraction() (float64, bool) {
	if t.Total <= 0 {
		return 0, false
	}
	return float64(t.Read) / float64(t.Total), true
}

// Result is a completed download.
type Result struct {
	URL         string
	ContentType string
	Body        []byte
}

// StatusError is returned for responses other than 200 OK.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch: %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Client starts download controllers.
type Client struct {
	HTTP      *http.Client
	Limiter   *rate.Limiter
	Retrier   *retry.Retrier
	UserAgent string
	ChunkSize int
	MaxBytes  int64

	opts []futurize.Option
}

// New creates a Client from cfg. opts are applied to every controller it
// starts.
func New(cfg Config, opts ...futurize.Option) *Client {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	r := retry.NewRetrier(&retry.ExponentialStrategy{
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2,
		Attempts:     max(cfg.MaxAttempts, 1),
		Jitter:       true,
	})
	r.ShouldRetry = retry.IsRetryable
	r.Logger = futurize.Logger().With("component", "fetch")

	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}

	return &Client{
		HTTP:      &http.Client{Timeout: cfg.Timeout},
		Limiter:   rate.NewLimiter(limit, max(cfg.Burst, 1)),
		Retrier:   r,
		UserAgent: cfg.UserAgent,
		ChunkSize: chunk,
		MaxBytes:  maxBytes,
		opts:      opts,
	}
}

// Image returns an unstarted controller that downloads url.
func (c *Client) Image(url string) *futurize.Controller[Transfer, *Result] {
	opts := slices.Concat(c.opts, []futurize.Option{futurize.WithName(url)})
	return futurize.Task(NetworkTask, func(h *futurize.TaskHandle[Transfer, *Result]) futurize.Progress[Transfer, *Result] {
		res, err := retry.DoWithResult(h.Context(), c.Retrier, func(ctx context.Context) (*Result, error) {
			return c.get(ctx, h, url)
		})
		switch {
		case h.IsCanceled():
			return h.Cancelled()
		case err != nil:
			return h.Fail(err)
		}
		return h.Complete(res)
	}, opts...)
}

func (c *Client) get(ctx context.Context, h *futurize.TaskHandle[Transfer, *Result], url string) (*Result, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retry.MarkRetryable(fmt.Errorf("fetch: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := &StatusError{URL: url, Code: resp.StatusCode}
		if resp.StatusCode >= 500 {
			return nil, retry.MarkRetryable(err)
		}
		return nil, err
	}
	if resp.ContentLength > c.MaxBytes {
		return nil, fmt.Errorf("%w: %s declares %d bytes, limit %d", ErrTooLarge, url, resp.ContentLength, c.MaxBytes)
	}

	body, err := c.read(ctx, h, resp)
	if err != nil {
		return nil, err
	}
	return &Result{URL: url, ContentType: contentType(resp.Header.Get("Content-Type"), body), Body: body}, nil
}

func (c *Client) read(ctx context.Context, h *futurize.TaskHandle[Transfer, *Result], resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if resp.ContentLength > 0 {
		buf.Grow(int(min(resp.ContentLength, c.MaxBytes, maxPrealloc)))
	}
	body := io.LimitReader(resp.Body, c.MaxBytes+1)
	chunk := make([]byte, c.ChunkSize)
	progress := Transfer{Total: resp.ContentLength}

	for {
		if h.IsCanceled() {
			return nil, context.Canceled
		}
		n, err := body.Read(chunk)
		if n > 0 {
			progress.Read += int64(n)
			if progress.Read > c.MaxBytes {
				return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, c.MaxBytes)
			}
			buf.Write(chunk[:n])
			h.Report(progress)
		}
		if errors.Is(err, io.EOF) {
			return buf.Bytes(), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, retry.MarkRetryable(fmt.Errorf("fetch: read body: %w", err))
		}
	}
}

// contentType prefers the response header and sniffs the body when the
// server sent nothing useful.
func contentType(header string, body []byte) string {
	if mt, _, err := mime.ParseMediaType(header); err == nil && mt != "application/octet-stream" {
		return mt
	}
	mt, _, _ := mime.ParseMediaType(mimetype.Detect(body).String())
	return mt
}

// PicsumURL returns the Lorem Picsum image for seed at the given size.
func PicsumURL(seed, width, height int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%d/%d/%d", seed, width, height)
}
