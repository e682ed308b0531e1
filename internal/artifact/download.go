package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/logging"
)

const (
	// maxRedirects bounds how many redirects a download may follow.
	maxRedirects = 10
	// defaultBackoff is the delay before the first retry; it doubles after.
	defaultBackoff = time.Second
)

// Fetcher downloads artifacts into memory and checks their integrity.
//
// By default a Fetcher makes exactly one request per call and never times
// out. WithTimeout and WithRetries add a wrapping policy around that.
type Fetcher struct {
	client   *http.Client
	retries  int
	backoff  time.Duration
	verifier *Verifier
	log      logging.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithTimeout bounds each request. Zero means no timeout. The client is
// copied first, so one passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		c := *f.client
		c.Timeout = d
		f.client = &c
	}
}

// WithRetries retries failed requests n times with exponential backoff.
// Integrity failures are never retried.
func WithRetries(n int) FetcherOption {
	return func(f *Fetcher) {
		if n < 0 {
			n = 0
		}
		f.retries = n
	}
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.log = logging.OrNop(l)
	}
}

// NewFetcher creates a fetcher.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		backoff: defaultBackoff,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.verifier = NewVerifier(f.log)
	return f
}

// Fetch downloads url and verifies it against the expected SHA-256 hex
// digest. A hash mismatch yields an *IntegrityError; an empty body that
// somehow matched yields ErrEmptyContent.
func (f *Fetcher) Fetch(ctx context.Context, url, sha256 string) ([]byte, error) {
	f.log.Debug("fetching", "url", url)

	data, err := f.Get(ctx, url)
	if err != nil {
		return nil, err
	}

	if err := f.verifier.VerifySHA256(data, sha256); err != nil {
		var ie *IntegrityError
		if errors.As(err, &ie) {
			ie.URL = url
		}
		return nil, err
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", url, ErrEmptyContent)
	}

	return data, nil
}

// Get downloads url without verifying it.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= f.retries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		if attempt > 0 {
			wait := f.backoff << uint(attempt-1)
			f.log.Debug("retrying download", "url", url, "attempt", attempt, "wait", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		data, err := f.getOnce(ctx, url)
		if err == nil {
			return data, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	if f.retries > 0 {
		return nil, fmt.Errorf("download failed after %d retries: %w", f.retries, lastErr)
	}
	return nil, lastErr
}

// getOnce performs a single download attempt
func (f *Fetcher) getOnce(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return data, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s for %s", e.Status, e.URL)
}
