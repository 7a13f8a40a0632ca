package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrGone: the remote object no longer exists (expired draft, revoked URL).
// Callers map this to a "please regenerate" condition; everything else is a
// transport-level failure.
var ErrGone = errors.New("remote object gone")

// Client streams remote bytes with a hard per-request deadline. Used for the
// private-draft pass-through and for copying external sources into a tier.
type Client struct {
	HTTP    *http.Client
	Timeout time.Duration
}

func New(timeout time.Duration) *Client {
	return &Client{
		HTTP:    &http.Client{Timeout: timeout},
		Timeout: timeout,
	}
}

// Get returns the body stream and the original Content-Type. The caller owns
// the ReadCloser. The deadline covers the whole transfer, not just headers.
func (c *Client) Get(ctx context.Context, url string) (io.ReadCloser, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, "", err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		cancel()
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusGone, http.StatusForbidden:
		resp.Body.Close()
		cancel()
		return nil, "", fmt.Errorf("fetch %s: status %d: %w", url, resp.StatusCode, ErrGone)
	default:
		resp.Body.Close()
		cancel()
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return &cancelReadCloser{rc: resp.Body, cancel: cancel}, ct, nil
}

// cancelReadCloser ties the request context to the body's lifetime.
type cancelReadCloser struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.rc.Close()
}
