package dab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	UserAgent  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/1337.0.0.0 Safari/537.36"
	DABAPIBase = "https://dabmusic.xyz/api"
)

type Client struct {
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Token      string
	BaseURL    string
}

// NewClient builds a client that sends at most one request per interval.
// A zero interval keeps the default of 15 requests per 10 seconds.
func NewClient(token string, interval time.Duration) *Client {
	if interval <= 0 {
		interval = 666 * time.Millisecond
	}
	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Limiter:    rate.NewLimiter(rate.Every(interval), 1),
		Token:      token,
		BaseURL:    DABAPIBase,
	}
}

// Do handles the low-level HTTP headers and rate limiting
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Cookie", fmt.Sprintf("session=%s", c.Token))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Referer", "https://dabmusic.xyz/")
	req.Header.Set("Origin", "https://dabmusic.xyz")

	return c.HTTPClient.Do(req.WithContext(ctx))
}

// DoRequest encodes body as JSON, sends it to path and decodes the reply
// into result when result is non-nil.
func (c *Client) DoRequest(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return err
	}

	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Method: method, Path: path, Status: resp.StatusCode}
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// APIError is a non-2xx reply.
type APIError struct {
	Method string
	Path   string
	Status int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("DAB API error: %s %s: status %d", e.Method, e.Path, e.Status)
}
