// Package client is a small Supabase Storage client used as an optional blob
// backend for uploads.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/R3E-Network/fortivo/internal/httputil"
)

// Client is a Supabase Storage API client.
type Client struct {
	baseURL string
	http    *httputil.Client
	breaker *CircuitBreaker
}

// Config holds client configuration.
type Config struct {
	URL        string
	APIKey     string
	HTTPClient *http.Client
	MaxRetries int
	Breaker    CircuitBreakerConfig
}

// New creates a new Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("APIKey is required")
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.FailureThreshold == 0 {
		breakerCfg = DefaultCircuitBreakerConfig()
	}

	baseURL := strings.TrimSuffix(cfg.URL, "/")
	return &Client{
		baseURL: baseURL,
		http: httputil.NewClient(httputil.ClientConfig{
			BaseURL:    baseURL,
			Timeout:    30 * time.Second,
			MaxRetries: cfg.MaxRetries,
			HTTPClient: cfg.HTTPClient,
			Headers: map[string]string{
				"apikey":        cfg.APIKey,
				"Authorization": "Bearer " + cfg.APIKey,
			},
		}),
		breaker: NewCircuitBreaker(breakerCfg),
	}, nil
}

// Storage returns a storage client.
func (c *Client) Storage() *StorageClient {
	return &StorageClient{client: c}
}

// StorageClient handles storage operations.
type StorageClient struct {
	client *Client
}

// From returns a bucket client.
func (s *StorageClient) From(bucket string) *BucketClient {
	return &BucketClient{client: s.client, bucket: bucket}
}

// BucketClient handles bucket operations.
type BucketClient struct {
	client *Client
	bucket string
}

func (b *BucketClient) objectPath(path string) string {
	return "/storage/v1/object/" + url.PathEscape(b.bucket) + "/" + escapePath(path)
}

// Upload stores data at path, overwriting any existing object.
func (b *BucketClient) Upload(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := b.client.call(ctx, http.MethodPost, b.objectPath(path), contentType, data, map[string]string{"x-upsert": "true"})
	return err
}

// Download returns the object at path.
func (b *BucketClient) Download(ctx context.Context, path string) ([]byte, error) {
	return b.client.call(ctx, http.MethodGet, b.objectPath(path), "", nil, nil)
}

// Delete removes the objects at paths.
func (b *BucketClient) Delete(ctx context.Context, paths []string) error {
	body, err := json.Marshal(map[string][]string{"prefixes": paths})
	if err != nil {
		return err
	}
	_, err = b.client.call(ctx, http.MethodDelete, "/storage/v1/object/"+url.PathEscape(b.bucket), "application/json", body, nil)
	return err
}

// PublicURL returns the public URL for path.
func (b *BucketClient) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", b.client.baseURL, url.PathEscape(b.bucket), escapePath(path))
}

// Breaker exposes the circuit breaker guarding every request.
func (c *Client) Breaker() *CircuitBreaker { return c.breaker }

func (c *Client) call(ctx context.Context, method, path, contentType string, payload []byte, headers map[string]string) ([]byte, error) {
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}
	resp, err := c.http.DoBytes(ctx, method, path, contentType, payload, headers)
	if err != nil {
		c.breaker.RecordFailure(err)
		return nil, fmt.Errorf("supabase request: %w", err)
	}
	defer resp.Body.Close()

	body, err := httputil.ReadAllStrict(resp.Body, 32<<20)
	if err != nil {
		c.breaker.RecordFailure(err)
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		apiErr := decodeError(resp.StatusCode, body)
		if resp.StatusCode >= 500 {
			c.breaker.RecordFailure(apiErr)
		} else {
			c.breaker.RecordSuccess()
		}
		return nil, apiErr
	}
	c.breaker.RecordSuccess()
	return body, nil
}

// Error is a non-2xx response from Supabase.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("supabase error: status %d: %s", e.StatusCode, e.Message)
}

func decodeError(status int, body []byte) error {
	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			msg = errResp.Message
		} else if errResp.Error != "" {
			msg = errResp.Error
		}
	}
	return &Error{StatusCode: status, Message: msg}
}

func escapePath(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
