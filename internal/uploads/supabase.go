package uploads

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/R3E-Network/fortivo/internal/httputil"
	supabase "github.com/R3E-Network/fortivo/supabase/client"
)

// SupabaseStore keeps blobs in a Supabase Storage bucket using "<kind>/<name>"
// object keys.
type SupabaseStore struct {
	bucket   *supabase.BucketClient
	breaker  *supabase.CircuitBreaker
	maxBytes int64
}

// NewSupabaseStore wraps a Supabase client bucket.
func NewSupabaseStore(client *supabase.Client, bucket string, maxBytes int64) *SupabaseStore {
	return &SupabaseStore{bucket: client.Storage().From(bucket), breaker: client.Breaker(), maxBytes: maxBytes}
}

// Breaker returns the circuit breaker of the underlying client.
func (s *SupabaseStore) Breaker() *supabase.CircuitBreaker { return s.breaker }

func (s *SupabaseStore) Save(ctx context.Context, kind Kind, originalName, contentType string, r io.Reader) (Object, error) {
	data, truncated, err := httputil.ReadAllWithLimit(r, s.maxBytes)
	if err != nil {
		return Object{}, err
	}
	if truncated {
		return Object{}, ErrTooLarge
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	name := GenerateName(originalName)
	if err := s.bucket.Upload(ctx, string(kind)+"/"+name, data, contentType); err != nil {
		return Object{}, err
	}
	return Object{
		Kind:        kind,
		Name:        name,
		Path:        URLPath(kind, name),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, p string) error {
	key, err := objectKey(p)
	if err != nil {
		return err
	}
	return s.bucket.Delete(ctx, []string{key})
}

func (s *SupabaseStore) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	key, err := objectKey(p)
	if err != nil {
		return nil, err
	}
	data, err := s.bucket.Download(ctx, key)
	if err != nil {
		var apiErr *supabase.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusNotFound || apiErr.StatusCode == http.StatusBadRequest) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// PublicURL maps a blob path to the bucket's public object URL.
func (s *SupabaseStore) PublicURL(p string) (string, error) {
	key, err := objectKey(p)
	if err != nil {
		return "", err
	}
	return s.bucket.PublicURL(key), nil
}

func objectKey(p string) (string, error) {
	kind, name, err := ParsePath(p)
	if err != nil {
		return "", err
	}
	return string(kind) + "/" + name, nil
}
