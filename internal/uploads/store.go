// Package uploads stores avatar and document blobs on local disk or in
// Supabase Storage.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Kind groups blobs by purpose.
type Kind string

const (
	KindAvatars   Kind = "avatars"
	KindDocuments Kind = "documents"
)

// Kinds lists every blob kind.
var Kinds = []Kind{KindAvatars, KindDocuments}

// URLPrefix is the public path under which blobs are served.
const URLPrefix = "/uploads/"

var (
	// ErrTooLarge is returned when a blob exceeds the configured size.
	ErrTooLarge = errors.New("uploads: file too large")
	// ErrNotFound is returned for unknown blob paths.
	ErrNotFound = errors.New("uploads: not found")
	// ErrInvalidPath is returned for paths outside URLPrefix.
	ErrInvalidPath = errors.New("uploads: invalid path")
)

// Object describes a stored blob.
type Object struct {
	Kind        Kind
	Name        string
	Path        string
	Size        int64
	ContentType string
}

// Store persists blobs.
type Store interface {
	// Save writes r under a generated name that keeps originalName's extension.
	Save(ctx context.Context, kind Kind, originalName, contentType string, r io.Reader) (Object, error)
	// Delete removes the blob at a path returned by Save.
	Delete(ctx context.Context, path string) error
	// Open returns the blob at a path returned by Save.
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// PublicStore is implemented by backends that serve blobs from their own URLs.
type PublicStore interface {
	PublicURL(path string) (string, error)
}

var nowFunc = time.Now

// GenerateName returns "<unix-ms>-<random><ext>". It is safe for concurrent use.
func GenerateName(originalName string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	return fmt.Sprintf("%d-%d%s", nowFunc().UnixMilli(), rand.Int63n(1e9), ext)
}

// URLPath returns the public path of a blob.
func URLPath(kind Kind, name string) string {
	return URLPrefix + string(kind) + "/" + name
}

// ParsePath splits a public path into kind and name.
func ParsePath(p string) (Kind, string, error) {
	rest, ok := strings.CutPrefix(p, URLPrefix)
	if !ok {
		return "", "", ErrInvalidPath
	}
	kind, name, ok := strings.Cut(rest, "/")
	if !ok || name == "" || strings.Contains(name, "/") || name != path.Base(name) || name == ".." {
		return "", "", ErrInvalidPath
	}
	for _, k := range Kinds {
		if Kind(kind) == k {
			return k, name, nil
		}
	}
	return "", "", ErrInvalidPath
}

// File is an upload received from a client.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// IsImage reports whether the file declares an image content type.
func (f File) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(f.ContentType), "image/")
}
