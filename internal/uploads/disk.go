package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DiskStore writes blobs below a root directory, one subdirectory per kind.
type DiskStore struct {
	root     string
	maxBytes int64
}

// NewDiskStore creates the kind directories under root.
func NewDiskStore(root string, maxBytes int64) (*DiskStore, error) {
	for _, kind := range Kinds {
		if err := os.MkdirAll(filepath.Join(root, string(kind)), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir: %w", err)
		}
	}
	return &DiskStore{root: root, maxBytes: maxBytes}, nil
}

// Root returns the upload directory.
func (d *DiskStore) Root() string { return d.root }

func (d *DiskStore) Save(_ context.Context, kind Kind, originalName, contentType string, r io.Reader) (Object, error) {
	name := GenerateName(originalName)
	target := filepath.Join(d.root, string(kind), name)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return Object{}, fmt.Errorf("create upload: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(r, d.maxBytes+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > d.maxBytes {
		err = ErrTooLarge
	}
	if err != nil {
		_ = os.Remove(target)
		return Object{}, err
	}

	return Object{
		Kind:        kind,
		Name:        name,
		Path:        URLPath(kind, name),
		Size:        n,
		ContentType: contentType,
	}, nil
}

func (d *DiskStore) Delete(_ context.Context, p string) error {
	file, err := d.file(p)
	if err != nil {
		return err
	}
	if err := os.Remove(file); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (d *DiskStore) Open(_ context.Context, p string) (io.ReadCloser, error) {
	file, err := d.file(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (d *DiskStore) file(p string) (string, error) {
	kind, name, err := ParsePath(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(d.root, string(kind), name), nil
}
