// Package assets publishes card images to a public location so LINE can
// fetch them. Objects are content addressed and deduplicated through the
// storage asset index.
package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/garyellow/line-carousel-composer/internal/r2client"
)

// Backend stores an object and returns the URL it is served from.
type Backend interface {
	Name() string
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// LocalBackend writes objects under a directory served by this process.
type LocalBackend struct {
	dir     string
	baseURL string
}

// NewLocalBackend stores files in dir; baseURL is the public prefix they are
// served under (for example "https://host/assets").
func NewLocalBackend(dir, baseURL string) (*LocalBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("assets: create dir: %w", err)
	}
	return &LocalBackend{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Name implements Backend.
func (b *LocalBackend) Name() string { return "local" }

// Dir returns the root directory.
func (b *LocalBackend) Dir() string { return b.dir }

// Put implements Backend. Existing files are left untouched.
func (b *LocalBackend) Put(ctx context.Context, key string, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target, err := b.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("assets: create dir: %w", err)
	}

	if _, err := os.Stat(target); errors.Is(err, os.ErrNotExist) {
		// Write to a temp file first so readers never see a partial image
		tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
		if err != nil {
			return "", fmt.Errorf("assets: create temp: %w", err)
		}
		if _, err := tmp.Write(data); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
			return "", fmt.Errorf("assets: write: %w", err)
		}
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return "", fmt.Errorf("assets: close: %w", err)
		}
		if err := os.Rename(tmp.Name(), target); err != nil {
			_ = os.Remove(tmp.Name())
			return "", fmt.Errorf("assets: rename: %w", err)
		}
	}

	return b.baseURL + "/" + key, nil
}

// Delete implements Backend. Missing files are ignored.
func (b *LocalBackend) Delete(_ context.Context, key string) error {
	target, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("assets: delete: %w", err)
	}
	return nil
}

func (b *LocalBackend) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("assets: invalid key %q", key)
	}
	return filepath.Join(b.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

// R2Backend stores objects in a Cloudflare R2 bucket.
type R2Backend struct {
	client    *r2client.Client
	publicURL string
}

// NewR2Backend publishes through client; publicURL is the bucket's public
// (custom domain or r2.dev) address.
func NewR2Backend(client *r2client.Client, publicURL string) *R2Backend {
	return &R2Backend{client: client, publicURL: strings.TrimRight(publicURL, "/")}
}

// Name implements Backend.
func (b *R2Backend) Name() string { return "r2" }

// Put implements Backend. An object already present under key is reused.
func (b *R2Backend) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if _, err := b.client.PutObjectIfNotExists(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return b.publicURL + "/" + key, nil
}

// Delete implements Backend.
func (b *R2Backend) Delete(ctx context.Context, key string) error {
	return b.client.DeleteObject(ctx, key)
}
