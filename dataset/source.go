package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"time"
)

// ErrNotFound is returned by a Source when the named resource does not exist.
var ErrNotFound = errors.New("dataset resource not found")

// maxResourceBytes bounds a single fetched resource.
const maxResourceBytes = 64 << 20

// Source fetches dataset resources by slash-separated path relative to the
// dataset root.
type Source interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// HTTPSource fetches resources from a base URL.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
}

// NewHTTPSource builds a source rooted at baseURL. A nil client uses one with
// a 30s timeout.
func NewHTTPSource(baseURL string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse dataset url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("dataset url %q: unsupported scheme %q", baseURL, u.Scheme)
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPSource{base: u, client: client}, nil
}

// Fetch implements Source. A 404 maps to ErrNotFound.
func (s *HTTPSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	target := s.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("fetch %s: unexpected status %s", path, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxResourceBytes))
}

// FSSource reads resources from a file system.
type FSSource struct {
	fsys fs.FS
}

// NewFSSource wraps fsys.
func NewFSSource(fsys fs.FS) *FSSource { return &FSSource{fsys: fsys} }

// NewDirSource reads resources from a directory on disk.
func NewDirSource(dir string) *FSSource { return NewFSSource(os.DirFS(dir)) }

// Fetch implements Source. A missing file maps to ErrNotFound.
func (s *FSSource) Fetch(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := fs.ReadFile(s.fsys, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return b, err
}
