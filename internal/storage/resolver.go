// Package storage resolves input file references to local paths and publishes
// job output directories into the managed store.
package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/shenwei356/xopen"
	"golang.org/x/sync/singleflight"

	"fastp-batch/internal/domain"
)

// Resolver turns a file reference into a path the trimmer can read.
type Resolver interface {
	Resolve(ctx context.Context, ref domain.FileRef) (string, error)
}

// Stager resolves local references in place and downloads remote ones into a cache.
type Stager struct {
	cacheDir string
	open     func(location string) (io.ReadCloser, error)
	stat     func(name string) (os.FileInfo, error)
	mkdirAll func(path string, perm os.FileMode) error
	group    singleflight.Group
}

// NewStager creates a stager that caches remote downloads under cacheDir.
func NewStager(cacheDir string) *Stager {
	return &Stager{
		cacheDir: cacheDir,
		open:     openRemote,
		stat:     os.Stat,
		mkdirAll: os.MkdirAll,
	}
}

// NewStagerForTests creates a stager with an injectable remote opener.
func NewStagerForTests(cacheDir string, open func(location string) (io.ReadCloser, error)) *Stager {
	s := NewStager(cacheDir)
	s.open = open
	return s
}

// openRemote reads a URL through xopen, which also inflates compressed payloads.
func openRemote(location string) (io.ReadCloser, error) {
	r, err := xopen.Ropen(location)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Resolve returns a local filesystem path for ref.
func (s *Stager) Resolve(ctx context.Context, ref domain.FileRef) (string, error) {
	raw := strings.TrimSpace(ref.String())
	if raw == "" {
		return "", errors.New("empty file reference")
	}

	location, remote, err := classify(raw)
	if err != nil {
		return "", err
	}
	if !remote {
		if _, err := s.stat(location); err != nil {
			return "", fmt.Errorf("resolve %s: %w", raw, err)
		}
		return location, nil
	}

	dest := filepath.Join(s.cacheDir, cacheName(location))
	v, err, _ := s.group.Do(dest, func() (any, error) {
		return dest, s.download(ctx, location, dest)
	})
	if err != nil {
		return "", fmt.Errorf("stage %s: %w", raw, err)
	}
	return v.(string), nil
}

func (s *Stager) download(ctx context.Context, location, dest string) error {
	if _, err := s.stat(dest); err == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.mkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("prepare cache directory: %w", err)
	}

	src, err := s.open(location)
	if err != nil {
		return fmt.Errorf("open remote: %w", err)
	}
	defer src.Close()

	tmpPath := dest + ".part"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	_, copyErr := io.Copy(file, contextReader{ctx: ctx, r: src})
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("download: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temporary file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move download into cache: %w", err)
	}
	return nil
}

// classify splits a reference into a local path or a fetchable URL.
func classify(raw string) (string, bool, error) {
	switch {
	case strings.HasPrefix(raw, "file://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse %s: %w", raw, err)
		}
		return u.Path, false, nil
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw, true, nil
	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse %s: %w", raw, err)
		}
		if u.Host == "" || strings.Trim(u.Path, "/") == "" {
			return "", false, fmt.Errorf("s3 reference needs bucket and key: %s", raw)
		}
		return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", u.Host, strings.TrimPrefix(u.Path, "/")), true, nil
	case strings.Contains(raw, "://"):
		return "", false, fmt.Errorf("unsupported file reference scheme: %s", raw)
	default:
		return raw, false, nil
	}
}

// cacheName derives a stable, collision-resistant file name for a URL.
// Compression suffixes are dropped since the payload is stored inflated.
func cacheName(location string) string {
	sum := sha1.Sum([]byte(location))
	base := path.Base(location)
	if u, err := url.Parse(location); err == nil {
		base = path.Base(u.Path)
	}
	for _, ext := range []string{".gz", ".xz", ".zst", ".bz2"} {
		if strings.HasSuffix(base, ext) {
			base = strings.TrimSuffix(base, ext)
			break
		}
	}
	if base == "" || base == "." || base == "/" {
		base = "download"
	}
	return hex.EncodeToString(sum[:6]) + "-" + base
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
