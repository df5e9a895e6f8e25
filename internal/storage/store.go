package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirRef is a published job output directory: the local directory the
// artifacts were produced in and their location in the managed store.
type DirRef struct {
	Local  string   `json:"local"`
	Remote string   `json:"remote"`
	URI    string   `json:"uri"`
	Files  []string `json:"files"`
}

// Publisher uploads a job's artifacts to a remote path.
type Publisher interface {
	Publish(ctx context.Context, localDir, remote string, files []string) (DirRef, error)
}

// Store is a filesystem-backed managed store rooted at one directory.
type Store struct {
	root     string
	mkdirAll func(path string, perm os.FileMode) error
}

// NewStore creates a store rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root, mkdirAll: os.MkdirAll}
}

// Publish copies files into <root>/<remote>/ and returns the directory reference.
// Re-publishing to the same remote overwrites files with the same name.
func (s *Store) Publish(ctx context.Context, localDir, remote string, files []string) (DirRef, error) {
	clean := filepath.Clean("/" + strings.TrimSpace(remote))
	if clean == "/" {
		return DirRef{}, fmt.Errorf("remote path is required")
	}

	destDir := filepath.Join(s.root, clean)
	if err := s.mkdirAll(destDir, 0o755); err != nil {
		return DirRef{}, fmt.Errorf("create remote directory %s: %w", destDir, err)
	}

	published := make([]string, 0, len(files))
	for _, src := range files {
		if err := ctx.Err(); err != nil {
			return DirRef{}, err
		}
		name := filepath.Base(src)
		if err := copyFile(filepath.Join(destDir, name), src); err != nil {
			return DirRef{}, fmt.Errorf("publish %s: %w", name, err)
		}
		published = append(published, name)
	}

	absDir, err := filepath.Abs(destDir)
	if err != nil {
		absDir = destDir
	}

	return DirRef{
		Local:  localDir,
		Remote: strings.TrimPrefix(clean, "/"),
		URI:    "file://" + filepath.ToSlash(absDir),
		Files:  published,
	}, nil
}

func copyFile(dst, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		_ = os.Remove(tmp)
		return copyErr
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return closeErr
	}
	return os.Rename(tmp, dst)
}
