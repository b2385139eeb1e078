package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// DiskStore keeps images in a local directory.
type DiskStore struct {
	dir string
}

// NewDiskStore returns a store rooted at dir, creating it if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("storage: upload dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes the upload under a generated name. A partially written file is
// removed on failure.
func (s *DiskStore) Save(_ context.Context, u Upload) (StoredFile, error) {
	contentType, body, err := Sniff(u)
	if err != nil {
		return StoredFile{}, err
	}
	name := GenerateName(u.OriginalName)
	target := filepath.Join(s.dir, name)

	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return StoredFile{}, fmt.Errorf("storage: create file: %w", err)
	}

	n, copyErr := io.Copy(f, body)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(target)
		return StoredFile{}, fmt.Errorf("storage: write file: %w", errors.Join(copyErr, closeErr))
	}

	return StoredFile{
		Name:        name,
		Size:        n,
		ContentType: contentType,
	}, nil
}

// Open returns the stored file and its content type.
func (s *DiskStore) Open(_ context.Context, name string) (io.ReadCloser, string, error) {
	if !ValidName(name) {
		return nil, "", ErrInvalidName
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", ErrNotFound
		}
		return nil, "", fmt.Errorf("storage: open file: %w", err)
	}
	head, err := readHead(f)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("storage: sniff file: %w", err)
	}
	return f, ContentType(head, name), nil
}

// Delete removes the named file.
func (s *DiskStore) Delete(_ context.Context, name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("storage: remove file: %w", err)
	}
	return nil
}

// Ping checks that the directory is still present.
func (s *DiskStore) Ping(_ context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("storage: stat upload dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage: %s is not a directory", s.dir)
	}
	return nil
}
