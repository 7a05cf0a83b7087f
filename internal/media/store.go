package media

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

const (
	QRCodeDir     = "qr_codes"
	ScreenshotDir = "payment_screenshots"
)

var ErrFileNotFound = errors.New("media file not found")

// FileStore keeps generated and uploaded files under a single root directory.
// Paths handed in and out are relative, slash separated, and never escape the root.
type FileStore struct {
	root string
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

// Clean normalises rel so that it stays inside the root.
func Clean(rel string) string {
	return path.Clean("/" + filepath.ToSlash(rel))[1:]
}

// Path resolves rel to an absolute location under the root.
func (s *FileStore) Path(rel string) string {
	return filepath.Join(s.root, filepath.FromSlash(Clean(rel)))
}

// Save writes data to rel, replacing any existing file. The write goes through
// a temp file and rename so readers never see a partial image.
func (s *FileStore) Save(rel string, data []byte) (string, error) {
	rel = Clean(rel)
	if rel == "" {
		return "", errors.New("empty media path")
	}
	dst := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", rel, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("chmod %s: %w", rel, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename %s: %w", rel, err)
	}
	return rel, nil
}

// Open returns a reader for rel or ErrFileNotFound.
func (s *FileStore) Open(rel string) (io.ReadCloser, error) {
	f, err := os.Open(s.Path(rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", Clean(rel), ErrFileNotFound)
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ReadFile loads a whole file into memory.
func (s *FileStore) ReadFile(rel string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(rel))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", Clean(rel), ErrFileNotFound)
	}
	return data, err
}

// Remove deletes rel. A file that is already gone is not an error.
func (s *FileStore) Remove(rel string) error {
	if err := os.Remove(s.Path(rel)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", Clean(rel), err)
	}
	return nil
}
