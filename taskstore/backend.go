package taskstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/afero"
)

// Backend is durable key-value storage.
type Backend interface {
	// Get returns the value of key and whether it exists.
	Get(key string) ([]byte, bool, error)
	// Set replaces the value of key as a whole.
	Set(key string, value []byte) error
}

var keyRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// ValidKey reports whether key can name a stored value. Every backend
// accepts the same keys.
func ValidKey(key string) bool {
	return keyRe.MatchString(key)
}

// FileBackend stores each key as <dir>/<key>.json on an afero filesystem.
type FileBackend struct {
	FS  afero.Fs
	Dir string
}

// NewFileBackend creates a file backend rooted at dir.
func NewFileBackend(fs afero.Fs, dir string) *FileBackend {
	return &FileBackend{FS: fs, Dir: dir}
}

func (b *FileBackend) path(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(b.Dir, key+".json"), nil
}

func (b *FileBackend) Get(key string) ([]byte, bool, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, false, err
	}
	data, err := afero.ReadFile(b.FS, p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", p, err)
	}
	return data, true, nil
}

func (b *FileBackend) Set(key string, value []byte) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}
	return WriteFileAtomic(b.FS, p, value)
}

// WriteFileAtomic writes data to a temp file next to path and renames it
// into place, so readers see either the old or the new content.
func WriteFileAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := afero.TempFile(fs, dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer fs.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file to %s: %w", path, err)
	}
	return nil
}
