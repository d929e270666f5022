package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidName is returned for names that would escape the archive root.
var ErrInvalidName = errors.New("invalid archive name")

// Archive keeps rendered documents on local disk under a base directory.
// Documents are write-once: a released session never changes, so neither
// does its receipt.
type Archive struct {
	baseDir string
}

// NewArchive ensures the base directory exists and returns a handle.
func NewArchive(baseDir string) (*Archive, error) {
	if baseDir == "" {
		baseDir = "./receipts"
	}
	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return &Archive{baseDir: baseDir}, nil
}

// Save writes data under name, replacing any previous content atomically.
func (a *Archive) Save(name string, data []byte) error {
	path, err := a.resolve(name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("prepare archive directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write archive file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close archive file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit archive file: %w", err)
	}
	return nil
}

// Load returns the stored bytes. Missing documents yield fs.ErrNotExist.
func (a *Archive) Load(name string) ([]byte, error) {
	path, err := a.resolve(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fs.ErrNotExist
		}
		return nil, fmt.Errorf("read archive file: %w", err)
	}
	return data, nil
}

// Delete removes a stored document if present.
func (a *Archive) Delete(name string) error {
	path, err := a.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete archive file: %w", err)
	}
	return nil
}

func (a *Archive) resolve(name string) (string, error) {
	if name == "" || filepath.IsAbs(name) {
		return "", ErrInvalidName
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", ErrInvalidName
	}
	return filepath.Join(a.baseDir, clean), nil
}
