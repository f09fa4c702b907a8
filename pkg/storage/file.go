package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
)

// DefaultStorageDir is the default directory for file-backed credentials,
// relative to the user home directory.
const DefaultStorageDir = ".config/authbridge/credentials"

// File is a Backend persisting each key as one file in a private directory.
//
// SECURITY: This backend holds session credentials. The directory is created
// with 0700 and files with 0600 permissions, and values are never logged.
type File struct {
	dir string
}

// FileConfig configures the file backend.
type FileConfig struct {
	// Dir is the storage directory. Defaults to ~/.config/authbridge/credentials.
	Dir string
}

// NewFile creates a file backend, creating the storage directory if needed.
func NewFile(cfg FileConfig) (*File, error) {
	dir := cfg.Dir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultStorageDir)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &File{dir: dir}, nil
}

// Dir returns the directory backing this store.
func (f *File) Dir() string {
	return f.dir
}

// Get reads the file for key. A missing file reports the key as absent.
func (f *File) Get(ctx context.Context, key string) (string, bool, error) {
	// #nosec G304 -- the path is derived from an escaped internal key
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read credential file: %w", err)
	}
	return string(data), true, nil
}

// Set writes value to the file for key with owner-only permissions.
func (f *File) Set(ctx context.Context, key, value string) error {
	if err := os.WriteFile(f.path(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

// Remove deletes the file for key. A missing file is not an error.
func (f *File) Remove(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Close is a no-op; files need no teardown.
func (f *File) Close() error {
	return nil
}

// path maps a storage key to a file path. Keys are path-escaped so that
// separators or dots in logical names cannot escape the storage directory.
func (f *File) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key)+".json")
}

// FileName reports the file name used for a storage key. The jar watcher
// uses it to map filesystem events back to logical keys.
func FileName(key string) string {
	return url.PathEscape(key) + ".json"
}
