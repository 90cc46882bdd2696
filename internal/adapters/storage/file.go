package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File stores all keys in one JSON object file. Writes replace the file
// atomically through a temp file and rename, so readers in other
// processes never observe a partial document.
type File struct {
	path string

	mu          sync.Mutex
	lastWritten []byte
}

// NewFile creates a file store at path, creating parent directories.
// The file itself is created on first write.
func NewFile(path string) (*File, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &File{path: path}, nil
}

// Path returns the backing file path.
func (f *File) Path() string {
	return f.path
}

// Get implements ports.KeyValueStore.
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}

	v, ok := values[key]

	return v, ok, nil
}

// Set implements ports.KeyValueStore.
func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	values, err := f.read()
	if err != nil {
		return err
	}

	values[key] = value

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding storage file: %w", err)
	}

	if err := writeAtomic(f.path, data); err != nil {
		return err
	}

	f.lastWritten = data

	return nil
}

// WrittenByUs reports whether data is exactly what this process last wrote.
// The watcher uses it to skip its own writes.
func (f *File) WrittenByUs(data []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lastWritten != nil && bytes.Equal(f.lastWritten, data)
}

// Name implements ports.HealthChecker.
func (f *File) Name() string { return "storage" }

// Check implements ports.HealthChecker. The file must be absent or a
// readable JSON object.
func (f *File) Check(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := f.read()

	return err
}

// Close is a no-op; every write is already durable.
func (f *File) Close() error { return nil }

// read loads the key/value map. A missing file is an empty map.
func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}

		return nil, fmt.Errorf("reading storage file: %w", err)
	}

	values := map[string]string{}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}

	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decoding storage file: %w", err)
	}

	return values, nil
}

// writeAtomic writes data to a temp file beside path and renames it
// into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}

	return nil
}
