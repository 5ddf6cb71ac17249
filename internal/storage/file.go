package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// markerEntry is one marker in the JSON document.
type markerEntry struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileKV keeps every marker in one JSON file, rewritten atomically on Set.
type FileKV struct {
	filePath string
	items    map[string]markerEntry
	mu       sync.RWMutex
}

// OpenFile loads the marker file, starting empty when it does not exist.
func OpenFile(filePath string) (*FileKV, error) {
	fc := &FileKV{
		filePath: filePath,
		items:    make(map[string]markerEntry),
	}
	if err := fc.load(); err != nil {
		return nil, err
	}
	return fc, nil
}

func (fc *FileKV) load() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	data, err := os.ReadFile(fc.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read marker file: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, &fc.items); err != nil {
		return fmt.Errorf("decode marker file: %w", err)
	}
	return nil
}

func (fc *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	item, ok := fc.items[key]
	return item.Value, ok, nil
}

// Set updates the marker and persists the whole document. On a write failure
// the in-memory state is rolled back so memory and disk agree.
func (fc *FileKV) Set(_ context.Context, key, value string) error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	prev, existed := fc.items[key]
	fc.items[key] = markerEntry{Value: value, UpdatedAt: time.Now().UTC()}

	if err := fc.save(); err != nil {
		if existed {
			fc.items[key] = prev
		} else {
			delete(fc.items, key)
		}
		return err
	}
	return nil
}

func (fc *FileKV) Count(context.Context) (int, error) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.items), nil
}

func (fc *FileKV) Close() error { return nil }

// save writes to a temp file in the same directory and renames it over the
// target. Callers hold mu.
func (fc *FileKV) save() error {
	data, err := json.MarshalIndent(fc.items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode markers: %w", err)
	}

	dir := filepath.Dir(fc.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create marker dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".markers-*.json")
	if err != nil {
		return fmt.Errorf("create temp marker file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp marker file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp marker file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp marker file: %w", err)
	}
	if err := os.Rename(tmpName, fc.filePath); err != nil {
		return fmt.Errorf("replace marker file: %w", err)
	}
	return nil
}
