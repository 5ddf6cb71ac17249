// Package storage persists the per-source seen-item markers.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"github.com/deusflow/animenews/internal/news"
)

// KV is a durable string-to-string map. Get reports ok=false for a missing
// key without an error.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

const maxPrefixLen = 48

// MarkerKey derives a key-safe, collision-free key from a source URL: a
// readable prefix followed by a hash of the exact URL.
func MarkerKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	hash := hex.EncodeToString(sum[:])[:16]

	s := strings.ToLower(sourceURL)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")

	var b strings.Builder
	dash := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	prefix := b.String()
	if len(prefix) > maxPrefixLen {
		prefix = prefix[:maxPrefixLen]
	}
	prefix = strings.Trim(prefix, "-")
	if prefix == "" {
		return hash
	}
	return prefix + "-" + hash
}

// Store keeps the last processed item id per source.
type Store struct {
	kv  KV
	log *slog.Logger
}

func New(kv KV, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{kv: kv, log: log}
}

// Marker returns the last processed id for the source. A backend failure is
// logged and reported as no marker.
func (s *Store) Marker(ctx context.Context, sourceKey string) (string, bool) {
	key := MarkerKey(sourceKey)
	id, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.log.Error("read marker failed", "source", sourceKey,
			"error", &news.StorageError{Op: "get", Key: key, Err: err})
		return "", false
	}
	return id, ok
}

// SetMarker records id as the source's last processed item.
func (s *Store) SetMarker(ctx context.Context, sourceKey, id string) error {
	key := MarkerKey(sourceKey)
	if err := s.kv.Set(ctx, key, id); err != nil {
		return &news.StorageError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Count returns how many markers the backend holds.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.kv.Count(ctx)
	if err != nil {
		return 0, &news.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

func (s *Store) Close() error {
	return s.kv.Close()
}
