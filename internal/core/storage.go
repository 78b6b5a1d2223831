package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/seentics/seentics-go/internal/logging"
)

// Store is a TTL-aware key-value store mirroring the browser storage the
// pipeline was built on. Implementations never surface errors: a store that
// cannot persist degrades to best effort, the same way private-browsing
// localStorage does. A ttl of zero means no expiry.
type Store interface {
	Get(key string) (string, bool)
	Set(key, value string, ttl time.Duration)
	Delete(key string)
}

type storedEntry struct {
	Value     string `json:"value"`
	ExpiresAt int64  `json:"expires_at,omitempty"` // unix millis, 0 = never
}

func (e storedEntry) expired(now time.Time) bool {
	return e.ExpiresAt != 0 && now.UnixMilli() > e.ExpiresAt
}

// MemoryStore is the session-scoped store: state lives for the process
// lifetime only.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]storedEntry
	nowFunc func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]storedEntry),
		nowFunc: time.Now,
	}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return "", false
	}
	if entry.expired(s.nowFunc()) {
		delete(s.entries, key)
		return "", false
	}
	return entry.Value, true
}

func (s *MemoryStore) Set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = s.makeEntry(value, ttl)
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *MemoryStore) makeEntry(value string, ttl time.Duration) storedEntry {
	entry := storedEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.nowFunc().Add(ttl).UnixMilli()
	}
	return entry
}

// FileStore is the durable store: a single JSON file holding TTL'd entries.
// Every I/O failure is swallowed after a debug log, so a read-only or full
// disk turns persistence into a memory-only store instead of breaking the
// embedding application.
type FileStore struct {
	MemoryStore
	path string
}

// NewFileStore opens (or lazily creates) the store file at path. It never
// fails; unreadable or corrupt state starts empty.
func NewFileStore(path string) *FileStore {
	s := &FileStore{
		MemoryStore: MemoryStore{
			entries: make(map[string]storedEntry),
			nowFunc: time.Now,
		},
		path: path,
	}
	s.load()
	return s
}

func (s *FileStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	entries := make(map[string]storedEntry)
	if err := json.Unmarshal(data, &entries); err != nil {
		logging.L().Debug("discarding corrupt storage file", "path", s.path, "error", err)
		return
	}
	s.entries = entries
}

func (s *FileStore) Set(key, value string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = s.makeEntry(value, ttl)
	s.persistLocked()
}

func (s *FileStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	s.persistLocked()
}

func (s *FileStore) persistLocked() {
	data, err := json.Marshal(s.entries)
	if err != nil {
		return
	}
	if dir := filepath.Dir(s.path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		logging.L().Debug("storage write failed", "path", s.path, "error", err)
	}
}

// GetJSON reads and unmarshals a stored value. A missing key or undecodable
// value reports false, never an error.
func GetJSON(s Store, key string, out any) bool {
	raw, ok := s.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false
	}
	return true
}

// SetJSON marshals and stores a value. Unmarshalable values are dropped.
func SetJSON(s Store, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	s.Set(key, string(data), ttl)
}
