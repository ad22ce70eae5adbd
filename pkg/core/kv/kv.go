// Package kv provides the process-wide persisted key-value storage that
// credentials and session history live in.
//
// A Store keeps every key in memory and, when given a path, mirrors the whole
// map to a single JSON file after each write. Writes are rejected with
// ErrQuotaExceeded when the total size of keys and values would pass the
// configured quota, so callers can evict and retry.
package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// DefaultQuotaBytes mirrors the common per-origin browser storage limit.
const DefaultQuotaBytes = 5 << 20

// ErrQuotaExceeded is returned when a write would exceed the storage quota.
var ErrQuotaExceeded = errors.New("kv: storage quota exceeded")

// Storage is the key-value contract consumed by the credential and history
// stores.
type Storage interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Store is a quota-limited key-value map, optionally persisted to disk.
type Store struct {
	mu         sync.RWMutex
	path       string
	quotaBytes int
	values     map[string]string
}

// Option configures a Store.
type Option func(*Store)

// WithQuota sets the maximum combined size of keys and values in bytes.
// Zero or negative disables the limit.
func WithQuota(bytes int) Option {
	return func(s *Store) {
		s.quotaBytes = bytes
	}
}

// NewMemory creates a Store that is never written to disk.
func NewMemory(opts ...Option) *Store {
	s := &Store{
		quotaBytes: DefaultQuotaBytes,
		values:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open loads the Store persisted at path, creating parent directories as
// needed. A missing file yields an empty store.
func Open(path string, opts ...Option) (*Store, error) {
	s := NewMemory(opts...)
	s.path = path

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read storage file %q: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("decode storage file %q: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return s, nil
}

// Get returns the value for key and whether it was present.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set stores value under key. The previous value is kept if the write would
// exceed the quota or cannot be persisted.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quotaBytes > 0 {
		size := s.usageLocked() + len(key) + len(value)
		if old, ok := s.values[key]; ok {
			size -= len(key) + len(old)
		}
		if size > s.quotaBytes {
			return fmt.Errorf("set %q (%d bytes over %d): %w", key, size, s.quotaBytes, ErrQuotaExceeded)
		}
	}

	old, had := s.values[key]
	s.values[key] = value
	if err := s.flushLocked(); err != nil {
		if had {
			s.values[key] = old
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.flushLocked()
}

// Usage returns the combined size of stored keys and values.
func (s *Store) Usage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usageLocked()
}

func (s *Store) usageLocked() int {
	n := 0
	for k, v := range s.values {
		n += len(k) + len(v)
	}
	return n
}

func (s *Store) flushLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}
