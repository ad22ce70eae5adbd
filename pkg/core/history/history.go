// Package history persists audio-stripped summaries of past council
// sessions so they can be listed and replayed.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/kv"
	"github.com/vango-go/vai-council/pkg/metrics"
)

const (
	// Key is the storage key holding the JSON array of entries.
	Key = "lume-council-history"

	// MaxEntries caps the number of stored sessions.
	MaxEntries = 50

	quotaKeep = 5
	retryKeep = 10
)

// ScriptEntry is one stored utterance. Audio is never persisted.
type ScriptEntry struct {
	PanelistID    int    `json:"panelistId"`
	Message       string `json:"message"`
	Timestamp     int64  `json:"timestamp"`
	IsUserMessage bool   `json:"isUserMessage,omitempty"`
}

// Entry is a persisted session summary. Timestamps are unix milliseconds;
// ActualDuration is in seconds.
type Entry struct {
	ID               string        `json:"id"`
	Topic            string        `json:"topic"`
	SelectedDuration int           `json:"selectedDuration"`
	ActualDuration   int           `json:"actualDuration"`
	Script           []ScriptEntry `json:"script"`
	CreatedAt        int64         `json:"createdAt"`
	FirstPlayedAt    int64         `json:"firstPlayedAt,omitempty"`
}

// Created returns CreatedAt as a time.
func (e Entry) Created() time.Time {
	return time.UnixMilli(e.CreatedAt)
}

// Store is a bounded, newest-first list of entries in key-value storage.
type Store struct {
	storage  kv.Storage
	logger   *slog.Logger
	metrics  *metrics.Metrics
	capacity int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for swallowed persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records save outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New creates a Store over storage.
func New(storage kv.Storage, opts ...Option) *Store {
	s := &Store{
		storage:  storage,
		logger:   slog.Default(),
		capacity: MaxEntries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns all entries, newest first. A corrupt blob reads as empty.
func (s *Store) List() ([]Entry, error) {
	raw, ok, err := s.storage.Get(Key)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if !ok || raw == "" {
		return []Entry{}, nil
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		s.logger.Error("failed to parse session history", "error", err)
		return []Entry{}, nil
	}
	sortNewestFirst(entries)
	return entries, nil
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (Entry, bool, error) {
	entries, err := s.List()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.ID == id {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

// Save inserts entry, or replaces the stored entry with the same id, and
// keeps only the newest MaxEntries.
//
// When the write is rejected for quota the store shrinks to the 5 newest
// entries and retries once keeping at most 10. A failed retry is logged and
// returned as a storage quota error; callers may continue without history.
func (s *Store) Save(entry Entry) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	entries = upsert(entries, entry)

	err = s.write(entries, s.capacity)
	if err == nil {
		s.metrics.RecordHistorySave("ok")
		return nil
	}
	if !errors.Is(err, kv.ErrQuotaExceeded) {
		s.metrics.RecordHistorySave("error")
		s.logger.Error("failed to save session", "session_id", entry.ID, "error", err)
		return err
	}

	s.logger.Warn("storage quota exceeded, clearing old sessions", "session_id", entry.ID)
	s.clearOld()

	entries, err = s.List()
	if err != nil {
		return err
	}
	entries = upsert(entries, entry)
	if err := s.write(entries, retryKeep); err != nil {
		s.metrics.RecordHistorySave("dropped")
		s.logger.Error("failed to save session even after clearing storage", "session_id", entry.ID, "error", err)
		return core.NewStorageQuotaError("history not saved", err)
	}
	s.metrics.RecordHistorySave("quota_retry")
	return nil
}

// Delete removes the entry with the given id.
func (s *Store) Delete(id string) error {
	entries, err := s.List()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	return s.write(kept, s.capacity)
}

func (s *Store) clearOld() {
	entries, err := s.List()
	if err == nil {
		err = s.write(entries, quotaKeep)
	}
	if err != nil {
		s.logger.Error("failed to clear old sessions", "error", err)
		if rmErr := s.storage.Remove(Key); rmErr != nil {
			s.logger.Error("failed to remove session history", "error", rmErr)
		}
	}
}

func (s *Store) write(entries []Entry, limit int) error {
	sortNewestFirst(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return s.storage.Set(Key, string(data))
}

func upsert(entries []Entry, entry Entry) []Entry {
	for i := range entries {
		if entries[i].ID == entry.ID {
			entries[i] = entry
			return entries
		}
	}
	return append(entries, entry)
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt > entries[j].CreatedAt
	})
}
