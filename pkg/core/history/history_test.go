package history

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/kv"
)

// quotaStorage rejects the first failSets writes for quota.
type quotaStorage struct {
	*kv.Store
	failSets int
	sets     int
}

func (q *quotaStorage) Set(key, value string) error {
	q.sets++
	if q.failSets > 0 {
		q.failSets--
		return fmt.Errorf("set %q: %w", key, kv.ErrQuotaExceeded)
	}
	return q.Store.Set(key, value)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func entry(id string, createdAt int64) Entry {
	return Entry{
		ID:               id,
		Topic:            "topic " + id,
		SelectedDuration: 2,
		CreatedAt:        createdAt,
		Script: []ScriptEntry{
			{PanelistID: 1, Message: "hello", Timestamp: createdAt},
		},
	}
}

func preload(t *testing.T, storage kv.Storage, n int) {
	t.Helper()
	entries := make([]Entry, 0, n)
	for i := 1; i <= n; i++ {
		entries = append(entries, entry(fmt.Sprintf("old-%d", i), int64(i)))
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.Set(Key, string(data)); err != nil {
		t.Fatal(err)
	}
}

func TestStore_ListEmpty(t *testing.T) {
	s := New(kv.NewMemory(), WithLogger(discardLogger()))
	got, err := s.List()
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("len(List()) = %d, want 0", len(got))
	}
}

func TestStore_ListSortsNewestFirst(t *testing.T) {
	storage := kv.NewMemory()
	s := New(storage, WithLogger(discardLogger()))

	for _, e := range []Entry{entry("b", 200), entry("a", 100), entry("c", 300)} {
		if err := s.Save(e); err != nil {
			t.Fatalf("Save(%s) error: %v", e.ID, err)
		}
	}

	got, _ := s.List()
	if len(got) != 3 || got[0].ID != "c" || got[1].ID != "b" || got[2].ID != "a" {
		t.Fatalf("List order = %v, want c,b,a", ids(got))
	}
}

func TestStore_SaveUpdatesExistingInPlace(t *testing.T) {
	s := New(kv.NewMemory(), WithLogger(discardLogger()))
	e := entry("same", 10)
	if err := s.Save(e); err != nil {
		t.Fatal(err)
	}
	e.ActualDuration = 95
	e.FirstPlayedAt = 12
	if err := s.Save(e); err != nil {
		t.Fatal(err)
	}

	got, _ := s.List()
	if len(got) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(got))
	}
	if got[0].ActualDuration != 95 || got[0].FirstPlayedAt != 12 {
		t.Fatalf("updated entry = %#v", got[0])
	}
}

func TestStore_NeverExceedsCapacity(t *testing.T) {
	s := New(kv.NewMemory(kv.WithQuota(0)), WithLogger(discardLogger()))

	for i := 1; i <= MaxEntries+15; i++ {
		if err := s.Save(entry(fmt.Sprintf("s-%d", i), int64(i))); err != nil {
			t.Fatalf("Save #%d error: %v", i, err)
		}
		got, _ := s.List()
		if len(got) > MaxEntries {
			t.Fatalf("after %d saves len = %d, want <= %d", i, len(got), MaxEntries)
		}
	}

	got, _ := s.List()
	if len(got) != MaxEntries {
		t.Fatalf("len = %d, want %d", len(got), MaxEntries)
	}
	// The 50 most recently created survive.
	if got[0].ID != "s-65" || got[len(got)-1].ID != "s-16" {
		t.Fatalf("kept range = %s..%s, want s-65..s-16", got[0].ID, got[len(got)-1].ID)
	}
}

func TestStore_QuotaEvictsAndRetries(t *testing.T) {
	storage := &quotaStorage{Store: kv.NewMemory(kv.WithQuota(0))}
	preload(t, storage.Store, 51)
	storage.failSets = 1

	s := New(storage, WithLogger(discardLogger()))
	fresh := entry("fresh", 1000)
	if err := s.Save(fresh); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	got, _ := s.List()
	if len(got) > retryKeep {
		t.Fatalf("len after quota retry = %d, want <= %d", len(got), retryKeep)
	}
	if got[0].ID != "fresh" {
		t.Fatalf("newest entry = %q, want fresh", got[0].ID)
	}
	// Clear-to-5 happened before the retry.
	if len(got) != quotaKeep+1 {
		t.Fatalf("len = %d, want %d", len(got), quotaKeep+1)
	}
}

func TestStore_QuotaRetryFailureIsReported(t *testing.T) {
	storage := &quotaStorage{Store: kv.NewMemory(kv.WithQuota(0)), failSets: 10}
	s := New(storage, WithLogger(discardLogger()))

	err := s.Save(entry("x", 1))
	if !core.IsType(err, core.ErrStorageQuota) {
		t.Fatalf("Save error = %v, want storage quota error", err)
	}
}

func TestStore_CorruptBlobReadsEmpty(t *testing.T) {
	storage := kv.NewMemory()
	if err := storage.Set(Key, "[{broken"); err != nil {
		t.Fatal(err)
	}
	s := New(storage, WithLogger(discardLogger()))
	got, err := s.List()
	if err != nil || len(got) != 0 {
		t.Fatalf("List() = %v, %v; want empty, nil", got, err)
	}
	if err := s.Save(entry("new", 5)); err != nil {
		t.Fatalf("Save over corrupt blob: %v", err)
	}
}

func TestStore_GetAndDelete(t *testing.T) {
	s := New(kv.NewMemory(), WithLogger(discardLogger()))
	_ = s.Save(entry("a", 1))
	_ = s.Save(entry("b", 2))

	got, ok, err := s.Get("a")
	if err != nil || !ok || got.Topic != "topic a" {
		t.Fatalf("Get(a) = %#v, %v, %v", got, ok, err)
	}
	if err := s.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get("a"); ok {
		t.Fatal("expected a to be deleted")
	}
}

func ids(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}
