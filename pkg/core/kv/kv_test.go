package kv

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMemory_SetGetRemove(t *testing.T) {
	s := NewMemory()

	if _, ok, _ := s.Get("missing"); ok {
		t.Fatal("expected missing key to be absent")
	}
	if err := s.Set("a", "1"); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, ok, err := s.Get("a")
	if err != nil || !ok || got != "1" {
		t.Fatalf("Get(a) = %q, %v, %v; want 1, true, nil", got, ok, err)
	}
	if err := s.Remove("a"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, ok, _ := s.Get("a"); ok {
		t.Fatal("expected a to be removed")
	}
	if err := s.Remove("a"); err != nil {
		t.Fatalf("second Remove error: %v", err)
	}
}

func TestMemory_QuotaRejectsAndKeepsPrevious(t *testing.T) {
	s := NewMemory(WithQuota(10))

	if err := s.Set("k", "1234"); err != nil {
		t.Fatalf("Set within quota: %v", err)
	}
	err := s.Set("k", strings.Repeat("x", 20))
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("Set over quota error = %v, want ErrQuotaExceeded", err)
	}
	got, _, _ := s.Get("k")
	if got != "1234" {
		t.Fatalf("value after rejected write = %q, want 1234", got)
	}

	// Replacing a value only counts the difference.
	if err := s.Set("k", "123456789"); err != nil {
		t.Fatalf("replace within quota: %v", err)
	}
	if s.Usage() != 10 {
		t.Fatalf("Usage() = %d, want 10", s.Usage())
	}
}

func TestMemory_ZeroQuotaIsUnlimited(t *testing.T) {
	s := NewMemory(WithQuota(0))
	if err := s.Set("big", strings.Repeat("x", DefaultQuotaBytes*2)); err != nil {
		t.Fatalf("Set with unlimited quota: %v", err)
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if err := s.Set("cerebras_api_key", "csk-test"); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	got, ok, _ := reopened.Get("cerebras_api_key")
	if !ok || got != "csk-test" {
		t.Fatalf("reopened value = %q, %v; want csk-test, true", got, ok)
	}
}

func TestOpen_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected error for corrupt storage file")
	}
}
