package credentials

import (
	"testing"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/kv"
)

func TestStore_SetGetAndRemove(t *testing.T) {
	s := NewStore(kv.NewMemory())

	if err := s.Set(LLM, "  csk-123  "); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	got, err := s.Get(LLM)
	if err != nil || got != "csk-123" {
		t.Fatalf("Get(LLM) = %q, %v; want csk-123, nil", got, err)
	}

	if err := s.Set(LLM, ""); err != nil {
		t.Fatalf("Set empty error: %v", err)
	}
	if got, _ := s.Get(LLM); got != "" {
		t.Fatalf("Get after clear = %q, want empty", got)
	}
}

func TestStore_RejectsUnknownKind(t *testing.T) {
	s := NewStore(kv.NewMemory())
	err := s.Set(Kind("openai_api_key"), "x")
	if !core.IsType(err, core.ErrValidation) {
		t.Fatalf("Set unknown kind error = %v, want validation error", err)
	}
}

func TestStore_ValidateRequiresLLMAndSynthesis(t *testing.T) {
	s := NewStore(kv.NewMemory())

	if err := s.Validate(); !core.IsType(err, core.ErrConfiguration) {
		t.Fatalf("Validate on empty store = %v, want configuration error", err)
	}

	if err := s.Set(LLM, "csk"); err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); !core.IsType(err, core.ErrConfiguration) {
		t.Fatalf("Validate without synthesis key = %v, want configuration error", err)
	}

	if err := s.Set(Synthesis, "murf"); err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("Validate with both keys = %v, want nil", err)
	}
}

func TestStore_SeedOverwritesOnlyNonEmpty(t *testing.T) {
	s := NewStore(kv.NewMemory())
	if err := s.Set(Synthesis, "stored-murf"); err != nil {
		t.Fatal(err)
	}

	if err := s.Seed(Set{LLM: "env-llm"}); err != nil {
		t.Fatalf("Seed error: %v", err)
	}

	set, err := s.Credentials()
	if err != nil {
		t.Fatal(err)
	}
	if set.LLM != "env-llm" || set.Synthesis != "stored-murf" || set.Transcription != "" {
		t.Fatalf("Credentials() = %#v", set)
	}
}

func TestStatic_Credentials(t *testing.T) {
	p := Static{LLM: "a", Synthesis: "b"}
	set, err := p.Credentials()
	if err != nil || set.LLM != "a" || set.Synthesis != "b" {
		t.Fatalf("Static.Credentials() = %#v, %v", set, err)
	}
}

func TestMask(t *testing.T) {
	if got := Mask(""); got != "missing" {
		t.Fatalf("Mask(\"\") = %q, want missing", got)
	}
	if got := Mask("short"); got != "present" {
		t.Fatalf("Mask(short) = %q, want present", got)
	}
	if got := Mask("csk-1234567890"); got != "csk-…7890" {
		t.Fatalf("Mask(long) = %q, want csk-…7890", got)
	}
}
