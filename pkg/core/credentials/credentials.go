// Package credentials stores the API keys the council talks to its vendors
// with: the language model, speech synthesis and transcription.
package credentials

import (
	"fmt"
	"strings"

	"github.com/vango-go/vai-council/pkg/core"
	"github.com/vango-go/vai-council/pkg/core/kv"
)

// Kind names a credential. The value doubles as its storage key.
type Kind string

const (
	LLM           Kind = "cerebras_api_key"
	Synthesis     Kind = "murf_api_key"
	Transcription Kind = "assembly_api_key"
)

// Kinds lists every credential kind in display order.
var Kinds = []Kind{LLM, Synthesis, Transcription}

// Set is a snapshot of all credentials.
type Set struct {
	LLM           string
	Synthesis     string
	Transcription string
}

// Get returns the credential of the given kind.
func (s Set) Get(kind Kind) string {
	switch kind {
	case LLM:
		return s.LLM
	case Synthesis:
		return s.Synthesis
	case Transcription:
		return s.Transcription
	default:
		return ""
	}
}

// Validate checks that the credentials needed to run a session are present.
// Transcription is optional; live sessions can take typed input.
func (s Set) Validate() error {
	var missing []string
	if s.LLM == "" {
		missing = append(missing, "language model")
	}
	if s.Synthesis == "" {
		missing = append(missing, "speech synthesis")
	}
	if len(missing) > 0 {
		return core.NewConfigurationError(
			fmt.Sprintf("API keys not configured: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// Provider supplies credentials on demand. The orchestrator and clients
// receive one instead of reading global state.
type Provider interface {
	Credentials() (Set, error)
}

// Static is a Provider that always returns the same Set.
type Static Set

// Credentials implements Provider.
func (s Static) Credentials() (Set, error) {
	return Set(s), nil
}

// Store persists credentials in key-value storage.
type Store struct {
	storage kv.Storage
}

// NewStore creates a Store backed by storage.
func NewStore(storage kv.Storage) *Store {
	return &Store{storage: storage}
}

// Get returns the stored credential of the given kind, or "" if unset.
func (s *Store) Get(kind Kind) (string, error) {
	v, _, err := s.storage.Get(string(kind))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", kind, err)
	}
	return v, nil
}

// Set stores a credential. An empty value removes it.
func (s *Store) Set(kind Kind, value string) error {
	if !known(kind) {
		return core.NewValidationError(fmt.Sprintf("unknown credential %q", kind), "kind")
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return s.storage.Remove(string(kind))
	}
	if err := s.storage.Set(string(kind), value); err != nil {
		return fmt.Errorf("write %s: %w", kind, err)
	}
	return nil
}

// Seed stores every non-empty value of set, overwriting what is stored.
func (s *Store) Seed(set Set) error {
	for _, kind := range Kinds {
		if v := set.Get(kind); v != "" {
			if err := s.Set(kind, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// Credentials implements Provider by reading the latest stored values.
func (s *Store) Credentials() (Set, error) {
	var out Set
	var err error
	if out.LLM, err = s.Get(LLM); err != nil {
		return Set{}, err
	}
	if out.Synthesis, err = s.Get(Synthesis); err != nil {
		return Set{}, err
	}
	if out.Transcription, err = s.Get(Transcription); err != nil {
		return Set{}, err
	}
	return out, nil
}

// Validate reports a configuration error when required credentials are
// missing from the store.
func (s *Store) Validate() error {
	set, err := s.Credentials()
	if err != nil {
		return err
	}
	return set.Validate()
}

// Mask shortens a secret for display.
func Mask(v string) string {
	if v == "" {
		return "missing"
	}
	if len(v) <= 8 {
		return "present"
	}
	return v[:4] + "…" + v[len(v)-4:]
}

func known(kind Kind) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}
