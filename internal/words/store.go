package words

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/valyala/fastrand"
)

var (
	ErrNotArray   = errors.New("data must be a JSON array")
	ErrNotStrings = errors.New("data in array must be strings")
)

// Persister saves the full word list.
type Persister interface {
	SaveWords(words []string) error
}

// Store is the word list rounds draw from. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	saveMu  sync.Mutex // orders snapshot and save so an older list never lands last
	words   []string
	index   map[string]struct{}
	persist Persister
}

// NewStore seeds the store with initial, dropping exact duplicates and blank
// entries. persist may be nil.
func NewStore(initial []string, persist Persister) *Store {
	s := &Store{
		index:   make(map[string]struct{}, len(initial)),
		persist: persist,
	}
	for _, w := range initial {
		s.insert(w)
	}
	return s
}

func (s *Store) insert(w string) bool {
	if strings.TrimSpace(w) == "" {
		return false
	}
	if _, dup := s.index[w]; dup {
		return false
	}
	s.index[w] = struct{}{}
	s.words = append(s.words, w)
	return true
}

func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.words))
	copy(out, s.words)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.words)
}

// Add appends the words that are not already listed and returns them. Blank
// entries are skipped. A persistence failure is returned alongside the words
// that were added in memory; the in-memory list stays authoritative.
func (s *Store) Add(words []string) ([]string, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	var added []string
	for _, w := range words {
		if s.insert(w) {
			added = append(added, w)
		}
	}
	snapshot := make([]string, len(s.words))
	copy(snapshot, s.words)
	s.mu.Unlock()

	if len(added) == 0 || s.persist == nil {
		return added, nil
	}
	if err := s.persist.SaveWords(snapshot); err != nil {
		return added, fmt.Errorf("saving words: %w", err)
	}
	return added, nil
}

// Random picks a word uniformly. ok is false when the list is empty.
func (s *Store) Random() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.words) == 0 {
		return "", false
	}
	return s.words[fastrand.Uint32n(uint32(len(s.words)))], true
}

// ParseAddRequest validates an add-word body: a JSON array of strings.
func ParseAddRequest(body []byte) ([]string, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrNotArray
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, ErrNotArray
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		w, ok := v.(string)
		if !ok {
			return nil, ErrNotStrings
		}
		out = append(out, w)
	}
	return out, nil
}

// LoadFile reads a JSON array of words.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading word file: %w", err)
	}
	list, err := ParseAddRequest(data)
	if err != nil {
		return nil, fmt.Errorf("parsing word file %s: %w", path, err)
	}
	return list, nil
}
