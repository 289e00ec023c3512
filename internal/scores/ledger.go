package scores

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"sync"

	"sketchparty/internal/logging"
)

var (
	ErrMalformed    = errors.New("request body must be a JSON object of name to score")
	ErrInvalidScore = errors.New("invalid score")
)

// Entry is one row of the sorted view, encoded as [name, score].
type Entry struct {
	Name  string
	Score int
}

func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Name, e.Score})
}

// Store persists the raw name to score mapping.
type Store interface {
	SaveScores(scores map[string]int) error
}

// Ledger maps display names to cumulative scores and keeps a view sorted by
// descending score, ties in insertion order. It is shared between the game
// engines and the HTTP boundary, so every method is safe for concurrent use.
type Ledger struct {
	mu     sync.RWMutex
	scores map[string]int
	names  []string
	sorted []Entry

	subsMu sync.Mutex
	subs   []func([]Entry)

	store Store
	dirty chan struct{}
}

// NewLedger loads initial scores. store may be nil for an in-memory ledger.
func NewLedger(initial map[string]int, store Store) *Ledger {
	l := &Ledger{
		scores: make(map[string]int, len(initial)),
		store:  store,
		dirty:  make(chan struct{}, 1),
	}

	names := make([]string, 0, len(initial))
	for name := range initial {
		names = append(names, name)
	}
	// Loaded maps carry no order; fall back to score then name.
	slices.SortFunc(names, func(a, b string) int {
		if c := cmp.Compare(initial[b], initial[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	for _, name := range names {
		l.scores[name] = initial[name]
		l.names = append(l.names, name)
	}
	l.resort()
	return l
}

// Credit adds delta to name, creating the entry when absent. Non-positive
// deltas never change a score. Returns the resulting score.
func (l *Ledger) Credit(name string, delta int) int {
	l.mu.Lock()
	if delta <= 0 {
		score := l.scores[name]
		l.mu.Unlock()
		return score
	}
	l.set(name, l.scores[name]+delta)
	score := l.scores[name]
	view := l.view()
	l.mu.Unlock()

	l.notify(view)
	return score
}

// Submit applies an external batch under the monotonic contract: a value
// replaces the stored one only when it is not lower. A negative value rejects
// the whole batch before anything is applied.
func (l *Ledger) Submit(batch map[string]int) error {
	for name, score := range batch {
		if score < 0 {
			return fmt.Errorf("%w: the score for %s is negative", ErrInvalidScore, name)
		}
	}

	l.mu.Lock()
	for name, score := range batch {
		if cur, ok := l.scores[name]; ok && cur > score {
			continue
		}
		l.set(name, score)
	}
	view := l.view()
	l.mu.Unlock()

	l.notify(view)
	l.Persist()
	return nil
}

// set must be called with mu held.
func (l *Ledger) set(name string, score int) {
	if _, ok := l.scores[name]; !ok {
		l.names = append(l.names, name)
	}
	l.scores[name] = score
	l.resort()
}

func (l *Ledger) resort() {
	entries := make([]Entry, 0, len(l.names))
	for _, name := range l.names {
		entries = append(entries, Entry{Name: name, Score: l.scores[name]})
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		return cmp.Compare(b.Score, a.Score)
	})
	l.sorted = entries
}

func (l *Ledger) view() []Entry {
	out := make([]Entry, len(l.sorted))
	copy(out, l.sorted)
	return out
}

func (l *Ledger) Get(name string) (int, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	score, ok := l.scores[name]
	return score, ok
}

// Sorted returns the leaderboard, highest score first.
func (l *Ledger) Sorted() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view()
}

// Snapshot copies the raw mapping.
func (l *Ledger) Snapshot() map[string]int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]int, len(l.scores))
	for k, v := range l.scores {
		out[k] = v
	}
	return out
}

// Subscribe registers fn to receive the sorted view after every mutation.
// fn runs on the mutating goroutine and must not block.
func (l *Ledger) Subscribe(fn func([]Entry)) {
	l.subsMu.Lock()
	defer l.subsMu.Unlock()
	l.subs = append(l.subs, fn)
}

func (l *Ledger) notify(view []Entry) {
	l.subsMu.Lock()
	subs := l.subs
	l.subsMu.Unlock()
	for _, fn := range subs {
		fn(view)
	}
}

// Persist schedules a write of the current state. It never blocks; requests
// made while a write is pending are folded into it.
func (l *Ledger) Persist() {
	select {
	case l.dirty <- struct{}{}:
	default:
	}
}

// Flush writes the current state synchronously.
func (l *Ledger) Flush() error {
	if l.store == nil {
		return nil
	}
	if err := l.store.SaveScores(l.Snapshot()); err != nil {
		return fmt.Errorf("saving scores: %w", err)
	}
	return nil
}

// RunWriter performs scheduled writes until ctx is done. The snapshot is taken
// when the write happens, so it includes every mutation applied before it.
// Failed writes are logged and left for the next request.
func (l *Ledger) RunWriter(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("scores.writer")
	for {
		select {
		case <-ctx.Done():
			select {
			case <-l.dirty:
				if err := l.Flush(); err != nil {
					logger.Errorf("final flush: %v", err)
				}
			default:
			}
			return nil
		case <-l.dirty:
			if err := l.Flush(); err != nil {
				logger.Errorf("flush: %v", err)
			}
		}
	}
}

// ParseSubmission decodes a name to score batch. Every value must be a
// non-negative integer; the first offending entry rejects the whole batch.
func ParseSubmission(body []byte) (map[string]int, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, ErrMalformed
	}

	batch := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, ErrMalformed
		}
		name, _ := keyTok.(string)

		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, ErrMalformed
		}
		n, ok := v.(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: the score for %s is not an integer", ErrInvalidScore, name)
		}
		score, ok := integral(n)
		if !ok {
			return nil, fmt.Errorf("%w: the score for %s is not an integer", ErrInvalidScore, name)
		}
		if score < 0 {
			return nil, fmt.Errorf("%w: the score for %s is negative", ErrInvalidScore, name)
		}
		batch[name] = score
	}
	if _, err := dec.Token(); err != nil {
		return nil, ErrMalformed
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformed)
	}
	return batch, nil
}

// integral accepts 45 and 45.0 but not 45.5.
func integral(n json.Number) (int, bool) {
	if i, err := n.Int64(); err == nil {
		if i > math.MaxInt32 || i < math.MinInt32 {
			return 0, false
		}
		return int(i), true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
