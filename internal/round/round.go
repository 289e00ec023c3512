package round

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseIdle     = Phase("idle")
	PhaseRunning  = Phase("running")
	PhaseSettling = Phase("settling")
)

// TimerReset is broadcast as the timer value once a round is over.
const TimerReset = -1

// A round expires on the first tick that takes the timer below this value.
const expiryFloor = -1

// MinParticipants is the smallest table that can play a round.
const MinParticipants = 2

var (
	ErrNotIdle  = errors.New("round already in progress")
	ErrNoWords  = errors.New("word list is empty")
	ErrNoDrawer = errors.New("no drawer")
	ErrBlank    = errors.New("blank word")
)

type Config struct {
	Duration int // seconds
}

func DefaultConfig() Config {
	return Config{Duration: 60}
}

// WordPicker samples the secret word for a new round.
type WordPicker interface {
	Random() (string, bool)
}

// Round is the live round. Generation distinguishes it from every round
// before it so late timer ticks can be recognised.
type Round struct {
	Word       string
	Drawer     uuid.UUID
	TimeLeft   int
	Generation uint64
	StartedAt  time.Time

	pattern *regexp.Regexp
}

// Matches reports whether text contains the round's word as a whole word,
// ignoring case.
func (r Round) Matches(text string) bool {
	return r.pattern != nil && r.pattern.MatchString(text)
}

// Outcome describes how a round ended.
type Outcome struct {
	Round  Round
	Winner uuid.UUID // uuid.Nil when nobody guessed
	Points int
}

func (o Outcome) HasWinner() bool {
	return o.Winner != uuid.Nil
}

// Machine owns the lifecycle of one round at a time. It is driven by a single
// session engine and is not safe for concurrent use.
type Machine struct {
	cfg        Config
	words      WordPicker
	phase      Phase
	current    Round
	generation uint64
	outcome    Outcome
}

func NewMachine(cfg Config, words WordPicker) *Machine {
	return &Machine{
		cfg:   cfg,
		words: words,
		phase: PhaseIdle,
	}
}

func (m *Machine) Phase() Phase {
	return m.phase
}

func (m *Machine) Config() Config {
	return m.cfg
}

// Current returns the round while it is running.
func (m *Machine) Current() (Round, bool) {
	if m.phase != PhaseRunning {
		return Round{}, false
	}
	return m.current, true
}

// CanStart reports whether Idle -> Running may fire for the given number of
// connected participants and queued drawers.
func (m *Machine) CanStart(participants, queued int) bool {
	return m.phase == PhaseIdle && participants >= MinParticipants && queued > 0
}

// Start moves Idle -> Running with drawer at the pen.
func (m *Machine) Start(drawer uuid.UUID) (Round, error) {
	if m.phase != PhaseIdle {
		return Round{}, ErrNotIdle
	}
	if drawer == uuid.Nil {
		return Round{}, ErrNoDrawer
	}
	word, ok := m.words.Random()
	if !ok {
		return Round{}, ErrNoWords
	}
	pattern, err := WordPattern(word)
	if err != nil {
		return Round{}, fmt.Errorf("compiling pattern for %q: %w", word, err)
	}

	m.generation++
	m.current = Round{
		Word:       word,
		Drawer:     drawer,
		TimeLeft:   m.cfg.Duration,
		Generation: m.generation,
		StartedAt:  time.Now(),
		pattern:    pattern,
	}
	m.phase = PhaseRunning
	return m.current, nil
}

// Tick advances the countdown of the round with the given generation. ok is
// false for a tick that arrives after its round is gone. expired means the
// round moved to Settling without a winner.
func (m *Machine) Tick(generation uint64) (timeLeft int, expired bool, ok bool) {
	if m.phase != PhaseRunning || generation != m.current.Generation {
		return 0, false, false
	}
	m.current.TimeLeft--
	if m.current.TimeLeft < expiryFloor {
		m.settle(uuid.Nil, 0)
		return m.current.TimeLeft, true, true
	}
	return m.current.TimeLeft, false, true
}

// Guess evaluates a chat message. A match from anyone but the drawer moves the
// round to Settling and awards the time left as points.
func (m *Machine) Guess(from uuid.UUID, text string) (points int, ok bool) {
	if m.phase != PhaseRunning || from == m.current.Drawer {
		return 0, false
	}
	if !m.current.Matches(text) {
		return 0, false
	}
	points = max(m.current.TimeLeft, 0)
	m.settle(from, points)
	return points, true
}

// Abort forces Running -> Settling with no winner.
func (m *Machine) Abort() bool {
	if m.phase != PhaseRunning {
		return false
	}
	m.settle(uuid.Nil, 0)
	return true
}

func (m *Machine) settle(winner uuid.UUID, points int) {
	m.phase = PhaseSettling
	m.outcome = Outcome{Round: m.current, Winner: winner, Points: points}
}

// Finish completes Settling -> Idle and hands back the outcome.
func (m *Machine) Finish() (Outcome, bool) {
	if m.phase != PhaseSettling {
		return Outcome{}, false
	}
	out := m.outcome
	m.outcome = Outcome{}
	m.current = Round{}
	m.phase = PhaseIdle
	return out, true
}

// WordPattern compiles the guess matcher for word: case-insensitive and
// delimited by non-word characters so "cat" never matches inside "category".
// The delimiters also accept words that begin or end in punctuation ("c++").
func WordPattern(word string) (*regexp.Regexp, error) {
	if strings.TrimSpace(word) == "" {
		return nil, ErrBlank
	}
	return regexp.Compile(`(?i)(?:^|[^\pL\pN_])` + regexp.QuoteMeta(word) + `(?:[^\pL\pN_]|$)`)
}
