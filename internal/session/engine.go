package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sketchparty/internal/canvas"
	"sketchparty/internal/events"
	"sketchparty/internal/logging"
	"sketchparty/internal/metrics"
	"sketchparty/internal/players"
	"sketchparty/internal/round"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Public instruction texts.
const (
	InstructionGuess     = "Guess the word!"
	InstructionRoundOver = "Round over."
	NoticeDrawerLeft     = "The drawer disconnected."
)

var ErrStopped = errors.New("session engine stopped")

// Transport fans frames out to the connections of one room.
type Transport interface {
	Send(id uuid.UUID, data []byte) bool
	Broadcast(data []byte)
	BroadcastExcept(senderID uuid.UUID, data []byte)
}

// Ledger is the part of the score ledger settlement needs.
type Ledger interface {
	Credit(name string, delta int) int
	Persist()
}

// RoundResult is handed to the recorder after every settled round.
type RoundResult struct {
	Room      string
	Word      string
	Drawer    string
	Winner    string // empty when nobody guessed
	Points    int
	Outcome   string
	Strokes   int // segments drawn during the round
	StartedAt time.Time
	EndedAt   time.Time
}

type Config struct {
	Room      string
	Round     round.Config
	InboxSize int
}

func DefaultConfig() Config {
	return Config{
		Room:      "default",
		Round:     round.DefaultConfig(),
		InboxSize: 256,
	}
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithRecorder registers fn to receive every settled round. fn runs on the
// engine goroutine and must not block.
func WithRecorder(fn func(RoundResult)) Option {
	return func(e *Engine) { e.recorder = fn }
}

func WithLogger(l *zap.SugaredLogger) Option {
	return func(e *Engine) { e.logger = l }
}

// Engine is the single writer for one room's round, player queue and canvas
// log. Handle must only be called from the goroutine running Run, or directly
// by tests that never call Run.
type Engine struct {
	cfg       Config
	transport Transport
	ledger    Ledger
	clock     Clock
	recorder  func(RoundResult)
	logger    *zap.SugaredLogger

	machine      *round.Machine
	queue        *players.Queue
	canvas       *canvas.Log
	participants map[uuid.UUID]*players.Player
	instruction  string
	abandoned    bool

	inbox      chan Event
	done       chan struct{}
	tickingGen uint64
	stopTicker context.CancelFunc
}

func NewEngine(cfg Config, transport Transport, ledger Ledger, words round.WordPicker, opts ...Option) *Engine {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = DefaultConfig().InboxSize
	}
	e := &Engine{
		cfg:          cfg,
		transport:    transport,
		ledger:       ledger,
		clock:        realClock{},
		machine:      round.NewMachine(cfg.Round, words),
		queue:        players.NewQueue(),
		canvas:       canvas.NewLog(),
		participants: make(map[uuid.UUID]*players.Player),
		inbox:        make(chan Event, cfg.InboxSize),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.DefaultLogger()
	}
	e.logger = e.logger.Named("session.engine").With("room", cfg.Room)
	return e
}

// Post queues ev for the engine goroutine.
func (e *Engine) Post(ctx context.Context, ev Event) error {
	select {
	case <-e.done:
		return ErrStopped
	default:
	}
	select {
	case e.inbox <- ev:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is done. Handlers never overlap, so the
// round, queue and canvas need no locking.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	defer e.stopCountdown()

	e.logger.Infof("engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Infof("engine stopped")
			metrics.Participants.DeleteLabelValues(e.cfg.Room)
			return nil
		case ev := <-e.inbox:
			e.deliver(e.Handle(ev))
			e.syncCountdown(ctx)
		}
	}
}

func (e *Engine) deliver(out []Delivery) {
	for _, d := range out {
		data, err := d.Msg.Encode()
		if err != nil {
			e.logger.Errorf("encoding %s: %v", d.Msg.Type, err)
			continue
		}
		switch d.To {
		case ToOne:
			e.transport.Send(d.Conn, data)
		case ToAll:
			e.transport.Broadcast(data)
		case ToOthers:
			e.transport.BroadcastExcept(d.Conn, data)
		}
	}
}

// syncCountdown keeps exactly one ticker alive for the running round.
func (e *Engine) syncCountdown(ctx context.Context) {
	r, running := e.machine.Current()
	if running && r.Generation == e.tickingGen {
		return
	}
	e.stopCountdown()
	if !running {
		return
	}
	tctx, cancel := context.WithCancel(ctx)
	e.stopTicker = cancel
	e.tickingGen = r.Generation
	go e.countdown(tctx, r.Generation)
}

func (e *Engine) stopCountdown() {
	if e.stopTicker != nil {
		e.stopTicker()
		e.stopTicker = nil
	}
	e.tickingGen = 0
}

// countdown forwards ticks into the inbox tagged with their round. A tick that
// is already queued when the round ends is discarded by Handle.
func (e *Engine) countdown(ctx context.Context, generation uint64) {
	ticker := e.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			select {
			case e.inbox <- Tick{Generation: generation}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Handle applies ev and returns the messages it produces.
func (e *Engine) Handle(ev Event) []Delivery {
	switch ev := ev.(type) {
	case Join:
		return e.join(ev)
	case Leave:
		return e.leave(ev)
	case Chat:
		return e.chat(ev)
	case TypingStart:
		return e.typing(ev.Conn, events.TypingStart)
	case TypingStop:
		return e.typing(ev.Conn, events.TypingStop)
	case Stroke:
		return e.stroke(ev)
	case Resync:
		return e.replay(ev.Conn)
	case Tick:
		return e.tick(ev)
	}
	return nil
}

func (e *Engine) join(ev Join) []Delivery {
	if _, ok := e.participants[ev.Conn]; ok {
		e.logger.Debugf("duplicate join from %s ignored", ev.Conn)
		return nil
	}
	p := players.New(ev.Conn, ev.Name)
	e.participants[p.ID] = p
	e.queue.Enqueue(p.ID)
	count := len(e.participants)
	metrics.Participants.WithLabelValues(e.cfg.Room).Set(float64(count))
	e.logger.Debugf("%s joined as %q (%d participants)", p.ID, p.Name, count)

	out := []Delivery{
		one(p.ID, events.SessionInfo, events.CountPayload{ParticipantCount: count}),
		others(p.ID, events.ParticipantJoined, events.ParticipantPayload{Name: p.Name, ParticipantCount: count}),
	}
	out = append(out, e.tryStart()...)
	out = append(out, e.replay(p.ID)...)

	if r, ok := e.machine.Current(); !ok || r.Drawer != p.ID {
		out = append(out, one(p.ID, events.InstructionText, e.instruction))
	}
	return out
}

func (e *Engine) leave(ev Leave) []Delivery {
	p, ok := e.participants[ev.Conn]
	if !ok {
		return nil
	}
	delete(e.participants, ev.Conn)
	count := len(e.participants)
	metrics.Participants.WithLabelValues(e.cfg.Room).Set(float64(count))
	e.logger.Debugf("%q left (%d participants)", p.Name, count)

	var out []Delivery
	if r, ok := e.machine.Current(); ok && r.Drawer == p.ID {
		out = append(out, all(events.RoundNotice, NoticeDrawerLeft))
		e.machine.Abort()
		e.abandoned = true
		out = append(out, e.settle()...)
	} else {
		e.queue.Remove(p.ID)
	}
	return append(out, all(events.ParticipantLeft, events.ParticipantPayload{Name: p.Name, ParticipantCount: count}))
}

func (e *Engine) chat(ev Chat) []Delivery {
	p, ok := e.participants[ev.Conn]
	if !ok {
		e.logger.Debugf("chat from %s before join ignored", ev.Conn)
		return nil
	}
	_, won := e.machine.Guess(p.ID, ev.Text)
	if ev.Throttled && !won {
		metrics.ChatDropped.Inc()
		return nil
	}
	out := []Delivery{others(p.ID, events.ChatMessage, events.ChatPayload{Name: p.Name, Text: ev.Text})}
	if won {
		out = append(out, e.settle()...)
	}
	return out
}

func (e *Engine) typing(conn uuid.UUID, t events.Type) []Delivery {
	p, ok := e.participants[conn]
	if !ok {
		return nil
	}
	return []Delivery{others(p.ID, t, events.NamePayload{Name: p.Name})}
}

func (e *Engine) stroke(ev Stroke) []Delivery {
	r, ok := e.machine.Current()
	if !ok || r.Drawer != ev.Conn {
		e.logger.Debugf("stroke from %s outside its turn ignored", ev.Conn)
		return nil
	}
	e.canvas.Append(ev.Record)
	metrics.Strokes.Inc()
	return []Delivery{others(ev.Conn, events.Stroke, ev.Record)}
}

func (e *Engine) replay(conn uuid.UUID) []Delivery {
	strokes := e.canvas.Replay()
	out := make([]Delivery, 0, len(strokes))
	for _, s := range strokes {
		out = append(out, one(conn, events.Stroke, s))
	}
	return out
}

func (e *Engine) tick(ev Tick) []Delivery {
	timeLeft, expired, ok := e.machine.Tick(ev.Generation)
	if !ok {
		return nil
	}
	if expired {
		return e.settle()
	}
	return []Delivery{all(events.TimerValue, timeLeft)}
}

// tryStart fires Idle -> Running when enough participants are present.
func (e *Engine) tryStart() []Delivery {
	if !e.machine.CanStart(len(e.participants), e.queue.Len()) {
		return nil
	}
	drawer, ok := e.queue.Dequeue()
	if !ok {
		return nil
	}
	r, err := e.machine.Start(drawer)
	if err != nil {
		e.logger.Warnf("starting round: %v", err)
		e.queue.Enqueue(drawer)
		return nil
	}
	metrics.RoundsStarted.Inc()
	e.instruction = InstructionGuess
	e.logger.Infof("round %d started, drawer %q", r.Generation, e.participants[drawer].Name)

	return []Delivery{
		one(drawer, events.CanvasUnlock, true),
		one(drawer, events.InstructionText, "Draw the word: "+r.Word),
		others(drawer, events.InstructionText, e.instruction),
		all(events.TimerValue, r.TimeLeft),
	}
}

// settle completes Settling -> Idle and immediately tries the next round.
func (e *Engine) settle() []Delivery {
	outcome, ok := e.machine.Finish()
	if !ok {
		return nil
	}
	r := outcome.Round
	drawer, drawerHere := e.participants[r.Drawer]
	result := RoundResult{
		Room:      e.cfg.Room,
		Word:      r.Word,
		Outcome:   metrics.OutcomeTimeout,
		Strokes:   e.canvas.Len(),
		StartedAt: r.StartedAt,
		EndedAt:   e.clock.Now(),
	}
	if drawerHere {
		result.Drawer = drawer.Name
	}
	if e.abandoned {
		result.Outcome = metrics.OutcomeAbandoned
		e.abandoned = false
	}

	var out []Delivery
	if outcome.HasWinner() {
		winner := e.participants[outcome.Winner]
		result.Winner = winner.Name
		result.Points = outcome.Points
		result.Outcome = metrics.OutcomeGuessed

		e.ledger.Credit(winner.Name, outcome.Points)
		e.ledger.Credit(drawer.Name, outcome.Points)
		e.ledger.Persist()

		out = append(out,
			others(r.Drawer, events.RoundNotice, fmt.Sprintf("Round over! %s earned %d points.", drawer.Name, outcome.Points)),
			one(r.Drawer, events.RoundNotice, fmt.Sprintf("Round over! You've earned %d points.", outcome.Points)),
			all(events.RoundNotice, fmt.Sprintf("%s guessed the word %s correctly and earned %d points.", winner.Name, r.Word, outcome.Points)),
		)
	} else {
		out = append(out, all(events.RoundNotice, fmt.Sprintf("No one guessed the word %s. Nobody earns points.", r.Word)))
	}
	metrics.RoundsSettled.WithLabelValues(result.Outcome).Inc()
	e.logger.Infof("round %d settled: %s", r.Generation, result.Outcome)

	if drawerHere {
		e.queue.Enqueue(r.Drawer)
	}
	e.canvas.Clear()
	e.instruction = InstructionRoundOver
	out = append(out,
		all(events.InstructionText, e.instruction),
		all(events.TimerValue, round.TimerReset),
		all(events.CanvasUnlock, false),
		all(events.CanvasClear, nil),
	)

	if e.recorder != nil {
		e.recorder(result)
	}
	return append(out, e.tryStart()...)
}
