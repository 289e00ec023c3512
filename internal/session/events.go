package session

import (
	"sketchparty/internal/events"

	"github.com/google/uuid"
)

// Event is one unit of work for the engine. The set is closed: only the types
// in this file implement it.
type Event interface {
	event()
}

type Join struct {
	Conn uuid.UUID
	Name string
}

// Leave is posted when a connection closes, joined or not.
type Leave struct {
	Conn uuid.UUID
}

// Chat is a chat line and, while a round runs, a guess. Throttled marks a
// message over the sender's rate limit: it is still evaluated as a guess but
// only relayed when it wins.
type Chat struct {
	Conn      uuid.UUID
	Text      string
	Throttled bool
}

type TypingStart struct {
	Conn uuid.UUID
}

type TypingStop struct {
	Conn uuid.UUID
}

type Stroke struct {
	Conn   uuid.UUID
	Record events.StrokeRecord
}

type Resync struct {
	Conn uuid.UUID
}

// Tick is one second of countdown for the round with the given generation.
type Tick struct {
	Generation uint64
}

func (Join) event()        {}
func (Leave) event()       {}
func (Chat) event()        {}
func (TypingStart) event() {}
func (TypingStop) event()  {}
func (Stroke) event()      {}
func (Resync) event()      {}
func (Tick) event()        {}

// FromInbound maps a decoded client frame to an engine event.
func FromInbound(conn uuid.UUID, in events.Inbound) (Event, bool) {
	switch in.Type {
	case events.Join:
		return Join{Conn: conn, Name: in.Name}, true
	case events.ChatMessage:
		return Chat{Conn: conn, Text: in.Text}, true
	case events.TypingStart:
		return TypingStart{Conn: conn}, true
	case events.TypingStop:
		return TypingStop{Conn: conn}, true
	case events.Stroke:
		return Stroke{Conn: conn, Record: in.Stroke}, true
	case events.ResyncRequest:
		return Resync{Conn: conn}, true
	}
	return nil, false
}

type Target int

const (
	ToOne Target = iota
	ToAll
	ToOthers // everyone except Conn
)

// Delivery is an outbound message and who should receive it.
type Delivery struct {
	To   Target
	Conn uuid.UUID
	Msg  events.Outbound
}

func one(conn uuid.UUID, t events.Type, data any) Delivery {
	return Delivery{To: ToOne, Conn: conn, Msg: events.Outbound{Type: t, Data: data}}
}

func all(t events.Type, data any) Delivery {
	return Delivery{To: ToAll, Msg: events.Outbound{Type: t, Data: data}}
}

func others(conn uuid.UUID, t events.Type, data any) Delivery {
	return Delivery{To: ToOthers, Conn: conn, Msg: events.Outbound{Type: t, Data: data}}
}
