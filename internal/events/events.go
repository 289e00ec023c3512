package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Type names an event on the per-connection channel.
type Type string

// Inbound event types.
const (
	Join          Type = "join"
	ChatMessage   Type = "chatMessage"
	TypingStart   Type = "typingStart"
	TypingStop    Type = "typingStop"
	Stroke        Type = "stroke"
	ResyncRequest Type = "resyncRequest"
)

// Outbound-only event types. ChatMessage, TypingStart, TypingStop and Stroke
// travel in both directions.
const (
	SessionInfo       Type = "sessionInfo"
	ParticipantJoined Type = "participantJoined"
	ParticipantLeft   Type = "participantLeft"
	CanvasUnlock      Type = "canvasUnlock"
	CanvasClear       Type = "canvasClear"
	InstructionText   Type = "instructionText"
	TimerValue        Type = "timerValue"
	RoundNotice       Type = "roundNotice"
)

var (
	ErrMalformed   = errors.New("malformed event")
	ErrUnknownType = errors.New("unknown event type")
	ErrBadStroke   = errors.New("stroke out of bounds")
)

// Envelope is the JSON frame exchanged with clients.
type Envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// StrokeRecord is one canvas segment. Coordinates are fractions of the
// canvas width and height so the log is resolution independent.
type StrokeRecord struct {
	X0    float64 `json:"x0"`
	Y0    float64 `json:"y0"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	Color string  `json:"color"`
}

func (s StrokeRecord) Valid() bool {
	for _, v := range [...]float64{s.X0, s.Y0, s.X1, s.Y1} {
		if v < 0 || v > 1 {
			return false
		}
	}
	return s.Color != ""
}

// Inbound is a decoded client event. Only the field matching Type is set.
type Inbound struct {
	Type   Type
	Name   string
	Text   string
	Stroke StrokeRecord
}

func Decode(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Inbound{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	in := Inbound{Type: env.Type}
	switch env.Type {
	case Join:
		if err := json.Unmarshal(env.Data, &in.Name); err != nil {
			return Inbound{}, fmt.Errorf("%w: join name: %v", ErrMalformed, err)
		}
	case ChatMessage:
		if err := json.Unmarshal(env.Data, &in.Text); err != nil {
			return Inbound{}, fmt.Errorf("%w: chat text: %v", ErrMalformed, err)
		}
	case Stroke:
		if err := json.Unmarshal(env.Data, &in.Stroke); err != nil {
			return Inbound{}, fmt.Errorf("%w: stroke: %v", ErrMalformed, err)
		}
		if !in.Stroke.Valid() {
			return Inbound{}, ErrBadStroke
		}
	case TypingStart, TypingStop, ResyncRequest:
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	return in, nil
}

// Outbound is a server event ready to be encoded.
type Outbound struct {
	Type Type
	Data any
}

func (o Outbound) Encode() ([]byte, error) {
	env := Envelope{Type: o.Type}
	if o.Data != nil {
		data, err := json.Marshal(o.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", o.Type, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

type CountPayload struct {
	ParticipantCount int `json:"participantCount"`
}

type ParticipantPayload struct {
	Name             string `json:"name"`
	ParticipantCount int    `json:"participantCount"`
}

type ChatPayload struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type NamePayload struct {
	Name string `json:"name"`
}
