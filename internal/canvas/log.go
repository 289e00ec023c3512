package canvas

import "sketchparty/internal/events"

// Log is the ordered stroke history of the current round. It is the only
// record of what the canvas looks like; replaying it rebuilds the drawing.
// Owned by a single session engine.
type Log struct {
	strokes []events.StrokeRecord
}

func NewLog() *Log {
	return &Log{}
}

func (l *Log) Append(s events.StrokeRecord) {
	l.strokes = append(l.strokes, s)
}

// Replay returns every stroke since the last Clear, oldest first.
func (l *Log) Replay() []events.StrokeRecord {
	out := make([]events.StrokeRecord, len(l.strokes))
	copy(out, l.strokes)
	return out
}

func (l *Log) Len() int {
	return len(l.strokes)
}

func (l *Log) Clear() {
	l.strokes = nil
}
