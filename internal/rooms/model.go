package rooms

import (
	"context"
	"time"

	"sketchparty/internal/session"
	"sketchparty/internal/wshub"
)

// Room is one independent game: its connection registry and the engine that
// owns its round.
type Room struct {
	Code      string
	Engine    *session.Engine
	Hub       *wshub.Hub
	CreatedAt time.Time

	cancel context.CancelFunc
}
