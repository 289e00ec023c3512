package players

import (
	"time"

	"github.com/google/uuid"
)

// Player is a joined participant. ID is the connection handle; Name is set
// once on join and never changes.
type Player struct {
	ID       uuid.UUID
	Name     string
	JoinedAt time.Time
}

func New(id uuid.UUID, name string) *Player {
	return &Player{ID: id, Name: name, JoinedAt: time.Now()}
}
