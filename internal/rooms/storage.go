package rooms

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"sketchparty/internal/logging"
	"sketchparty/internal/session"
	"sketchparty/internal/wshub"
)

// DefaultCode names the room that always exists. It contains an I, which
// GenerateCode never emits, so it cannot collide.
const DefaultCode = "MAIN"

var ErrCodeSpace = errors.New("failed to generate unique room code after 10 attempts")

// EngineFactory builds the engine for a new room around its hub.
type EngineFactory func(code string, hub *wshub.Hub) *session.Engine

type Store struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	ctx     context.Context
	factory EngineFactory
	ttl     time.Duration
}

// NewStore creates the default room. Every room engine runs until ctx is done
// or the room is deleted.
func NewStore(ctx context.Context, factory EngineFactory, ttl time.Duration) *Store {
	s := &Store{
		rooms:   make(map[string]*Room),
		ctx:     ctx,
		factory: factory,
		ttl:     ttl,
	}
	s.rooms[DefaultCode] = s.start(DefaultCode)
	return s
}

// start must be called with mu held or before the store is shared.
func (s *Store) start(code string) *Room {
	hub := wshub.NewHub()
	ctx, cancel := context.WithCancel(s.ctx)
	room := &Room{
		Code:      code,
		Engine:    s.factory(code, hub),
		Hub:       hub,
		CreatedAt: time.Now(),
		cancel:    cancel,
	}
	go room.Engine.Run(ctx)
	return room
}

func (s *Store) Create() (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range 10 {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, exists := s.rooms[code]; exists {
			continue
		}
		room := s.start(code)
		s.rooms[code] = room
		logging.FromContext(s.ctx).Infof("created room %s", code)
		return room, nil
	}
	return nil, ErrCodeSpace
}

func (s *Store) Get(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[code]
}

// Delete stops the room's engine. The default room cannot be deleted.
func (s *Store) Delete(code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[code]
	if !ok || code == DefaultCode {
		return false
	}
	room.cancel()
	delete(s.rooms, code)
	return true
}

// List returns the open rooms ordered by code.
func (s *Store) List() []*Room {
	s.mu.Lock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	s.mu.Unlock()
	slices.SortFunc(list, func(a, b *Room) int { return strings.Compare(a.Code, b.Code) })
	return list
}

// Sweep deletes rooms other than the default one that have no connections and
// are older than the TTL. It returns the deleted codes.
func (s *Store) Sweep(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var swept []string
	for code, room := range s.rooms {
		if code == DefaultCode || room.Hub.Len() > 0 || now.Sub(room.CreatedAt) <= s.ttl {
			continue
		}
		room.cancel()
		delete(s.rooms, code)
		swept = append(swept, code)
	}
	return swept
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) error {
	logger := logging.FromContext(ctx).Named("rooms.sweeper")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if swept := s.Sweep(now); len(swept) > 0 {
				logger.Infof("swept stale rooms %v", swept)
			}
		}
	}
}
