package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sketchparty/internal/events"
	"sketchparty/internal/logging"
	"sketchparty/internal/rooms"
	"sketchparty/internal/session"
	"sketchparty/internal/wshub"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"
)

const (
	sendBuffer   = 256
	leaveTimeout = 5 * time.Second
)

// handleWS attaches one connection to a room. The read loop is the only
// producer of that connection's events, so they reach the engine in order.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	room := s.Rooms.Get(rooms.NormalizeCode(r.URL.Query().Get("room")))
	if room == nil {
		writeJSON(w, r, http.StatusNotFound, messageResponse{Message: "room not found"})
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logging.FromContext(r.Context()).Warnf("websocket accept: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	client := wshub.NewClient(conn, sendBuffer)
	logger := logging.FromContext(ctx).Named("ws").With("room", room.Code, "conn", client.ID)
	room.Hub.Register(client)
	go client.WritePump(ctx)

	defer func() {
		room.Hub.Unregister(client.ID)
		leaveCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), leaveTimeout)
		defer stop()
		if err := room.Engine.Post(leaveCtx, session.Leave{Conn: client.ID}); err != nil && !errors.Is(err, session.ErrStopped) {
			logger.Warnf("posting leave: %v", err)
		}
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	limiter := rate.NewLimiter(s.ChatRate, s.ChatBurst)
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			logger.Debugf("read: %v", err)
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		in, err := events.Decode(data)
		if err != nil {
			logger.Debugf("ignoring frame: %v", err)
			continue
		}
		ev, ok := session.FromInbound(client.ID, in)
		if !ok {
			continue
		}
		if chat, isChat := ev.(session.Chat); isChat && !limiter.Allow() {
			chat.Throttled = true
			ev = chat
		}
		if err := room.Engine.Post(ctx, ev); err != nil {
			return
		}
	}
}
