package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"sketchparty/internal/analytics"
	"sketchparty/internal/broadcast"
	"sketchparty/internal/db"
	"sketchparty/internal/logging"
	"sketchparty/internal/rooms"
	"sketchparty/internal/scores"
	"sketchparty/internal/words"

	"golang.org/x/time/rate"
)

const maxBodyBytes = 1 << 20

type Server struct {
	Rooms      *rooms.Store
	Ledger     *scores.Ledger
	Words      *words.Store
	Highscores *broadcast.Broadcaster
	Stats      *analytics.Queries // nil if no database configured
	DB         *db.DB             // nil if no database configured

	ChatRate  rate.Limit
	ChatBurst int
	StaticDir string // empty disables static file serving
}

const successMessage = "Data has been successfully added"

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return body, nil
}

func (s *Server) handleGetWords(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.Words.List())
}

func (s *Server) handleAddWords(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	list, err := words.ParseAddRequest(body)
	if err != nil {
		writeError(w, r, validation(err))
		return
	}

	added, err := s.Words.Add(list)
	if err != nil {
		// the in-memory list already has the words
		logging.FromContext(r.Context()).Errorf("persisting words: %v", err)
	}
	logging.FromContext(r.Context()).Debugf("added %d of %d words", len(added), len(list))
	writeJSON(w, r, http.StatusOK, messageResponse{Message: successMessage})
}

type highscoreResponse struct {
	Highscore []scores.Entry `json:"highscore"`
}

func (s *Server) handleGetHighscore(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, highscoreResponse{Highscore: s.Ledger.Sorted()})
}

type playerScoreResponse struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

func (s *Server) handleGetPlayerScore(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	score, ok := s.Ledger.Get(name)
	if !ok {
		writeJSON(w, r, http.StatusNotFound, messageResponse{Message: "no score for " + name})
		return
	}
	writeJSON(w, r, http.StatusOK, playerScoreResponse{Name: name, Score: score})
}

func (s *Server) handlePostHighscore(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	batch, err := scores.ParseSubmission(body)
	if err != nil {
		writeError(w, r, validation(err))
		return
	}
	if err := s.Ledger.Submit(batch); err != nil {
		writeError(w, r, validation(err))
		return
	}
	writeJSON(w, r, http.StatusOK, messageResponse{Message: successMessage})
}

// handleHighscoreEvents streams the sorted leaderboard after every change.
func (s *Server) handleHighscoreEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	msgChan := s.Highscores.Subscribe()
	defer s.Highscores.Unsubscribe(msgChan)

	initial, err := json.Marshal(s.Ledger.Sorted())
	if err == nil {
		writeEvent(w, broadcast.Message{Event: "highscore", Data: string(initial)})
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-msgChan:
			if !ok {
				return
			}
			writeEvent(w, msg)
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, msg broadcast.Message) {
	fmt.Fprintf(w, "event: %s\n", msg.Event)
	for _, line := range strings.Split(msg.Data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprint(w, "\n")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.Stats == nil {
		writeJSON(w, r, http.StatusServiceUnavailable, messageResponse{Message: "stats require a database connection"})
		return
	}
	stats, err := s.Stats.GetPlayerStats(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

type roomResponse struct {
	Code        string `json:"code"`
	Connections int    `json:"connections"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.Rooms.Create()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, roomResponse{Code: room.Code})
}

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	list := s.Rooms.List()
	out := make([]roomResponse, 0, len(list))
	for _, room := range list {
		out = append(out, roomResponse{Code: room.Code, Connections: room.Hub.Len()})
	}
	writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	code := rooms.NormalizeCode(r.PathValue("code"))
	if code == rooms.DefaultCode {
		writeJSON(w, r, http.StatusConflict, messageResponse{Message: "the default room cannot be deleted"})
		return
	}
	if !s.Rooms.Delete(code) {
		writeJSON(w, r, http.StatusNotFound, messageResponse{Message: "room not found"})
		return
	}
	logging.FromContext(r.Context()).Infof("room %s deleted", code)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room := s.Rooms.Get(rooms.NormalizeCode(r.PathValue("code")))
	if room == nil {
		writeJSON(w, r, http.StatusNotFound, messageResponse{Message: "room not found"})
		return
	}
	writeJSON(w, r, http.StatusOK, roomResponse{Code: room.Code, Connections: room.Hub.Len()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.DB != nil {
		if err := s.DB.Ping(r.Context()); err != nil {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{"status": "db_error", "error": err.Error()})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
