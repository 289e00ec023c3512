package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sketchparty/internal/broadcast"
	"sketchparty/internal/events"
	"sketchparty/internal/rooms"
	"sketchparty/internal/round"
	"sketchparty/internal/scores"
	"sketchparty/internal/session"
	"sketchparty/internal/words"
	"sketchparty/internal/wshub"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func newTestServer(t *testing.T, configure ...func(*Server)) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	ledger := scores.NewLedger(map[string]int{"carol": 30}, nil)
	wordStore := words.NewStore([]string{"apple"}, nil)
	highscores := broadcast.NewBroadcaster(16)
	ledger.Subscribe(func(view []scores.Entry) {
		data, _ := json.Marshal(view)
		highscores.Publish("highscore", string(data))
	})

	factory := func(code string, hub *wshub.Hub) *session.Engine {
		cfg := session.Config{Room: code, Round: round.Config{Duration: 60}}
		return session.NewEngine(cfg, hub, ledger, wordStore)
	}

	srv := &Server{
		Rooms:      rooms.NewStore(ctx, factory, time.Hour),
		Ledger:     ledger,
		Words:      wordStore,
		Highscores: highscores,
		ChatRate:   100,
		ChatBurst:  100,
	}
	for _, fn := range configure {
		fn(srv)
	}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return srv, ts
}

func do(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestGetWords(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/words")
	require.NoError(t, err)
	defer resp.Body.Close()

	var list []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"apple"}, list)
}

func TestAddWords(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, body := do(t, http.MethodPut, ts.URL+"/add-word", `["house", "apple", "moon"]`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Data has been successfully added", body["message"])
	assert.Equal(t, []string{"apple", "house", "moon"}, srv.Words.List())
}

func TestAddWords_Validation(t *testing.T) {
	srv, ts := newTestServer(t)

	tests := []struct {
		body    string
		message string
	}{
		{`{"word": "house"}`, "data must be a JSON array"},
		{`not json`, "data must be a JSON array"},
		{`["house", 3]`, "data in array must be strings"},
	}
	for _, tt := range tests {
		resp, body := do(t, http.MethodPut, ts.URL+"/add-word", tt.body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tt.body)
		assert.Equal(t, tt.message, body["message"], tt.body)
	}
	assert.Equal(t, []string{"apple"}, srv.Words.List(), "rejected requests add nothing")
}

func TestHighscore_GetSorted(t *testing.T) {
	srv, ts := newTestServer(t)
	srv.Ledger.Credit("alice", 45)

	resp, err := http.Get(ts.URL + "/highscore")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Highscore [][]any `json:"highscore"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, [][]any{{"alice", 45.0}, {"carol", 30.0}}, body.Highscore)
}

func TestHighscore_PostMonotonic(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, _ := do(t, http.MethodPost, ts.URL+"/highscore", `{"carol": 10, "dave": 7}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	score, _ := srv.Ledger.Get("carol")
	assert.Equal(t, 30, score, "lower submission keeps the stored score")
	score, _ = srv.Ledger.Get("dave")
	assert.Equal(t, 7, score)
}

func TestHighscore_PostRejectsWholeBatch(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/highscore", `{"erin": 50, "frank": "lots"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["message"], "frank")

	_, ok := srv.Ledger.Get("erin")
	assert.False(t, ok)

	resp, _ = do(t, http.MethodPost, ts.URL+"/highscore", `[1, 2]`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHighscoreEvents_StreamsUpdates(t *testing.T) {
	srv, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/highscore/events", nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readData := func() string {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimSpace(strings.TrimPrefix(line, "data: "))
			}
		}
	}

	assert.JSONEq(t, `[["carol",30]]`, readData())

	assert.Eventually(t, func() bool { return srv.Highscores.Len() == 1 }, time.Second, 10*time.Millisecond)
	srv.Ledger.Credit("alice", 45)
	assert.JSONEq(t, `[["alice",45],["carol",30]]`, readData())
}

func TestHighscore_PlayerScore(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := do(t, http.MethodGet, ts.URL+"/highscore/carol", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "carol", body["name"])
	assert.Equal(t, 30.0, body["score"])

	resp, _ = do(t, http.MethodGet, ts.URL+"/highscore/nobody", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStats_WithoutDatabase(t *testing.T) {
	_, ts := newTestServer(t)
	resp, _ := do(t, http.MethodGet, ts.URL+"/stats/alice", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRooms_CreateAndGet(t *testing.T) {
	srv, ts := newTestServer(t)

	resp, body := do(t, http.MethodPost, ts.URL+"/rooms", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code, _ := body["code"].(string)
	require.Len(t, code, 4)
	assert.NotNil(t, srv.Rooms.Get(code))

	resp, body = do(t, http.MethodGet, ts.URL+"/rooms/"+strings.ToLower(code), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, code, body["code"])

	resp, _ = do(t, http.MethodGet, ts.URL+"/rooms/ZZZZ", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRooms_ListAndDelete(t *testing.T) {
	srv, ts := newTestServer(t)
	room, err := srv.Rooms.Create()
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/rooms")
	require.NoError(t, err)
	var list []roomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.ElementsMatch(t, []roomResponse{{Code: "MAIN"}, {Code: room.Code}}, list)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/rooms/"+room.Code, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Nil(t, srv.Rooms.Get(room.Code))

	resp, _ = do(t, http.MethodDelete, ts.URL+"/rooms/"+room.Code, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, ts.URL+"/rooms/main", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotNil(t, srv.Rooms.Get("MAIN"))
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)
	resp, body := do(t, http.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, ts *httptest.Server, room string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	if room != "" {
		url += "?room=" + room
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(typ events.Type, data any) {
	c.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(c.t, err)
	frame, err := json.Marshal(events.Envelope{Type: typ, Data: raw})
	require.NoError(c.t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(c.t, c.conn.Write(ctx, websocket.MessageText, frame))
}

// waitFor reads frames until one of type typ arrives and returns its data.
func (c *wsClient) waitFor(typ events.Type) json.RawMessage {
	c.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := c.conn.Read(ctx)
		require.NoError(c.t, err, "waiting for %s", typ)
		var env events.Envelope
		require.NoError(c.t, json.Unmarshal(data, &env))
		if env.Type == typ {
			return env.Data
		}
	}
}

func TestWebSocket_RoundFlow(t *testing.T) {
	srv, ts := newTestServer(t)

	bob := dial(t, ts, "")
	bob.send(events.Join, "bob")
	assert.JSONEq(t, `{"participantCount":1}`, string(bob.waitFor(events.SessionInfo)))

	alice := dial(t, ts, "")
	alice.send(events.Join, "alice")

	assert.JSONEq(t, `true`, string(bob.waitFor(events.CanvasUnlock)))
	assert.JSONEq(t, `"Guess the word!"`, string(alice.waitFor(events.InstructionText)))

	stroke := events.StrokeRecord{X0: 0.1, Y0: 0.2, X1: 0.3, Y1: 0.4, Color: "black"}
	bob.send(events.Stroke, stroke)
	var got events.StrokeRecord
	require.NoError(t, json.Unmarshal(alice.waitFor(events.Stroke), &got))
	assert.Equal(t, stroke, got)

	alice.send(events.ChatMessage, "is it an apple?")
	assert.JSONEq(t, `{"name":"alice","text":"is it an apple?"}`, string(bob.waitFor(events.ChatMessage)))
	bob.waitFor(events.CanvasClear)

	guesser, ok := srv.Ledger.Get("alice")
	require.True(t, ok)
	drawer, _ := srv.Ledger.Get("bob")
	assert.Equal(t, guesser, drawer)
	assert.GreaterOrEqual(t, guesser, 55, "points are the seconds left on a 60s timer")
}

func TestWebSocket_ThrottledGuessStillWins(t *testing.T) {
	srv, ts := newTestServer(t, func(s *Server) {
		s.ChatRate = rate.Every(time.Hour)
		s.ChatBurst = 1
	})

	bob := dial(t, ts, "")
	bob.send(events.Join, "bob")
	bob.waitFor(events.SessionInfo)

	alice := dial(t, ts, "")
	alice.send(events.Join, "alice")
	bob.waitFor(events.CanvasUnlock)

	alice.send(events.ChatMessage, "hello")
	alice.send(events.ChatMessage, "spam")
	alice.send(events.ChatMessage, "apple")

	assert.JSONEq(t, `{"name":"alice","text":"hello"}`, string(bob.waitFor(events.ChatMessage)))
	assert.JSONEq(t, `{"name":"alice","text":"apple"}`, string(bob.waitFor(events.ChatMessage)),
		"spam is dropped, the winning guess is relayed")
	bob.waitFor(events.CanvasClear)

	_, ok := srv.Ledger.Snapshot()["alice"]
	assert.True(t, ok)
}

func TestWebSocket_UnknownRoom(t *testing.T) {
	_, ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?room=ZZZZ"
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, url, nil)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	}
}

func TestWebSocket_DisconnectBroadcastsLeave(t *testing.T) {
	_, ts := newTestServer(t)

	alice := dial(t, ts, "")
	alice.send(events.Join, "alice")
	alice.waitFor(events.SessionInfo)

	bob := dial(t, ts, "")
	bob.send(events.Join, "bob")
	alice.waitFor(events.ParticipantJoined)

	bob.conn.Close(websocket.StatusNormalClosure, "")
	assert.JSONEq(t, `{"name":"bob","participantCount":1}`, string(alice.waitFor(events.ParticipantLeft)))
}
