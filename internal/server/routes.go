package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"sketchparty/internal/analytics"
	"sketchparty/internal/broadcast"
	"sketchparty/internal/config"
	"sketchparty/internal/db"
	"sketchparty/internal/logging"
	"sketchparty/internal/metrics"
	"sketchparty/internal/rooms"
	"sketchparty/internal/round"
	"sketchparty/internal/scores"
	"sketchparty/internal/session"
	"sketchparty/internal/storage"
	"sketchparty/internal/words"
	"sketchparty/internal/wshub"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = 5 * time.Minute
	roundBuffer     = 1000
)

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /words", s.handleGetWords)
	mux.HandleFunc("PUT /add-word", s.handleAddWords)
	mux.HandleFunc("GET /highscore", s.handleGetHighscore)
	mux.HandleFunc("POST /highscore", s.handlePostHighscore)
	mux.HandleFunc("GET /highscore/events", s.handleHighscoreEvents)
	mux.HandleFunc("GET /highscore/{name}", s.handleGetPlayerScore)
	mux.HandleFunc("GET /stats/{name}", s.handleStats)
	mux.HandleFunc("GET /rooms", s.handleListRooms)
	mux.HandleFunc("POST /rooms", s.handleCreateRoom)
	mux.HandleFunc("DELETE /rooms/{code}", s.handleDeleteRoom)
	mux.HandleFunc("GET /rooms/{code}", s.handleGetRoom)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.StaticDir)))
	}
	return mux
}

// Run wires the stores, the room engines and the HTTP server, and blocks
// until ctx is done or one of them fails.
func Run(ctx context.Context, cfg config.Config) error {
	logger := logging.FromContext(ctx)

	store, err := storage.Open(ctx, cfg.DataPath)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	wordStore, err := loadWords(ctx, store, cfg.WordsFile)
	if err != nil {
		return err
	}

	initialScores, err := store.LoadScores()
	if err != nil {
		return fmt.Errorf("loading scores: %w", err)
	}
	ledger := scores.NewLedger(initialScores, store)
	highscores := broadcast.NewBroadcaster(16)
	metrics.WatchStreamSubscribers(highscores.Len)
	ledger.Subscribe(func(view []scores.Entry) {
		data, err := json.Marshal(view)
		if err != nil {
			logger.Errorf("encoding leaderboard: %v", err)
			return
		}
		highscores.Publish("highscore", string(data))
	})

	srv := &Server{
		Ledger:     ledger,
		Words:      wordStore,
		Highscores: highscores,
		ChatRate:   rate.Limit(cfg.ChatRate),
		ChatBurst:  cfg.ChatBurst,
		StaticDir:  cfg.StaticDir,
	}

	// Optional database connection
	var roundWriter *db.RoundWriter
	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Warnf("failed to connect to database: %v (running without database)", err)
		} else {
			defer database.Close()
			if err := database.Migrate(ctx); err != nil {
				logger.Errorf("migration failed: %v", err)
			}
			stats, err := analytics.NewQueries(analytics.History{DB: database}, cfg.StatsCacheSize)
			if err != nil {
				return err
			}
			srv.DB = database
			srv.Stats = stats
			roundWriter = db.NewRoundWriter(database, roundBuffer)
			roundWriter.OnWrite(func(records []db.RoundRecord) {
				for _, r := range records {
					stats.Invalidate(r.Drawer, r.Winner)
				}
			})
		}
	} else {
		logger.Infof("DATABASE_URL not set, running without database")
	}

	g, gctx := errgroup.WithContext(ctx)

	factory := func(code string, hub *wshub.Hub) *session.Engine {
		opts := []session.Option{session.WithLogger(logger)}
		if roundWriter != nil {
			opts = append(opts, session.WithRecorder(func(res session.RoundResult) {
				if !roundWriter.Enqueue(toRecord(res)) {
					logger.Warnf("round buffer full, dropping round of room %s", res.Room)
				}
			}))
		}
		engineCfg := session.Config{Room: code, Round: round.Config{Duration: cfg.RoundDuration}}
		return session.NewEngine(engineCfg, hub, ledger, wordStore, opts...)
	}
	srv.Rooms = rooms.NewStore(gctx, factory, cfg.RoomTTL)

	httpServer := &http.Server{
		Addr:        "0.0.0.0:" + cfg.Port,
		Handler:     srv.Routes(),
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	g.Go(func() error {
		logger.Infof("server listening on http://localhost:%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return ledger.RunWriter(gctx)
	})
	g.Go(func() error {
		return srv.Rooms.RunSweeper(gctx, sweepInterval)
	})
	if roundWriter != nil {
		g.Go(func() error {
			return roundWriter.Run(gctx)
		})
	}

	return g.Wait()
}

// loadWords restores the stored word list, seeding the defaults into an empty
// store, then merges the optional words file.
func loadWords(ctx context.Context, store *storage.DB, wordsFile string) (*words.Store, error) {
	logger := logging.FromContext(ctx)

	stored, err := store.LoadWords()
	if err != nil {
		return nil, fmt.Errorf("loading words: %w", err)
	}
	wordStore := words.NewStore(stored, store)
	if wordStore.Len() == 0 {
		if _, err := wordStore.Add(words.Defaults); err != nil {
			logger.Errorf("seeding default words: %v", err)
		}
	}
	if wordsFile != "" {
		list, err := words.LoadFile(wordsFile)
		if err != nil {
			return nil, err
		}
		added, err := wordStore.Add(list)
		if err != nil {
			logger.Errorf("saving words from %s: %v", wordsFile, err)
		}
		logger.Infof("loaded %d new words from %s", len(added), wordsFile)
	}
	return wordStore, nil
}

func toRecord(res session.RoundResult) db.RoundRecord {
	return db.RoundRecord{
		Room:      res.Room,
		Word:      res.Word,
		Drawer:    res.Drawer,
		Winner:    res.Winner,
		Points:    res.Points,
		Outcome:   res.Outcome,
		Strokes:   res.Strokes,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}
}
