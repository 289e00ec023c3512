package db

import (
	"context"
	"fmt"
	"time"

	"sketchparty/internal/logging"
)

// RoundRecord is one settled round.
type RoundRecord struct {
	Room      string
	Word      string
	Drawer    string
	Winner    string
	Points    int
	Outcome   string
	Strokes   int
	StartedAt time.Time
	EndedAt   time.Time
}

const insertRound = `
	INSERT INTO rounds (room_code, word, drawer, winner, points, outcome, strokes, started_at, ended_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

func (d *DB) BatchRecordRounds(ctx context.Context, records []RoundRecord) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertRound)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Room, r.Word, r.Drawer, r.Winner, r.Points, r.Outcome, r.Strokes, r.StartedAt, r.EndedAt); err != nil {
			return fmt.Errorf("recording round in batch: %w", err)
		}
	}

	return tx.Commit()
}

// RoundBatcher stores a batch of rounds.
type RoundBatcher interface {
	BatchRecordRounds(ctx context.Context, records []RoundRecord) error
}

const (
	batchSize     = 50
	flushInterval = 500 * time.Millisecond
)

// RoundWriter buffers settled rounds and writes them in batches so the game
// engines never wait on the database.
type RoundWriter struct {
	store  RoundBatcher
	buffer chan RoundRecord
	after  func([]RoundRecord)
}

func NewRoundWriter(store RoundBatcher, size int) *RoundWriter {
	return &RoundWriter{
		store:  store,
		buffer: make(chan RoundRecord, size),
	}
}

// OnWrite registers fn to run after every successful batch.
func (w *RoundWriter) OnWrite(fn func([]RoundRecord)) {
	w.after = fn
}

// Enqueue never blocks; it reports false when the buffer is full and the
// record was dropped.
func (w *RoundWriter) Enqueue(r RoundRecord) bool {
	select {
	case w.buffer <- r:
		return true
	default:
		return false
	}
}

// Run flushes every batchSize records or every flushInterval, and once more
// when ctx is done.
func (w *RoundWriter) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("db.rounds")
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	batch := make([]RoundRecord, 0, batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := w.store.BatchRecordRounds(ctx, batch); err != nil {
			logger.Errorf("BatchRecordRounds: %v", err)
		} else if w.after != nil {
			w.after(append([]RoundRecord(nil), batch...))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case r := <-w.buffer:
					batch = append(batch, r)
				default:
					flush(context.WithoutCancel(ctx))
					return nil
				}
			}
		case r := <-w.buffer:
			batch = append(batch, r)
			if len(batch) >= batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
