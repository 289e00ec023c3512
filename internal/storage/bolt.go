package storage

import (
	"context"
	"fmt"
	"strconv"

	"sketchparty/internal/logging"

	bolt "go.etcd.io/bbolt"
)

var (
	scoresBucket = []byte("scores")
	wordsBucket  = []byte("words")
)

// DB is the on-disk store for the score ledger and the word list. Both are
// kept as flat key/value buckets and rewritten whole on every save.
type DB struct {
	db *bolt.DB
}

func Open(ctx context.Context, path string) (*DB, error) {
	logger := logging.FromContext(ctx)
	logger.Infof("opening bolt store at %s", path)

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("opening bolt store: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{scoresBucket, wordsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func (d *DB) Close(ctx context.Context) error {
	logging.FromContext(ctx).Infof("closing bolt store")
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("closing bolt store: %w", err)
	}
	return nil
}

// SaveScores replaces the stored scores with scores.
func (d *DB) SaveScores(scores map[string]int) error {
	return d.rewrite(scoresBucket, func(b *bolt.Bucket) error {
		for name, score := range scores {
			if err := b.Put([]byte(name), []byte(strconv.Itoa(score))); err != nil {
				return fmt.Errorf("put score %q: %w", name, err)
			}
		}
		return nil
	})
}

func (d *DB) LoadScores() (map[string]int, error) {
	scores := make(map[string]int)
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(scoresBucket).ForEach(func(k, v []byte) error {
			score, err := strconv.Atoi(string(v))
			if err != nil {
				return fmt.Errorf("decoding score for %q: %w", k, err)
			}
			scores[string(k)] = score
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return scores, nil
}

// SaveWords replaces the stored word list, keeping its order.
func (d *DB) SaveWords(words []string) error {
	return d.rewrite(wordsBucket, func(b *bolt.Bucket) error {
		for i, w := range words {
			if err := b.Put(wordKey(i), []byte(w)); err != nil {
				return fmt.Errorf("put word %q: %w", w, err)
			}
		}
		return nil
	})
}

func (d *DB) LoadWords() ([]string, error) {
	var words []string
	err := d.db.View(func(tx *bolt.Tx) error {
		// Keys are zero padded so cursor order is insertion order.
		return tx.Bucket(wordsBucket).ForEach(func(_, v []byte) error {
			words = append(words, string(v))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view transaction error: %w", err)
	}
	return words, nil
}

func (d *DB) rewrite(bucket []byte, fill func(*bolt.Bucket) error) error {
	tx, err := d.db.Begin(true)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint

	if err := tx.DeleteBucket(bucket); err != nil && err != bolt.ErrBucketNotFound {
		return fmt.Errorf("dropping bucket %s: %w", bucket, err)
	}
	b, err := tx.CreateBucket(bucket)
	if err != nil {
		return fmt.Errorf("can not create bucket %s: %w", bucket, err)
	}
	if err := fill(b); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func wordKey(i int) []byte {
	return []byte(fmt.Sprintf("%08d", i))
}
