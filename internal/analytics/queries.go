package analytics

import (
	"context"
	"fmt"

	"sketchparty/internal/db"

	lru "github.com/hashicorp/golang-lru"
)

// Source computes uncached stats for one name.
type Source interface {
	PlayerStats(ctx context.Context, name string) (PlayerStats, error)
}

// History reads stats from the rounds table.
type History struct {
	DB *db.DB
}

func (h History) PlayerStats(ctx context.Context, name string) (PlayerStats, error) {
	stats := PlayerStats{Name: name}
	err := h.DB.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE drawer = $1) AS rounds_drawn,
			COUNT(*) FILTER (WHERE winner = $1) AS rounds_guessed,
			COUNT(*) FILTER (WHERE drawer = $1 AND winner <> '') AS drawings_solved,
			COALESCE(SUM(points), 0) AS total_points,
			COALESCE(MAX(points) FILTER (WHERE winner = $1), 0) AS best_guess
		FROM rounds
		WHERE drawer = $1 OR winner = $1
	`, name).Scan(&stats.RoundsDrawn, &stats.RoundsGuessed, &stats.DrawingsSolved, &stats.TotalPoints, &stats.BestGuess)
	if err != nil {
		return PlayerStats{}, fmt.Errorf("getting player stats: %w", err)
	}
	return stats, nil
}

// Queries serves player stats through an ARC cache. Entries are dropped with
// Invalidate whenever new rounds for a name are written.
type Queries struct {
	source Source
	cache  *lru.ARCCache
}

func NewQueries(source Source, cacheSize int) (*Queries, error) {
	cache, err := lru.NewARC(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating stats cache: %w", err)
	}
	return &Queries{source: source, cache: cache}, nil
}

func (q *Queries) GetPlayerStats(ctx context.Context, name string) (PlayerStats, error) {
	if v, ok := q.cache.Get(name); ok {
		return v.(PlayerStats), nil
	}

	stats, err := q.source.PlayerStats(ctx, name)
	if err != nil {
		return PlayerStats{}, err
	}
	if stats.RoundsDrawn > 0 {
		stats.SolveRate = float64(stats.DrawingsSolved) / float64(stats.RoundsDrawn) * 100
	}
	stats.Badges = EvaluateBadges(stats)

	q.cache.Add(name, stats)
	return stats, nil
}

func (q *Queries) Invalidate(names ...string) {
	for _, name := range names {
		if name != "" {
			q.cache.Remove(name)
		}
	}
}
