package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for RoundsSettled.
const (
	OutcomeGuessed   = "guessed"
	OutcomeTimeout   = "timeout"
	OutcomeAbandoned = "abandoned"
)

var (
	RoundsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sketchparty",
		Name:      "rounds_started_total",
		Help:      "Rounds moved from idle to running.",
	})

	RoundsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sketchparty",
		Name:      "rounds_settled_total",
		Help:      "Rounds settled, by outcome.",
	}, []string{"outcome"})

	Participants = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sketchparty",
		Name:      "participants",
		Help:      "Joined participants per room.",
	}, []string{"room"})

	Strokes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sketchparty",
		Name:      "strokes_total",
		Help:      "Stroke records appended to canvas logs.",
	})

	ChatDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sketchparty",
		Name:      "chat_dropped_total",
		Help:      "Chat messages over the per-connection rate limit that were not relayed.",
	})

	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sketchparty",
		Name:      "frames_dropped_total",
		Help:      "Outbound frames dropped because a client's send buffer was full.",
	})
)

// WatchStreamSubscribers exports the number of open leaderboard streams as
// reported by count. Call it once per process.
func WatchStreamSubscribers(count func() int) prometheus.GaugeFunc {
	return promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "sketchparty",
		Name:      "highscore_subscribers",
		Help:      "Open leaderboard event streams.",
	}, func() float64 { return float64(count()) })
}
