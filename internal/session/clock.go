package session

import "time"

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock creates tickers and reads the time. Tests swap it for a hand-fed one.
type Clock interface {
	NewTicker(d time.Duration) Ticker
	Now() time.Time
}

type realClock struct{}

type realTicker struct {
	t *time.Ticker
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (r realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r realTicker) Stop() {
	r.t.Stop()
}
