package utils

import (
	"sync"
	"time"
)

// Ticker is a wrapper around time.Ticker. It is given a name and is kept
// in a map indexed by name so it is easy to look up to shut down or
// reset.
type Ticker struct {
	Name string
	*time.Ticker
	Func func(t time.Time)

	done chan struct{}

	mu       sync.Mutex
	ticks    int
	lastTick time.Time
}

var (
	// StartTime is the time the bridge process started
	StartTime time.Time

	tickersMu sync.Mutex
	// the map with all our tickers
	tickers = make(map[string]*Ticker)
)

func init() {
	StartTime = time.Now()
}

// Timestamp returns the time.Duration since the program was started,
// useful to stamping communication messages.
func Timestamp() time.Duration {
	return time.Since(StartTime)
}

// NewTicker creates a time.Ticker with the name n that will fire
// every d time.Duration. The function f will be called every time
// the ticker goes off. The ticker can be stopped with Stop.
func NewTicker(n string, d time.Duration, f func(t time.Time)) *Ticker {
	t := &Ticker{
		Name:   n,
		Ticker: time.NewTicker(d),
		Func:   f,
		done:   make(chan struct{}),
	}

	tickersMu.Lock()
	tickers[n] = t
	tickersMu.Unlock()

	go func() {
		for {
			select {
			case tick := <-t.Ticker.C:
				t.mu.Lock()
				t.ticks++
				t.lastTick = tick
				t.mu.Unlock()
				f(tick)
			case <-t.done:
				return
			}
		}
	}()
	return t
}

// Stop halts the ticker and its delivery goroutine. Safe to call at
// most once; a second call would close an already-closed channel, so
// callers that may call it more than once should guard with sync.Once.
func (t *Ticker) Stop() {
	t.Ticker.Stop()
	close(t.done)

	tickersMu.Lock()
	if tickers[t.Name] == t {
		delete(tickers, t.Name)
	}
	tickersMu.Unlock()
}

// GetTickers returns a snapshot of all ticker values.
func GetTickers() map[string]*Ticker {
	tickersMu.Lock()
	defer tickersMu.Unlock()
	out := make(map[string]*Ticker, len(tickers))
	for k, v := range tickers {
		out[k] = v
	}
	return out
}

// GetTicker returns the named ticker or nil if it does not exist.
func GetTicker(n string) *Ticker {
	tickersMu.Lock()
	defer tickersMu.Unlock()
	return tickers[n]
}
