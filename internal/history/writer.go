package history

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"
)

// Writer wraps WriteAPIBlocking behind a circuit breaker and tracks the last
// write error for /healthz and /readyz.
type Writer struct {
	api     api.WriteAPIBlocking
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

func mkCB(name string, fails int, open time.Duration) *gobreaker.CircuitBreaker {
	if fails < 1 {
		fails = 1
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: time.Minute,
		Timeout:  open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("history: breaker %s %s -> %s", name, from, to)
		},
	})
}

// NewWriter trips after fails consecutive errors and retries after open.
func NewWriter(w api.WriteAPIBlocking, fails int, open time.Duration) *Writer {
	if open <= 0 {
		open = 30 * time.Second
	}
	return &Writer{
		api:     w,
		cb:      mkCB("influx-write", fails, open),
		timeout: 5 * time.Second,
		lastErr: time.Now().Add(-24 * time.Hour), // far in the past until the first failure
		counts:  make(map[string]int64),
	}
}

// Write sends points synchronously. With the breaker open it fails fast
// with gobreaker.ErrOpenState.
func (w *Writer) Write(ctx context.Context, kind string, points ...*write.Point) error {
	if len(points) == 0 {
		return nil
	}
	_, err := w.cb.Execute(func() (interface{}, error) {
		cctx, cancel := context.WithTimeout(ctx, w.timeout)
		defer cancel()
		return nil, w.api.WritePoint(cctx, points...)
	})
	if err != nil {
		w.mu.Lock()
		w.lastErr = time.Now()
		w.mu.Unlock()
		return fmt.Errorf("influx write %s: %w", kind, err)
	}
	w.MarkIngest(kind)
	return nil
}

// LastErrorAge is the time since the last failed write.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// BreakerOpen reports whether writes are currently short-circuited.
func (w *Writer) BreakerOpen() bool {
	return w != nil && w.cb.State() == gobreaker.StateOpen
}

func (w *Writer) MarkIngest(kind string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.counts[kind]++
	w.mu.Unlock()
}

func (w *Writer) Count(kind string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	c := w.counts[kind]
	w.mu.RUnlock()
	return c
}
