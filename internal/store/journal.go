package store

import (
	"context"
	"log"
	"time"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/services/controller"
)

// Journal feeds the store from the controller. Writes happen on Run's
// goroutine; the notifier methods only enqueue.
type Journal struct {
	store *Store
	queue chan func(ctx context.Context) error
	now   func() time.Time
}

var _ controller.Notifier = (*Journal)(nil)

func NewJournal(s *Store, queueSize int) *Journal {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Journal{store: s, queue: make(chan func(ctx context.Context) error, queueSize), now: time.Now}
}

func (j *Journal) enqueue(what string, fn func(ctx context.Context) error) {
	select {
	case j.queue <- fn:
	default:
		log.Printf("store: WARN: queue full, dropping %s", what)
	}
}

// Run applies queued writes until ctx ends, then drains the queue.
func (j *Journal) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			for {
				select {
				case fn := <-j.queue:
					j.apply(flushCtx, fn)
				default:
					return
				}
			}
		case fn := <-j.queue:
			j.apply(ctx, fn)
		}
	}
}

func (j *Journal) apply(ctx context.Context, fn func(ctx context.Context) error) {
	if err := fn(ctx); err != nil {
		log.Printf("store: %v", err)
	}
}

// RecordSnapshot queues one read cycle.
func (j *Journal) RecordSnapshot(snap messages.SensorSnapshot) {
	j.enqueue("snapshot", func(ctx context.Context) error { return j.store.InsertSnapshot(ctx, snap) })
}

// ===================== controller.Notifier =====================

func (j *Journal) PumpChanged(evt messages.PumpEvent) {
	if evt.Reason == messages.ReasonAnnounce {
		return
	}
	j.enqueue("pump event", func(ctx context.Context) error { return j.store.RecordPump(ctx, evt) })
}

func (j *Journal) ModeChanged(mode entities.SystemMode) {
	at := j.now()
	j.enqueue("mode", func(ctx context.Context) error { return j.store.InsertEvent(ctx, "mode", string(mode), at) })
}

func (j *Journal) ToggleChanged(t entities.Toggle, on bool) {
	v := string(entities.PumpOff)
	if on {
		v = string(entities.PumpOn)
	}
	at := j.now()
	j.enqueue("toggle", func(ctx context.Context) error { return j.store.InsertEvent(ctx, "toggle."+string(t), v, at) })
}

func (j *Journal) Alert(evt messages.AlertEvent) {
	j.enqueue("alert", func(ctx context.Context) error { return j.store.InsertEvent(ctx, "alert", evt.Message, evt.Timestamp) })
}
