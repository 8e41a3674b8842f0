package history

import (
	"context"
	"log"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/entities"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/model/messages"
	"github.com/LeonardoBeccarini/hydroponic_project/internal/services/controller"
)

type job struct {
	kind  string
	point *write.Point
}

// Recorder turns controller changes and snapshots into points and writes
// them off the controller goroutine. A full queue drops points.
type Recorder struct {
	instance string
	writer   *Writer
	queue    chan job
}

var _ controller.Notifier = (*Recorder)(nil)

func NewRecorder(instance string, w *Writer, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Recorder{instance: instance, writer: w, queue: make(chan job, queueSize)}
}

func (r *Recorder) enqueue(kind string, p *write.Point) {
	if p == nil {
		return
	}
	select {
	case r.queue <- job{kind: kind, point: p}:
	default:
		log.Printf("history: WARN: queue full, dropping %s point", kind)
	}
}

// Run writes queued points until ctx ends, then flushes what is left with
// a short grace period.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			for {
				select {
				case j := <-r.queue:
					r.write(flushCtx, j)
				default:
					return
				}
			}
		case j := <-r.queue:
			r.write(ctx, j)
		}
	}
}

func (r *Recorder) write(ctx context.Context, j job) {
	if err := r.writer.Write(ctx, j.kind, j.point); err != nil {
		log.Printf("history: %v", err)
	}
}

// RecordSnapshot queues one read cycle.
func (r *Recorder) RecordSnapshot(s messages.SensorSnapshot) {
	r.enqueue("snapshot", SnapshotToPoint(r.instance, s))
}

// ===================== controller.Notifier =====================

func (r *Recorder) PumpChanged(evt messages.PumpEvent) {
	if evt.Reason == messages.ReasonAnnounce {
		return
	}
	r.enqueue("pump", PumpEventToPoint(r.instance, evt))
}

func (r *Recorder) ModeChanged(mode entities.SystemMode) {
	r.enqueue("system", SystemEventToPoint(r.instance, "mode", string(mode), time.Now()))
}

func (r *Recorder) ToggleChanged(t entities.Toggle, on bool) {
	v := "OFF"
	if on {
		v = "ON"
	}
	r.enqueue("system", SystemEventToPoint(r.instance, "toggle."+string(t), v, time.Now()))
}

func (r *Recorder) Alert(evt messages.AlertEvent) {
	r.enqueue("system", SystemEventToPoint(r.instance, "alert", evt.Message, evt.Timestamp))
}
