package history

import (
	"encoding/json"
	"net/http"
	"time"
)

// Link reports whether the broker session is up.
type Link interface {
	IsConnected() bool
}

type healthHandler struct {
	link   Link
	writer *Writer
}

func NewHealthHandler(l Link, w *Writer) http.Handler {
	return &healthHandler{link: l, writer: w}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string  `json:"status"`
		MQTTConnected   bool    `json:"mqtt_connected"`
		HistoryEnabled  bool    `json:"history_enabled"`
		InfluxOK        bool    `json:"influx_ok"`
		LastWriteErrorS float64 `json:"last_write_error_age_sec"`
	}
	st := status{
		MQTTConnected:   h.link != nil && h.link.IsConnected(),
		HistoryEnabled:  h.writer != nil,
		InfluxOK:        h.writer == nil || !h.writer.BreakerOpen(),
		LastWriteErrorS: h.writer.LastErrorAge().Seconds(),
	}

	// ok when both links are up and no write failed recently
	if st.MQTTConnected && st.InfluxOK && h.writer.LastErrorAge() > 30*time.Second {
		st.Status = "ok"
	} else if st.MQTTConnected || st.InfluxOK {
		st.Status = "degraded"
	} else {
		st.Status = "down"
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// readyHandler: 200 only when the broker is up and history writes are healthy.
// Without a history writer only the broker counts.
type readyHandler struct {
	link     Link
	writer   *Writer
	minError time.Duration
}

func NewReadyHandler(l Link, w *Writer, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{link: l, writer: w, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := h.link != nil && h.link.IsConnected()
	if h.writer != nil {
		ready = ready && !h.writer.BreakerOpen() && h.writer.LastErrorAge() > h.minError
	}
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}
