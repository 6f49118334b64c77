package observability

import (
    "net/http"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics counts stream activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
    streamsOpened  *prometheus.CounterVec
    framesSent     *prometheus.CounterVec
    framesReceived *prometheus.CounterVec
    streamErrors   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil reg
// leaves them unregistered, which is what tests usually want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
    m := &Metrics{
        streamsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "ttstream",
            Name:      "streams_opened_total",
            Help:      "Stream open attempts by result.",
        }, []string{"result"}),
        framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "ttstream",
            Name:      "frames_sent_total",
            Help:      "Envelopes written, by envelope type.",
        }, []string{"type"}),
        framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "ttstream",
            Name:      "frames_received_total",
            Help:      "Envelopes read, by envelope type.",
        }, []string{"type"}),
        streamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "ttstream",
            Name:      "stream_errors_total",
            Help:      "Terminal stream errors by kind.",
        }, []string{"kind"}),
    }
    if reg != nil {
        reg.MustRegister(m.streamsOpened, m.framesSent, m.framesReceived, m.streamErrors)
    }
    return m
}

func (m *Metrics) StreamOpened(ok bool) {
    if m == nil { return }
    if ok { m.streamsOpened.WithLabelValues("ok").Inc(); return }
    m.streamsOpened.WithLabelValues("unreachable").Inc()
}

func (m *Metrics) FrameSent(typ string) {
    if m == nil { return }
    m.framesSent.WithLabelValues(typ).Inc()
}

func (m *Metrics) FrameReceived(typ string) {
    if m == nil { return }
    m.framesReceived.WithLabelValues(typ).Inc()
}

// StreamError records a terminal error: "remote", "fault", "unreachable" or "eof".
func (m *Metrics) StreamError(kind string) {
    if m == nil { return }
    m.streamErrors.WithLabelValues(kind).Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
    return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
