package observability

import (
    "os"
    "path/filepath"
    "strings"
    "testing"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/testutil"

    "ttstream/pkg/config"
)

func TestMetricsCount(t *testing.T) {
    reg := prometheus.NewRegistry()
    m := NewMetrics(reg)
    m.StreamOpened(true)
    m.StreamOpened(false)
    m.FrameSent("data")
    m.FrameSent("data")
    m.FrameReceived("close")
    m.StreamError("remote")

    if got := testutil.ToFloat64(m.streamsOpened.WithLabelValues("ok")); got != 1 { t.Fatalf("opened ok=%v", got) }
    if got := testutil.ToFloat64(m.framesSent.WithLabelValues("data")); got != 2 { t.Fatalf("sent data=%v", got) }
    if n := testutil.CollectAndCount(m.streamErrors); n != 1 { t.Fatalf("error series=%d", n) }

    const want = `
# HELP ttstream_frames_received_total Envelopes read, by envelope type.
# TYPE ttstream_frames_received_total counter
ttstream_frames_received_total{type="close"} 1
`
    if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "ttstream_frames_received_total"); err != nil { t.Fatalf("gather: %v", err) }
}

func TestNilMetricsIsNoop(t *testing.T) {
    var m *Metrics
    m.StreamOpened(true)
    m.FrameSent("data")
    m.FrameReceived("data")
    m.StreamError("fault")
}

func TestSetupLoggerFileOutput(t *testing.T) {
    path := filepath.Join(t.TempDir(), "logs", "out.log")
    c := config.Default().Log
    c.Outputs = []string{path}
    c.Format = "json"
    c.Development = false
    lg, err := SetupLogger(c)
    if err != nil { t.Fatalf("setup: %v", err) }
    lg.Info("hello")
    _ = lg.Sync()
    b, err := os.ReadFile(path)
    if err != nil { t.Fatalf("read: %v", err) }
    if !strings.Contains(string(b), `"msg":"hello"`) { t.Fatalf("unexpected log output %q", b) }
}

func TestComponentNilBase(t *testing.T) {
    if Component(nil, "client") == nil { t.Fatalf("expected no-op logger") }
}
