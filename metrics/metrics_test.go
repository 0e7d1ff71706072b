package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRun(t *testing.T) {
	m := New()
	m.ObserveIngest("submissions", 10, 2, 1, 7)
	m.ObserveDedup(3)
	m.ObserveJoin(4, 1, 2)
	m.ObserveOutliers("all", 1)
	finished := time.Unix(1700000000, 0)
	m.RecordRun("succeeded", 1500*time.Millisecond, finished, true)
	m.RecordRun("failed", time.Second, finished.Add(time.Hour), false)

	if got := testutil.ToFloat64(m.rows.WithLabelValues("submissions", "parse_failure")); got != 2 {
		t.Fatalf("expected 2 parse failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.dedupDropped); got != 3 {
		t.Fatalf("expected 3 dropped, got %v", got)
	}
	if got := testutil.ToFloat64(m.join.WithLabelValues("joined")); got != 4 {
		t.Fatalf("expected 4 joined, got %v", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess); got != 1700000000 {
		t.Fatalf("failed run moved last success timestamp: %v", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected one failed run, got %v", got)
	}
}

func TestQueueMetrics(t *testing.T) {
	m := New()
	m.UpdateQueue(1, 4)
	m.RecordJobCompletion(nil)
	m.RecordJobCompletion(errors.New("boom"))
	if got := testutil.ToFloat64(m.queueCapacity); got != 4 {
		t.Fatalf("expected capacity 4, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobs.WithLabelValues("processed")); got != 2 {
		t.Fatalf("expected 2 processed, got %v", got)
	}
	if got := testutil.ToFloat64(m.jobs.WithLabelValues("failed")); got != 1 {
		t.Fatalf("expected 1 failed, got %v", got)
	}
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.ObserveDedup(5)
	path := filepath.Join(t.TempDir(), "report.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "response_report_dedup_dropped 5") {
		t.Fatalf("textfile missing gauge:\n%s", data)
	}
}
