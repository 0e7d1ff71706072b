package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"response_analytics/config"
	"response_analytics/internal/pipeline"
	"response_analytics/internal/store"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	subs := filepath.Join(dir, "entries.csv")
	resp := filepath.Join(dir, "actions.csv")
	if err := os.WriteFile(subs, []byte("patientId,entryId,createdAt_time\nA,e1,2013-06-03 09:00:00\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(resp, []byte("patientId,timeResponded,team name\nA,2013-06-04 21:00:00,Crisis\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return config.Config{
		SubmissionsPath: subs,
		ResponsesPath:   resp,
		OutputDir:       filepath.Join(dir, "out"),
		DBPath:          filepath.Join(dir, "state", "report.db"),
		PersistRuns:     true,
		DedupWindow:     3 * time.Minute,
		DedupPolicy:     "consecutive",
		Cutoff:          time.Date(2013, time.June, 1, 0, 0, 0, 0, time.UTC),
		OutlierDays:     30,
		HistogramBins:   10,
		Location:        time.UTC,
		JobTimeoutSec:   30,
		Columns:         config.DefaultColumns(),
	}
}

func TestRunOncePersists(t *testing.T) {
	a, err := New(testConfig(t), io.Discard)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	res, err := a.RunOnce(context.Background(), "manual")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Report.Overall.Summary.Mean.Value != 1.5 {
		t.Fatalf("expected 1.5 day response, got %v", res.Report.Overall.Summary.Mean)
	}
	runs, err := a.History(context.Background(), 5)
	if err != nil || len(runs) != 1 || runs[0].Status != store.StatusSucceeded || runs[0].Trigger != "manual" {
		t.Fatalf("unexpected history %+v (%v)", runs, err)
	}
}

func TestRunExecutesStartupRun(t *testing.T) {
	a, err := New(testConfig(t), io.Discard)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	done := make(chan *pipeline.Result, 1)
	a.onRun = func(res *pipeline.Result, err error) {
		if err != nil {
			t.Errorf("startup run failed: %v", err)
		}
		done <- res
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- a.Run(ctx) }()

	select {
	case res := <-done:
		if res == nil || res.Status != store.StatusSucceeded {
			t.Fatalf("unexpected startup result %+v", res)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("startup run did not complete")
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("run returned %v", err)
	}
	runs, _ := a.History(context.Background(), 5)
	if len(runs) != 1 || runs[0].Trigger != "startup" {
		t.Fatalf("expected one startup run, got %+v", runs)
	}
}

func TestHistoryRequiresPersistence(t *testing.T) {
	cfg := testConfig(t)
	cfg.PersistRuns = false
	a, err := New(cfg, io.Discard)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := a.History(context.Background(), 1); err == nil {
		t.Fatalf("expected error without a store")
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestRunLogReturnsStageLines(t *testing.T) {
	a, err := New(testConfig(t), io.Discard)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()
	res, err := a.RunOnce(context.Background(), "manual")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	run, lines, err := a.RunLog(context.Background(), res.RunID)
	if err != nil {
		t.Fatalf("run log: %v", err)
	}
	if run.ID != res.RunID || len(lines) == 0 {
		t.Fatalf("expected log lines for %s, got %+v %v", res.RunID, run, lines)
	}
	if _, _, err := a.RunLog(context.Background(), "missing"); err == nil {
		t.Fatalf("expected unknown run to fail")
	}
}
