package charts

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"response_analytics/analysis"
	"response_analytics/report"
)

func checkPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	if cfg.Width != width || cfg.Height != height {
		t.Fatalf("%s: expected %dx%d, got %dx%d", filepath.Base(path), width, height, cfg.Width, cfg.Height)
	}
}

func sampleReport() *report.Report {
	base := time.Date(2013, time.May, 20, 9, 0, 0, 0, time.UTC)
	var records []analysis.JoinedRecord
	for i, days := range []float64{0, 0.02, 0.5, 3, 12, 45, 120} {
		created := base.AddDate(0, 0, i*9)
		records = append(records, analysis.JoinedRecord{
			SubmissionID:  string(rune('a' + i)),
			SubjectID:     "S",
			Team:          []string{"Crisis", "Intake", "Community Mental Health Outreach"}[i%3],
			CreatedAt:     created,
			TimeResponded: created.Add(time.Duration(days * 24 * float64(time.Hour))),
			ResponseDays:  days,
		})
	}
	return report.Build(records, report.Options{
		Cutoff:        time.Date(2013, time.June, 1, 0, 0, 0, 0, time.UTC),
		OutlierDays:   30,
		HistogramBins: 50,
	})
}

func TestRenderAllWritesPNGs(t *testing.T) {
	r := Renderer{Dir: filepath.Join(t.TempDir(), "charts"), Width: 640, Height: 400}
	paths, err := r.RenderAll(sampleReport())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(paths) != 5 {
		t.Fatalf("expected 5 charts, got %d", len(paths))
	}
	for _, p := range paths {
		checkPNG(t, p, 640, 400)
	}
	if filepath.Base(paths[1]) != "team_response_times_since_2013_06_01.png" {
		t.Fatalf("unexpected since-cutoff chart name %s", paths[1])
	}
}

func TestRenderAllEmptyReport(t *testing.T) {
	r := Renderer{Dir: t.TempDir()}
	rep := report.Build(nil, report.Options{Cutoff: time.Date(2013, time.June, 1, 0, 0, 0, 0, time.UTC)})
	paths, err := r.RenderAll(rep)
	if err != nil {
		t.Fatalf("render empty: %v", err)
	}
	for _, p := range paths {
		checkPNG(t, p, DefaultWidth, DefaultHeight)
	}
}

func TestLineChartManyPoints(t *testing.T) {
	var points []Bar
	for i := 0; i < 60; i++ {
		points = append(points, Bar{Label: "Jan 2013", Value: float64(i % 7)})
	}
	path := filepath.Join(t.TempDir(), "line.png")
	if err := (Renderer{Width: 300, Height: 240}).LineChart(path, "t", "x", points); err != nil {
		t.Fatalf("line chart: %v", err)
	}
	checkPNG(t, path, 300, 240)
}

func TestNiceCeil(t *testing.T) {
	cases := map[float64]float64{0: 1, -3: 1, 1: 1, 1.3: 2, 3.3: 5, 7: 10, 42: 50, 120: 200}
	for in, want := range cases {
		if got := niceCeil(in); got != want {
			t.Fatalf("niceCeil(%v): expected %v, got %v", in, want, got)
		}
	}
}
