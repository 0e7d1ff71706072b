package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"response_analytics/analysis"
	"response_analytics/report"
)

func sampleReport() *report.Report {
	base := time.Date(2013, time.June, 3, 9, 0, 0, 0, time.UTC)
	records := []analysis.JoinedRecord{
		{SubmissionID: "e1", SubjectID: "A", Team: "Crisis", CreatedAt: base, TimeResponded: base.Add(36 * time.Hour), ResponseDays: 1.5},
		{SubmissionID: "e2", SubjectID: "A", Team: "Crisis", CreatedAt: base, TimeResponded: base.Add(24 * 40 * time.Hour), ResponseDays: 40},
		{SubmissionID: "e3", SubjectID: "B", Team: "Intake", CreatedAt: base, TimeResponded: base, ResponseDays: 0},
	}
	return report.Build(records, report.Options{Cutoff: base.AddDate(0, 0, -2), OutlierDays: 30})
}

func TestWriteWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	if err := WriteWorkbook(path, sampleReport()); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	want := []string{SheetSubmissionBins, SheetClosestResponses, SheetOutliers}
	if got := f.GetSheetList(); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected sheets %v, got %v", want, got)
	}
	bins, err := f.GetRows(SheetSubmissionBins)
	if err != nil {
		t.Fatal(err)
	}
	if len(bins) != 3 || bins[1][0] != "A" || bins[1][1] != "2" || bins[1][2] != "1-5" {
		t.Fatalf("unexpected bins sheet: %v", bins)
	}
	closest, _ := f.GetRows(SheetClosestResponses)
	if len(closest) != 4 || closest[0][0] != "submission_id" || closest[3][0] != "e3" {
		t.Fatalf("unexpected closest sheet: %v", closest)
	}
	outliers, _ := f.GetRows(SheetOutliers)
	if len(outliers) != 2 || outliers[1][0] != "e2" {
		t.Fatalf("unexpected outliers sheet: %v", outliers)
	}
}

func TestWriteCSV(t *testing.T) {
	rep := sampleReport()
	path := filepath.Join(t.TempDir(), "closest.csv")
	if err := WriteCSV(path, rep.Records); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(rows))
	}
	if !reflect.DeepEqual(rows[1], []string{"e1", "A", "Crisis", "2013-06-03T09:00:00Z", "2013-06-04T21:00:00Z", "1.5000"}) {
		t.Fatalf("unexpected row: %v", rows[1])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	if err := WriteCSV(path, nil); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "submission_id,subject_id,team,created_at,time_responded,response_days\n" {
		t.Fatalf("unexpected content %q", data)
	}
}
