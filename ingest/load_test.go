package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"response_analytics/analysis"
	"response_analytics/config"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestLoadSubmissionsCSV(t *testing.T) {
	path := writeFile(t, "entries.csv", "\ufeffpatientId,entryId,createdAt_time,team\n"+
		"1042.0,e1,2013-06-03 09:00:00,intake\n"+
		"1042,e2,not a time,intake\n"+
		",e3,2013-06-03 10:00:00,\n"+
		"\n"+
		"7,e4,2013-06-04 11:00:00\n")
	subs, stats, err := LoadSubmissions(path, "", config.DefaultColumns().Submissions, time.UTC)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.Read != 4 || stats.ParseFailures != 1 || stats.MissingKeys != 1 || stats.Kept != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if subs[0].SubjectID != "1042" || subs[0].Team != "intake" {
		t.Fatalf("unexpected first submission: %+v", subs[0])
	}
	if subs[1].SubmissionID != "e4" || subs[1].Team != "" {
		t.Fatalf("expected short row to load with blank team, got %+v", subs[1])
	}
}

func TestLoadResponsesXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actions.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"PatientID", "Time Responded", "Team Name"},
		{1042, 41428.375, "Crisis"},
		{1042, "", "Crisis"},
		{"", 41429.5, "Crisis"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	f.Close()

	events, stats, err := LoadResponses(path, "", config.DefaultColumns().Responses, time.UTC)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if stats.Kept != 1 || stats.ParseFailures != 1 || stats.MissingKeys != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	want := time.Date(2013, time.June, 3, 9, 0, 0, 0, time.UTC)
	if events[0].SubjectID != "1042" || !events[0].TimeResponded.Equal(want) || events[0].Team != "Crisis" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestLoadMissingColumn(t *testing.T) {
	path := writeFile(t, "entries.csv", "patientId,createdAt_time\n1,2013-06-03\n")
	_, _, err := LoadSubmissions(path, "", config.DefaultColumns().Submissions, time.UTC)
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestReadTableErrors(t *testing.T) {
	if _, err := ReadTable(writeFile(t, "empty.csv", "\n\n"), ""); !errors.Is(err, ErrNoHeader) {
		t.Fatalf("expected ErrNoHeader, got %v", err)
	}
	if _, err := ReadTable(writeFile(t, "data.json", "{}"), ""); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := ReadTable(filepath.Join(t.TempDir(), "missing.csv"), ""); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestReadTableTSV(t *testing.T) {
	table, err := ReadTable(writeFile(t, "entries.tsv", "a\tb\n1\t2\n"), "")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(table.Rows) != 1 || table.Cell(table.Rows[0], 1) != "2" || table.Cell(table.Rows[0], 5) != "" {
		t.Fatalf("unexpected table: %+v", table)
	}
}

func TestSubmissionTeamFallsBackThroughJoin(t *testing.T) {
	subsPath := writeFile(t, "entries.csv", "patientId,entryId,createdAt_time,team\n"+
		"1042,e1,2013-06-03 09:00:00,intake\n"+
		"7,e2,2013-06-03 09:00:00,intake\n")
	respPath := writeFile(t, "actions.csv", "patientId,timeResponded,team name\n"+
		"1042,2013-06-04 09:00:00,\n"+
		"7,2013-06-04 09:00:00,Crisis\n")
	cols := config.DefaultColumns()
	subs, _, err := LoadSubmissions(subsPath, "", cols.Submissions, time.UTC)
	if err != nil {
		t.Fatalf("load submissions: %v", err)
	}
	responses, _, err := LoadResponses(respPath, "", cols.Responses, time.UTC)
	if err != nil {
		t.Fatalf("load responses: %v", err)
	}
	records, _ := analysis.Join(subs, responses)
	if len(records) != 2 {
		t.Fatalf("expected 2 joined records, got %+v", records)
	}
	teams := map[string]string{}
	for _, r := range records {
		teams[r.SubjectID] = r.Team
	}
	if teams["1042"] != "intake" || teams["7"] != "Crisis" {
		t.Fatalf("expected submission team fallback only for blank response team, got %v", teams)
	}
}

func TestWeekdayUsesConfiguredLocation(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	subsPath := writeFile(t, "entries.csv", "patientId,entryId,createdAt_time\n"+
		"1,e1,2013-06-04T03:00:00Z\n"+
		"2,e2,2013-06-03T22:00:00-05:00\n")
	respPath := writeFile(t, "actions.csv", "patientId,timeResponded\n"+
		"1,2013-06-05T03:00:00Z\n"+
		"2,2013-06-05T03:00:00Z\n")
	cols := config.DefaultColumns()
	subs, _, err := LoadSubmissions(subsPath, "", cols.Submissions, loc)
	if err != nil {
		t.Fatalf("load submissions: %v", err)
	}
	responses, _, err := LoadResponses(respPath, "", cols.Responses, loc)
	if err != nil {
		t.Fatalf("load responses: %v", err)
	}
	records, _ := analysis.Join(subs, responses)
	groups := analysis.MeanByWeekday(records)
	if len(groups) != 1 || groups[0].Key != "Monday" || groups[0].Count != 2 {
		t.Fatalf("expected one Monday group of 2, got %+v", groups)
	}
}
