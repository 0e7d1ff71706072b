package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"response_analytics/analysis"
	"response_analytics/report"
)

const (
	SheetSubmissionBins   = "Patient_Submission_Bins"
	SheetClosestResponses = "Closest_Responses"
	SheetOutliers         = "Outliers"
)

var recordHeader = []string{"submission_id", "subject_id", "team", "created_at", "time_responded", "response_days"}

// WriteWorkbook saves the per-subject submission counts, the selected
// responses and the outliers of rep as sheets of one workbook.
func WriteWorkbook(path string, rep *report.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSubmissionBins); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetClosestResponses, SheetOutliers} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("add sheet %s: %w", name, err)
		}
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	bins := [][]interface{}{{"subject_id", "submission_count", "submission_group"}}
	for _, sc := range rep.SubjectCounts {
		bins = append(bins, []interface{}{sc.SubjectID, sc.Submissions, sc.Bucket})
	}
	sheets := []struct {
		name string
		rows [][]interface{}
	}{
		{SheetSubmissionBins, bins},
		{SheetClosestResponses, recordRows(rep.Records)},
		{SheetOutliers, recordRows(rep.Outliers)},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.rows, bold); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	return nil
}

// WriteCSV writes the selected responses, one row per submission, in report order.
func WriteCSV(path string, records []analysis.JoinedRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(file)
	if err := w.Write(recordHeader); err != nil {
		file.Close()
		return err
	}
	for _, r := range records {
		row := []string{
			r.SubmissionID,
			r.SubjectID,
			r.Team,
			r.CreatedAt.Format(time.RFC3339),
			r.TimeResponded.Format(time.RFC3339),
			strconv.FormatFloat(r.ResponseDays, 'f', 4, 64),
		}
		if err := w.Write(row); err != nil {
			file.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func recordRows(records []analysis.JoinedRecord) [][]interface{} {
	header := make([]interface{}, len(recordHeader))
	for i, h := range recordHeader {
		header[i] = h
	}
	rows := [][]interface{}{header}
	for _, r := range records {
		rows = append(rows, []interface{}{
			r.SubmissionID, r.SubjectID, r.Team, r.CreatedAt, r.TimeResponded, r.ResponseDays,
		})
	}
	return rows
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}
