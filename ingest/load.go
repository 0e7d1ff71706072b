package ingest

import (
	"fmt"
	"log"
	"time"

	"response_analytics/analysis"
	"response_analytics/config"
	"response_analytics/formatting"
)

// Stats counts what happened to the rows of one input table.
type Stats struct {
	Table         string
	Read          int
	ParseFailures int
	MissingKeys   int
	Kept          int
}

func (s Stats) String() string {
	return fmt.Sprintf("table=%s read=%d parse_failures=%d missing_keys=%d kept=%d",
		s.Table, s.Read, s.ParseFailures, s.MissingKeys, s.Kept)
}

// LoadSubmissions reads and normalizes the submissions table.
func LoadSubmissions(path, sheet string, cols config.SubmissionColumns, loc *time.Location) ([]analysis.Submission, Stats, error) {
	t, err := ReadTable(path, sheet)
	if err != nil {
		return nil, Stats{Table: "submissions"}, err
	}
	return SubmissionsFromTable(t, cols, loc)
}

// LoadResponses reads and normalizes the response actions table.
func LoadResponses(path, sheet string, cols config.ResponseColumns, loc *time.Location) ([]analysis.ResponseEvent, Stats, error) {
	t, err := ReadTable(path, sheet)
	if err != nil {
		return nil, Stats{Table: "responses"}, err
	}
	return ResponsesFromTable(t, cols, loc)
}

// SubmissionsFromTable drops rows with an unparseable creation time or a blank
// subject/submission key. Row order is preserved.
func SubmissionsFromTable(t *Table, cols config.SubmissionColumns, loc *time.Location) ([]analysis.Submission, Stats, error) {
	stats := Stats{Table: "submissions"}
	subjectCol, err := t.Column(cols.SubjectID)
	if err != nil {
		return nil, stats, err
	}
	idCol, err := t.Column(cols.SubmissionID)
	if err != nil {
		return nil, stats, err
	}
	createdCol, err := t.Column(cols.CreatedAt)
	if err != nil {
		return nil, stats, err
	}
	teamCol := optionalColumn(t, cols.Team)

	out := make([]analysis.Submission, 0, len(t.Rows))
	for i, row := range t.Rows {
		stats.Read++
		created, ok := ParseTimestamp(t.Cell(row, createdCol), loc)
		if !ok {
			stats.ParseFailures++
			continue
		}
		subject := formatting.NormalizeID(t.Cell(row, subjectCol))
		id := formatting.NormalizeID(t.Cell(row, idCol))
		if subject == "" || id == "" {
			stats.MissingKeys++
			continue
		}
		out = append(out, analysis.Submission{
			SubjectID:    subject,
			SubmissionID: id,
			CreatedAt:    created,
			Team:         t.Cell(row, teamCol),
			Row:          i,
		})
	}
	stats.Kept = len(out)
	log.Printf("ingest: %s", stats)
	return out, stats, nil
}

// ResponsesFromTable drops rows with an unparseable response time or a blank subject.
func ResponsesFromTable(t *Table, cols config.ResponseColumns, loc *time.Location) ([]analysis.ResponseEvent, Stats, error) {
	stats := Stats{Table: "responses"}
	subjectCol, err := t.Column(cols.SubjectID)
	if err != nil {
		return nil, stats, err
	}
	respondedCol, err := t.Column(cols.TimeResponded)
	if err != nil {
		return nil, stats, err
	}
	teamCol := optionalColumn(t, cols.Team)

	out := make([]analysis.ResponseEvent, 0, len(t.Rows))
	for i, row := range t.Rows {
		stats.Read++
		responded, ok := ParseTimestamp(t.Cell(row, respondedCol), loc)
		if !ok {
			stats.ParseFailures++
			continue
		}
		subject := formatting.NormalizeID(t.Cell(row, subjectCol))
		if subject == "" {
			stats.MissingKeys++
			continue
		}
		out = append(out, analysis.ResponseEvent{
			SubjectID:     subject,
			TimeResponded: responded,
			Team:          t.Cell(row, teamCol),
			Row:           i,
		})
	}
	stats.Kept = len(out)
	log.Printf("ingest: %s", stats)
	return out, stats, nil
}

func optionalColumn(t *Table, name string) int {
	if name == "" {
		return -1
	}
	idx, err := t.Column(name)
	if err != nil {
		log.Printf("ingest: table=%s optional column %q not found", t.Path, name)
		return -1
	}
	return idx
}
