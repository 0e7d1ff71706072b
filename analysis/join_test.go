package analysis

import (
	"testing"
	"time"
)

func TestJoinSelectsEarliestValidResponse(t *testing.T) {
	subs := []Submission{{SubjectID: "A", SubmissionID: "e1", CreatedAt: base}}
	responses := []ResponseEvent{
		{SubjectID: "A", TimeResponded: base.Add(48 * time.Hour), Team: "late"},
		{SubjectID: "A", TimeResponded: base.Add(24 * time.Hour), Team: "early"},
	}
	records, stats := Join(subs, responses)
	if len(records) != 1 {
		t.Fatalf("expected one joined record, got %d", len(records))
	}
	if records[0].ResponseDays != 1 {
		t.Fatalf("expected 1 day response, got %f", records[0].ResponseDays)
	}
	if records[0].Team != "early" {
		t.Fatalf("expected team of the selected response, got %q", records[0].Team)
	}
	if stats.Candidates != 2 || stats.Joined != 1 || stats.Invalid != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestJoinExcludesResponsesBeforeSubmission(t *testing.T) {
	subs := []Submission{{SubjectID: "A", SubmissionID: "e1", CreatedAt: base}}
	responses := []ResponseEvent{{SubjectID: "A", TimeResponded: base.Add(-time.Minute)}}
	records, stats := Join(subs, responses)
	if len(records) != 0 {
		t.Fatalf("expected no records, got %+v", records)
	}
	if stats.Invalid != 1 {
		t.Fatalf("expected 1 invalid pairing, got %+v", stats)
	}
}

func TestJoinDropsUnmatchedSubmissions(t *testing.T) {
	subs := []Submission{
		{SubjectID: "A", SubmissionID: "e1", CreatedAt: base},
		{SubjectID: "B", SubmissionID: "e2", CreatedAt: base},
	}
	responses := []ResponseEvent{{SubjectID: "A", TimeResponded: base}}

	candidates := LeftJoin(subs, responses)
	if len(candidates) != 2 {
		t.Fatalf("expected left join to keep both submissions, got %d", len(candidates))
	}
	if candidates[1].Response != nil {
		t.Fatalf("expected nil response for unmatched subject")
	}

	records, stats := Join(subs, responses)
	if len(records) != 1 || records[0].SubmissionID != "e1" {
		t.Fatalf("expected only e1, got %+v", records)
	}
	if records[0].ResponseDays != 0 {
		t.Fatalf("expected same-instant response to be zero days, got %f", records[0].ResponseDays)
	}
	if stats.Unmatched != 1 {
		t.Fatalf("expected 1 unmatched submission, got %+v", stats)
	}
}

func TestJoinInvariants(t *testing.T) {
	subs := []Submission{
		{SubjectID: "A", SubmissionID: "e1", CreatedAt: base},
		{SubjectID: "A", SubmissionID: "e2", CreatedAt: base.Add(72 * time.Hour)},
		{SubjectID: "B", SubmissionID: "e3", CreatedAt: base.Add(time.Hour)},
	}
	responses := []ResponseEvent{
		{SubjectID: "A", TimeResponded: base.Add(2 * time.Hour)},
		{SubjectID: "A", TimeResponded: base.Add(80 * time.Hour)},
		{SubjectID: "A", TimeResponded: base.Add(100 * time.Hour)},
		{SubjectID: "B", TimeResponded: base},
		{SubjectID: "B", TimeResponded: base.Add(30 * time.Hour)},
	}
	records, _ := Join(subs, responses)
	seen := map[string]bool{}
	for _, r := range records {
		if r.ResponseDays < 0 || r.TimeResponded.Before(r.CreatedAt) {
			t.Fatalf("invalid pairing retained: %+v", r)
		}
		if seen[r.SubmissionID] {
			t.Fatalf("submission %s appears twice", r.SubmissionID)
		}
		seen[r.SubmissionID] = true
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if got := records[1].TimeResponded; !got.Equal(base.Add(80 * time.Hour)) {
		t.Fatalf("expected e2 to pair with the 80h response, got %s", got)
	}
}

func TestJoinFallsBackToSubmissionTeam(t *testing.T) {
	subs := []Submission{{SubjectID: "A", SubmissionID: "e1", CreatedAt: base, Team: "intake"}}
	responses := []ResponseEvent{{SubjectID: "A", TimeResponded: base.Add(time.Hour)}}
	records, _ := Join(subs, responses)
	if len(records) != 1 || records[0].Team != "intake" {
		t.Fatalf("expected submission team fallback, got %+v", records)
	}
}

func TestJoinEmpty(t *testing.T) {
	records, stats := Join(nil, nil)
	if len(records) != 0 || stats != (JoinStats{}) {
		t.Fatalf("expected empty join, got %v %+v", records, stats)
	}
}
