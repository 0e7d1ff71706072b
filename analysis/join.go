package analysis

import "sort"

// LeftJoin pairs every submission with every response event of the same subject.
// Submissions whose subject has no responses yield one candidate with a nil response.
func LeftJoin(subs []Submission, responses []ResponseEvent) []Candidate {
	bySubject := make(map[string][]int, len(responses))
	for i, r := range responses {
		bySubject[r.SubjectID] = append(bySubject[r.SubjectID], i)
	}
	out := make([]Candidate, 0, len(subs))
	for _, sub := range subs {
		idx := bySubject[sub.SubjectID]
		if len(idx) == 0 {
			out = append(out, Candidate{Submission: sub})
			continue
		}
		for _, i := range idx {
			resp := responses[i]
			out = append(out, Candidate{Submission: sub, Response: &resp})
		}
	}
	return out
}

// FilterValid keeps candidates that have a response at or after the submission time.
func FilterValid(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Response == nil {
			continue
		}
		if c.Response.TimeResponded.Before(c.Submission.CreatedAt) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// SelectEarliest keeps the closest valid response per submission id.
func SelectEarliest(valid []Candidate) []JoinedRecord {
	sorted := append([]Candidate(nil), valid...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Submission.SubjectID != b.Submission.SubjectID {
			return a.Submission.SubjectID < b.Submission.SubjectID
		}
		if a.Submission.SubmissionID != b.Submission.SubmissionID {
			return a.Submission.SubmissionID < b.Submission.SubmissionID
		}
		return a.ResponseDays() < b.ResponseDays()
	})

	seen := make(map[string]struct{}, len(sorted))
	out := make([]JoinedRecord, 0, len(sorted))
	for _, c := range sorted {
		if _, ok := seen[c.Submission.SubmissionID]; ok {
			continue
		}
		seen[c.Submission.SubmissionID] = struct{}{}
		team := c.Response.Team
		if team == "" {
			team = c.Submission.Team
		}
		out = append(out, JoinedRecord{
			SubmissionID:  c.Submission.SubmissionID,
			SubjectID:     c.Submission.SubjectID,
			Team:          team,
			CreatedAt:     c.Submission.CreatedAt,
			TimeResponded: c.Response.TimeResponded,
			ResponseDays:  c.ResponseDays(),
		})
	}
	return out
}

// Join runs the left join, validity filter and earliest-response selection.
// Submissions without any valid response are absent from the result.
func Join(subs []Submission, responses []ResponseEvent) ([]JoinedRecord, JoinStats) {
	candidates := LeftJoin(subs, responses)
	stats := JoinStats{Submissions: len(subs), Candidates: len(candidates)}
	for _, c := range candidates {
		if c.Response == nil {
			stats.Unmatched++
		}
	}
	valid := FilterValid(candidates)
	stats.Invalid = len(candidates) - len(valid) - stats.Unmatched
	records := SelectEarliest(valid)
	stats.Joined = len(records)
	return records, stats
}
