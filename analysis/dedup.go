package analysis

import (
	"sort"
	"time"
)

// Deduplicate collapses bursts of submissions from the same subject. Rows are
// ordered by subject then creation time, ties keeping input order, and a row
// survives when it is the first for its subject or its gap exceeds window.
// A gap exactly equal to window counts as a duplicate.
func Deduplicate(subs []Submission, window time.Duration, policy GapPolicy) ([]Submission, DedupStats) {
	stats := DedupStats{Input: len(subs)}
	if len(subs) == 0 {
		return nil, stats
	}
	sorted := append([]Submission(nil), subs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SubjectID != sorted[j].SubjectID {
			return sorted[i].SubjectID < sorted[j].SubjectID
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	kept := make([]Submission, 0, len(sorted))
	var prev, lastKept time.Time
	for i, sub := range sorted {
		first := i == 0 || sorted[i-1].SubjectID != sub.SubjectID
		if first {
			kept = append(kept, sub)
			prev, lastKept = sub.CreatedAt, sub.CreatedAt
			continue
		}
		ref := prev
		if policy == GapSinceLastKept {
			ref = lastKept
		}
		if sub.CreatedAt.Sub(ref) > window {
			kept = append(kept, sub)
			lastKept = sub.CreatedAt
		}
		prev = sub.CreatedAt
	}

	stats.Kept = len(kept)
	stats.Dropped = stats.Input - stats.Kept
	return kept, stats
}

// ParseGapPolicy maps a configured name to a policy, defaulting to GapConsecutive.
func ParseGapPolicy(name string) (GapPolicy, bool) {
	switch GapPolicy(name) {
	case GapConsecutive, "":
		return GapConsecutive, true
	case GapSinceLastKept:
		return GapSinceLastKept, true
	default:
		return GapConsecutive, false
	}
}
