package analysis

import (
	"math"
	"sort"
	"time"

	"response_analytics/formatting"
)

// WeekdayOrder is the fixed emission order for weekday groups.
var WeekdayOrder = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

var frequencyRanges = []FrequencyBucket{
	{Label: "1-5", Lo: 1, Hi: 5},
	{Label: "6-10", Lo: 6, Hi: 10},
	{Label: "11-20", Lo: 11, Hi: 20},
	{Label: "21-50", Lo: 21, Hi: 50},
	{Label: "51-100", Lo: 51, Hi: 100},
}

// FilterSince keeps records created on or after cutoff.
func FilterSince(records []JoinedRecord, cutoff time.Time) []JoinedRecord {
	out := make([]JoinedRecord, 0, len(records))
	for _, r := range records {
		if !r.CreatedAt.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// MeanByTeam groups by team ordered by ascending mean. Records without a team are skipped.
func MeanByTeam(records []JoinedRecord) []GroupStat {
	groups := groupDays(records, func(r JoinedRecord) (string, bool) {
		return r.Team, r.Team != ""
	})
	out := statsFor(groups)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Mean.Value != out[j].Mean.Value {
			return out[i].Mean.Value < out[j].Mean.Value
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// MeanByWeekday groups by the weekday of the submission, Monday first.
func MeanByWeekday(records []JoinedRecord) []GroupStat {
	groups := groupDays(records, func(r JoinedRecord) (string, bool) {
		return r.CreatedAt.Weekday().String(), true
	})
	byKey := make(map[string]GroupStat, len(groups))
	for _, g := range statsFor(groups) {
		byKey[g.Key] = g
	}
	out := make([]GroupStat, 0, len(byKey))
	for _, wd := range WeekdayOrder {
		if g, ok := byKey[wd.String()]; ok {
			out = append(out, g)
		}
	}
	return out
}

// MeanByMonth groups by the YYYY-MM of the submission in chronological order.
func MeanByMonth(records []JoinedRecord) []GroupStat {
	groups := groupDays(records, func(r JoinedRecord) (string, bool) {
		return r.CreatedAt.Format("2006-01"), true
	})
	out := statsFor(groups)
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Summarize computes scalar statistics. Outliers are strictly above outlierDays.
func Summarize(records []JoinedRecord, outlierDays float64) Summary {
	values := responseDays(records)
	s := Summary{Count: len(values), OutlierDays: outlierDays}
	if len(values) == 0 {
		return s
	}
	s.Mean = mean(values)
	s.Median = median(values)
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		if v > outlierDays {
			s.Outliers++
		}
	}
	s.Min, s.Max = Some(lo), Some(hi)
	return s
}

// Outliers returns the records whose response time exceeds days.
func Outliers(records []JoinedRecord, days float64) []JoinedRecord {
	var out []JoinedRecord
	for _, r := range records {
		if r.ResponseDays > days {
			out = append(out, r)
		}
	}
	return out
}

// LogHistogram places response times into bins spaced evenly on a log10 axis
// between the smallest and largest positive value.
func LogHistogram(records []JoinedRecord, bins int) Histogram {
	if bins <= 0 {
		bins = DefaultHistogramBins
	}
	var h Histogram
	var positive []float64
	for _, v := range responseDays(records) {
		if v <= 0 {
			h.Zero++
			continue
		}
		positive = append(positive, v)
	}
	if len(positive) == 0 {
		return h
	}
	lo, hi := positive[0], positive[0]
	for _, v := range positive {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	logLo, logHi := math.Log10(lo), math.Log10(hi)
	if logHi == logLo {
		logLo -= 0.5
		logHi += 0.5
	}
	step := (logHi - logLo) / float64(bins)
	h.Edges = make([]float64, bins+1)
	for i := range h.Edges {
		h.Edges[i] = math.Pow(10, logLo+step*float64(i))
	}
	h.Counts = make([]int, bins)
	for _, v := range positive {
		idx := int((math.Log10(v) - logLo) / step)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		h.Counts[idx]++
	}
	return h
}

// SubjectCounts returns distinct submission counts per subject, most frequent first.
func SubjectCounts(records []JoinedRecord) []SubjectCount {
	distinct := make(map[string]map[string]struct{})
	for _, r := range records {
		if distinct[r.SubjectID] == nil {
			distinct[r.SubjectID] = make(map[string]struct{})
		}
		distinct[r.SubjectID][r.SubmissionID] = struct{}{}
	}
	out := make([]SubjectCount, 0, len(distinct))
	for subject, ids := range distinct {
		out = append(out, SubjectCount{SubjectID: subject, Submissions: len(ids), Bucket: bucketLabel(len(ids))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Submissions != out[j].Submissions {
			return out[i].Submissions > out[j].Submissions
		}
		return out[i].SubjectID < out[j].SubjectID
	})
	return out
}

// SubmissionFrequency buckets subjects by distinct submissions. Every bucket is
// emitted; subjects above the last range are counted as overflow.
func SubmissionFrequency(records []JoinedRecord) Frequency {
	f := Frequency{Buckets: append([]FrequencyBucket(nil), frequencyRanges...)}
	for _, sc := range SubjectCounts(records) {
		placed := false
		for i := range f.Buckets {
			if sc.Submissions >= f.Buckets[i].Lo && sc.Submissions <= f.Buckets[i].Hi {
				f.Buckets[i].Subjects++
				placed = true
				break
			}
		}
		if !placed {
			f.Overflow++
		}
	}
	return f
}

func bucketLabel(n int) string {
	for _, b := range frequencyRanges {
		if n >= b.Lo && n <= b.Hi {
			return b.Label
		}
	}
	return ""
}

func groupDays(records []JoinedRecord, key func(JoinedRecord) (string, bool)) map[string][]float64 {
	groups := make(map[string][]float64)
	for _, r := range records {
		k, ok := key(r)
		if !ok {
			continue
		}
		groups[k] = append(groups[k], r.ResponseDays)
	}
	return groups
}

func statsFor(groups map[string][]float64) []GroupStat {
	out := make([]GroupStat, 0, len(groups))
	for k, values := range groups {
		out = append(out, GroupStat{Key: k, Mean: mean(values), Median: median(values), Count: len(values)})
	}
	return out
}

func responseDays(records []JoinedRecord) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		out = append(out, r.ResponseDays)
	}
	return out
}

func mean(values []float64) Float {
	if len(values) == 0 {
		return Float{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Some(sum / float64(len(values)))
}

func median(values []float64) Float {
	if len(values) == 0 {
		return Float{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return Some(sorted[mid])
	}
	return Some((sorted[mid-1] + sorted[mid]) / 2)
}

func (f Float) String() string {
	return formatting.Optional(f.Value, f.Valid)
}
