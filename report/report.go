package report

import (
	"time"

	"response_analytics/analysis"
)

// Options tunes how a Report is assembled.
type Options struct {
	Cutoff        time.Time
	OutlierDays   float64
	HistogramBins int
}

// Scope is the scalar summary over one subset of the joined records.
type Scope struct {
	Label   string
	Summary analysis.Summary
}

// Report is the read-only result of one analysis run. Every output sink
// consumes the same Report.
type Report struct {
	Cutoff        time.Time
	OutlierDays   float64
	Records       []analysis.JoinedRecord
	Overall       Scope
	SinceCutoff   Scope
	TeamAll       []analysis.GroupStat
	TeamSince     []analysis.GroupStat
	Weekday       []analysis.GroupStat
	Monthly       []analysis.GroupStat
	Histogram     analysis.Histogram
	Frequency     analysis.Frequency
	SubjectCounts []analysis.SubjectCount
	Outliers      []analysis.JoinedRecord
}

// Build computes every aggregate over records. Weekday, monthly, histogram and
// frequency views cover the full set; team means and the summary are also
// computed for records created on or after the cutoff.
func Build(records []analysis.JoinedRecord, opts Options) *Report {
	if opts.OutlierDays <= 0 {
		opts.OutlierDays = analysis.DefaultOutlierDays
	}
	since := analysis.FilterSince(records, opts.Cutoff)
	return &Report{
		Cutoff:        opts.Cutoff,
		OutlierDays:   opts.OutlierDays,
		Records:       records,
		Overall:       Scope{Label: "All responses", Summary: analysis.Summarize(records, opts.OutlierDays)},
		SinceCutoff:   Scope{Label: "Since " + opts.Cutoff.Format("2006-01-02"), Summary: analysis.Summarize(since, opts.OutlierDays)},
		TeamAll:       analysis.MeanByTeam(records),
		TeamSince:     analysis.MeanByTeam(since),
		Weekday:       analysis.MeanByWeekday(records),
		Monthly:       analysis.MeanByMonth(records),
		Histogram:     analysis.LogHistogram(records, opts.HistogramBins),
		Frequency:     analysis.SubmissionFrequency(records),
		SubjectCounts: analysis.SubjectCounts(records),
		Outliers:      analysis.Outliers(records, opts.OutlierDays),
	}
}

// Scopes returns the summaries in print order.
func (r *Report) Scopes() []Scope {
	return []Scope{r.Overall, r.SinceCutoff}
}
