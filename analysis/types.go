package analysis

import "time"

// GapPolicy selects what a submission's gap is measured against during deduplication.
type GapPolicy string

const (
	// GapConsecutive measures against the immediately preceding submission of the subject.
	GapConsecutive GapPolicy = "consecutive"
	// GapSinceLastKept measures against the last submission that survived deduplication.
	GapSinceLastKept GapPolicy = "since_last_kept"
)

const (
	DefaultDedupWindow   = 3 * time.Minute
	DefaultOutlierDays   = 30.0
	DefaultHistogramBins = 1000
)

const day = 24 * time.Hour

type Submission struct {
	SubjectID    string
	SubmissionID string
	CreatedAt    time.Time
	Team         string
	Row          int
}

type ResponseEvent struct {
	SubjectID     string
	TimeResponded time.Time
	Team          string
	Row           int
}

// Candidate is one row of the submission/response left join. Response is nil
// when the subject has no response events at all.
type Candidate struct {
	Submission Submission
	Response   *ResponseEvent
}

// ResponseDays returns the elapsed days between submission and response.
func (c Candidate) ResponseDays() float64 {
	if c.Response == nil {
		return 0
	}
	return c.Response.TimeResponded.Sub(c.Submission.CreatedAt).Seconds() / day.Seconds()
}

type JoinedRecord struct {
	SubmissionID  string
	SubjectID     string
	Team          string
	CreatedAt     time.Time
	TimeResponded time.Time
	ResponseDays  float64
}

// Float is a statistic that is undefined over an empty group.
type Float struct {
	Value float64
	Valid bool
}

func Some(v float64) Float { return Float{Value: v, Valid: true} }

type GroupStat struct {
	Key    string
	Mean   Float
	Median Float
	Count  int
}

type Summary struct {
	Count       int
	Mean        Float
	Median      Float
	Max         Float
	Min         Float
	Outliers    int
	OutlierDays float64
}

// Histogram counts response times into log-spaced bins. Edges has len(Counts)+1
// entries. Zero holds values that cannot be placed on a logarithmic axis.
type Histogram struct {
	Edges  []float64
	Counts []int
	Zero   int
}

func (h Histogram) Total() int {
	total := h.Zero
	for _, c := range h.Counts {
		total += c
	}
	return total
}

type FrequencyBucket struct {
	Label    string
	Lo       int
	Hi       int
	Subjects int
}

// Frequency groups subjects by how many distinct submissions they made.
// Overflow counts subjects above the last bucket.
type Frequency struct {
	Buckets  []FrequencyBucket
	Overflow int
}

type SubjectCount struct {
	SubjectID   string
	Submissions int
	Bucket      string
}

type DedupStats struct {
	Input   int
	Kept    int
	Dropped int
}

type JoinStats struct {
	Submissions int
	Candidates  int
	Unmatched   int
	Invalid     int
	Joined      int
}
