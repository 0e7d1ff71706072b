package charts

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"response_analytics/analysis"
	"response_analytics/formatting"
	"response_analytics/report"
)

const (
	DefaultWidth  = 1000
	DefaultHeight = 600
)

// Bar is one labelled value of a bar chart.
type Bar struct {
	Label string
	Value float64
}

// Renderer writes report charts as PNG files into Dir.
type Renderer struct {
	Dir    string
	Width  int
	Height int
}

func (r Renderer) size() (int, int) {
	w, h := r.Width, r.Height
	if w <= 0 {
		w = DefaultWidth
	}
	if h <= 0 {
		h = DefaultHeight
	}
	return w, h
}

// RenderAll draws every chart of rep and returns the written paths.
func (r Renderer) RenderAll(rep *report.Report) ([]string, error) {
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create chart dir: %w", err)
	}
	since := "From " + rep.Cutoff.Format("January 2006")
	jobs := []struct {
		name string
		draw func(path string) error
	}{
		{"team_response_times.png", func(p string) error {
			return r.BarChart(p, "Average Response Time by Team (in Days)", "Team Name", barsFromGroups(rep.TeamAll, nil))
		}},
		{"team_response_times_since_" + formatting.FileSlug(rep.Cutoff.Format("2006-01-02")) + ".png", func(p string) error {
			return r.BarChart(p, "Average Response Time by Team (in Days) - "+since, "Team Name", barsFromGroups(rep.TeamSince, nil))
		}},
		{"response_time_distribution.png", func(p string) error {
			return r.Histogram(p, "Distribution of Response Times (in Days)", rep.Histogram)
		}},
		{"weekday_response_times.png", func(p string) error {
			return r.BarChart(p, "Average Response Time by Day of the Week", "Day of the Week", barsFromGroups(rep.Weekday, formatting.ShortWeekday))
		}},
		{"monthly_response_times.png", func(p string) error {
			return r.LineChart(p, "Average Response Time Trends Over Time (Monthly)", "Month-Year", barsFromGroups(rep.Monthly, formatting.MonthLabel))
		}},
	}
	paths := make([]string, 0, len(jobs))
	for _, job := range jobs {
		path := filepath.Join(r.Dir, job.name)
		if err := job.draw(path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// BarChart draws one bar per value with a two-decimal label above each bar.
func (r Renderer) BarChart(path, title, xLabel string, bars []Bar) error {
	c := newCanvas(r.size())
	yMax := niceCeil(maxValue(bars) * 1.1)
	c.frame(title, xLabel, "Average Response Time (Days)", yMax)
	if len(bars) == 0 {
		c.noData()
		return c.save(path)
	}
	p := c.plot
	slot := float32(p.Dx()) / float32(len(bars))
	maxChars := int(slot) / glyphWidth
	for i, b := range bars {
		x0 := float32(p.Min.X) + slot*float32(i) + slot*0.15
		x1 := x0 + slot*0.7
		top := c.y(b.Value, yMax)
		c.fillRect(x0, top, x1, float32(p.Max.Y), barEdge)
		if x1-x0 > 3 && float32(p.Max.Y)-top > 2 {
			c.fillRect(x0+1, top+1, x1-1, float32(p.Max.Y), barFill)
		}
		cx := int(x0 + (x1-x0)/2)
		c.centered(cx, int(top)-4, formatting.Days(b.Value), axisColor)
		c.centered(cx, p.Max.Y+16, formatting.Truncate(b.Label, maxChars), labelColor)
	}
	return c.save(path)
}

// LineChart joins the values with a line and marks every point.
func (r Renderer) LineChart(path, title, xLabel string, points []Bar) error {
	c := newCanvas(r.size())
	yMax := niceCeil(maxValue(points) * 1.1)
	c.frame(title, xLabel, "Average Response Time (Days)", yMax)
	if len(points) == 0 {
		c.noData()
		return c.save(path)
	}
	p := c.plot
	slot := float32(p.Dx()) / float32(len(points))
	every := 1
	if widest := maxLabelWidth(points) + glyphWidth; widest > 0 && slot < float32(widest) {
		every = int(math.Ceil(float64(widest) / float64(slot)))
	}
	var prevX, prevY float32
	for i, pt := range points {
		x := float32(p.Min.X) + slot*(float32(i)+0.5)
		y := c.y(pt.Value, yMax)
		if i > 0 {
			c.line(prevX, prevY, x, y, 2, lineColor)
		}
		prevX, prevY = x, y
		if i%every == 0 {
			c.centered(int(x), p.Max.Y+16, pt.Label, labelColor)
		}
	}
	for i, pt := range points {
		x := float32(p.Min.X) + slot*(float32(i)+0.5)
		c.dot(x, c.y(pt.Value, yMax), 3.5, lineColor)
	}
	return c.save(path)
}

// Histogram draws the bins of h on a log10 x axis with decade tick marks.
func (r Renderer) Histogram(path, title string, h analysis.Histogram) error {
	c := newCanvas(r.size())
	maxCount := 0
	for _, n := range h.Counts {
		if n > maxCount {
			maxCount = n
		}
	}
	yMax := niceCeil(float64(maxCount) * 1.1)
	c.frame(title, "Response Time (Days, log scale)", "Frequency", yMax)
	if h.Zero > 0 {
		note := fmt.Sprintf("zero-day responses: %d", h.Zero)
		c.text(c.plot.Max.X-textWidth(note), marginTop-14, note, labelColor)
	}
	if len(h.Counts) == 0 || len(h.Edges) != len(h.Counts)+1 {
		c.noData()
		return c.save(path)
	}
	p := c.plot
	logLo := math.Log10(h.Edges[0])
	logHi := math.Log10(h.Edges[len(h.Edges)-1])
	span := logHi - logLo
	xOf := func(v float64) float32 {
		return float32(p.Min.X) + float32((math.Log10(v)-logLo)/span)*float32(p.Dx())
	}
	for i, n := range h.Counts {
		if n == 0 {
			continue
		}
		c.fillRect(xOf(h.Edges[i]), c.y(float64(n), yMax), xOf(h.Edges[i+1]), float32(p.Max.Y), barFill)
	}
	for e := math.Ceil(logLo); e <= math.Floor(logHi); e++ {
		x := xOf(math.Pow(10, e))
		c.line(x, float32(p.Max.Y), x, float32(p.Max.Y+5), 1, axisColor)
		c.centered(int(x), p.Max.Y+18, decadeLabel(e), labelColor)
	}
	return c.save(path)
}

func barsFromGroups(stats []analysis.GroupStat, label func(string) string) []Bar {
	out := make([]Bar, 0, len(stats))
	for _, g := range stats {
		if !g.Mean.Valid {
			continue
		}
		key := g.Key
		if label != nil {
			key = label(key)
		}
		out = append(out, Bar{Label: key, Value: g.Mean.Value})
	}
	return out
}

func maxValue(bars []Bar) float64 {
	var hi float64
	for _, b := range bars {
		hi = math.Max(hi, b.Value)
	}
	return hi
}

func maxLabelWidth(bars []Bar) int {
	w := 0
	for _, b := range bars {
		if n := textWidth(b.Label); n > w {
			w = n
		}
	}
	return w
}

func decadeLabel(exp float64) string {
	v := math.Pow(10, exp)
	if exp >= 0 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}
