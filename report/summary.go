package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"response_analytics/analysis"
	"response_analytics/formatting"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// SummaryLines renders the key metrics of one scope.
func SummaryLines(s analysis.Summary) []string {
	return []string{
		fmt.Sprintf("Average Response Time: %s days", s.Mean),
		fmt.Sprintf("Median Response Time: %s days", s.Median),
		fmt.Sprintf("Max Response Time: %s days", s.Max),
		fmt.Sprintf("Min Response Time: %s days", s.Min),
		fmt.Sprintf("Number of Outliers (>%s days): %d", trimFloat(s.OutlierDays), s.Outliers),
	}
}

// FrequencyLines renders the subject counts per submission-frequency bucket.
func FrequencyLines(f analysis.Frequency) []string {
	lines := []string{"Summary of Patients Grouped by Submission Frequency:"}
	for _, b := range f.Buckets {
		lines = append(lines, fmt.Sprintf("%-7s %d", b.Label, b.Subjects))
	}
	if f.Overflow > 0 {
		lines = append(lines, fmt.Sprintf("%-7s %d", ">100", f.Overflow))
	}
	return lines
}

// WriteSummary prints the key metrics of every scope followed by the
// submission frequency summary.
func WriteSummary(w io.Writer, r *Report) error {
	var b strings.Builder
	for _, scope := range r.Scopes() {
		b.WriteString(scope.Label + ":\n")
		for _, line := range SummaryLines(scope.Summary) {
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}
	for _, line := range FrequencyLines(r.Frequency) {
		b.WriteString(line + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteTables renders the grouped aggregates as bordered tables.
func WriteTables(w io.Writer, r *Report) error {
	sections := []struct {
		title string
		key   string
		rows  []analysis.GroupStat
	}{
		{"Average Response Time by Team (in Days)", "Team", r.TeamAll},
		{"Average Response Time by Team (in Days) - " + r.SinceCutoff.Label, "Team", r.TeamSince},
		{"Average Response Time by Day of the Week", "Day", r.Weekday},
		{"Average Response Time Trends Over Time (Monthly)", "Month", r.Monthly},
	}
	var b strings.Builder
	for _, s := range sections {
		b.WriteString(titleStyle.Render(s.title) + "\n")
		b.WriteString(groupTable(s.key, s.rows) + "\n\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func groupTable(key string, stats []analysis.GroupStat) string {
	rows := make([][]string, 0, len(stats))
	for _, g := range stats {
		rows = append(rows, []string{g.Key, g.Mean.String(), g.Median.String(), strconv.Itoa(g.Count)})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(key, "Mean (days)", "Median (days)", "Responses").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return cellStyle
			default:
				return numberStyle
			}
		})
	return t.Render()
}

func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return formatting.Days(v)
}
