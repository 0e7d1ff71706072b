package pipeline

import (
	"context"
	"fmt"
	"io"

	"response_analytics/analysis"
	"response_analytics/charts"
	"response_analytics/config"
	"response_analytics/export"
	"response_analytics/ingest"
	"response_analytics/internal/notify"
	"response_analytics/internal/store"
	"response_analytics/metrics"
	"response_analytics/report"
)

// Stage names one step of a report run.
type Stage string

const (
	StageIngest      Stage = "INGEST"
	StageDeduplicate Stage = "DEDUPLICATE"
	StageJoin        Stage = "JOIN"
	StageAggregate   Stage = "AGGREGATE"
	StageRender      Stage = "RENDER"
	StageCharts      Stage = "CHARTS"
	StageExport      Stage = "EXPORT"
	StagePersist     Stage = "PERSIST"
	StagePublish     Stage = "PUBLISH"
)

// ExecutionContext bundles dependencies for stage execution. Store and
// Metrics may be nil.
type ExecutionContext struct {
	Cfg     config.Config
	Store   *store.Store
	Metrics *metrics.Metrics
	Out     io.Writer
	Logf    func(stage Stage, msg string)
}

// StageFunc reads earlier snapshots from st and sets its own.
type StageFunc func(ctx context.Context, exec ExecutionContext, st *State) error

// Step is one registered stage. A failing core step aborts the run; a failing
// sink is recorded and the run continues.
type Step struct {
	Stage Stage
	Fn    StageFunc
	Sink  bool
}

// BuildRegistry wires the stages in execution order.
func BuildRegistry(cfg config.Config) []Step {
	steps := []Step{
		{Stage: StageIngest, Fn: ingestStage},
		{Stage: StageDeduplicate, Fn: dedupStage},
		{Stage: StageJoin, Fn: joinStage},
		{Stage: StageAggregate, Fn: aggregateStage},
		{Stage: StageRender, Fn: renderStage, Sink: true},
	}
	if cfg.ChartsEnabled {
		steps = append(steps, Step{Stage: StageCharts, Fn: chartsStage, Sink: true})
	}
	if cfg.ExportXLSX != "" || cfg.ExportCSV != "" {
		steps = append(steps, Step{Stage: StageExport, Fn: exportStage, Sink: true})
	}
	if cfg.PersistRuns {
		steps = append(steps, Step{Stage: StagePersist, Fn: persistStage, Sink: true})
	}
	if cfg.SlackWebhookURL != "" {
		steps = append(steps, Step{Stage: StagePublish, Fn: publishStage, Sink: true})
	}
	return steps
}

func ingestStage(ctx context.Context, exec ExecutionContext, st *State) error {
	cfg := exec.Cfg
	subs, subStats, err := ingest.LoadSubmissions(cfg.SubmissionsPath, cfg.SubmissionsSheet, cfg.Columns.Submissions, cfg.Location)
	if err != nil {
		return err
	}
	responses, respStats, err := ingest.LoadResponses(cfg.ResponsesPath, cfg.ResponsesSheet, cfg.Columns.Responses, cfg.Location)
	if err != nil {
		return err
	}
	st.Submissions, st.Responses = subs, responses
	st.SubmissionStats, st.ResponseStats = subStats, respStats
	for _, s := range []ingest.Stats{subStats, respStats} {
		st.count(s.Table+"_read", s.Read)
		st.count(s.Table+"_parse_failures", s.ParseFailures)
		st.count(s.Table+"_missing_keys", s.MissingKeys)
		st.count(s.Table+"_kept", s.Kept)
		if exec.Metrics != nil {
			exec.Metrics.ObserveIngest(s.Table, s.Read, s.ParseFailures, s.MissingKeys, s.Kept)
		}
		exec.Logf(StageIngest, s.String())
	}
	return nil
}

func dedupStage(ctx context.Context, exec ExecutionContext, st *State) error {
	policy, ok := analysis.ParseGapPolicy(exec.Cfg.DedupPolicy)
	if !ok {
		return fmt.Errorf("unknown dedup policy %q", exec.Cfg.DedupPolicy)
	}
	st.Deduped, st.DedupStats = analysis.Deduplicate(st.Submissions, exec.Cfg.DedupWindow, policy)
	st.count("dedup_dropped", st.DedupStats.Dropped)
	if exec.Metrics != nil {
		exec.Metrics.ObserveDedup(st.DedupStats.Dropped)
	}
	exec.Logf(StageDeduplicate, fmt.Sprintf("policy=%s window=%s input=%d kept=%d dropped=%d",
		policy, exec.Cfg.DedupWindow, st.DedupStats.Input, st.DedupStats.Kept, st.DedupStats.Dropped))
	return nil
}

func joinStage(ctx context.Context, exec ExecutionContext, st *State) error {
	st.Records, st.JoinStats = analysis.Join(st.Deduped, st.Responses)
	js := st.JoinStats
	st.count("joined", js.Joined)
	st.count("unmatched", js.Unmatched)
	st.count("invalid_pairings", js.Invalid)
	if exec.Metrics != nil {
		exec.Metrics.ObserveJoin(js.Joined, js.Unmatched, js.Invalid)
	}
	exec.Logf(StageJoin, fmt.Sprintf("submissions=%d candidates=%d invalid=%d unmatched=%d joined=%d",
		js.Submissions, js.Candidates, js.Invalid, js.Unmatched, js.Joined))
	return nil
}

func aggregateStage(ctx context.Context, exec ExecutionContext, st *State) error {
	st.Report = report.Build(st.Records, report.Options{
		Cutoff:        exec.Cfg.Cutoff,
		OutlierDays:   exec.Cfg.OutlierDays,
		HistogramBins: exec.Cfg.HistogramBins,
	})
	st.count("outliers", st.Report.Overall.Summary.Outliers)
	st.count("since_cutoff", st.Report.SinceCutoff.Summary.Count)
	if exec.Metrics != nil {
		exec.Metrics.ObserveOutliers("all", st.Report.Overall.Summary.Outliers)
		exec.Metrics.ObserveOutliers("since_cutoff", st.Report.SinceCutoff.Summary.Outliers)
	}
	exec.Logf(StageAggregate, fmt.Sprintf("teams=%d weekdays=%d months=%d outliers=%d",
		len(st.Report.TeamAll), len(st.Report.Weekday), len(st.Report.Monthly), st.Report.Overall.Summary.Outliers))
	return nil
}

func renderStage(ctx context.Context, exec ExecutionContext, st *State) error {
	if exec.Out == nil {
		return nil
	}
	if err := report.WriteSummary(exec.Out, st.Report); err != nil {
		return err
	}
	_, err := io.WriteString(exec.Out, "\n")
	if err != nil {
		return err
	}
	return report.WriteTables(exec.Out, st.Report)
}

func chartsStage(ctx context.Context, exec ExecutionContext, st *State) error {
	r := charts.Renderer{Dir: exec.Cfg.OutputDir, Width: exec.Cfg.ChartWidth, Height: exec.Cfg.ChartHeight}
	paths, err := r.RenderAll(st.Report)
	st.Charts = paths
	if err != nil {
		return err
	}
	exec.Logf(StageCharts, fmt.Sprintf("wrote %d charts to %s", len(paths), exec.Cfg.OutputDir))
	return nil
}

func exportStage(ctx context.Context, exec ExecutionContext, st *State) error {
	if path := exec.Cfg.ExportXLSX; path != "" {
		if err := export.WriteWorkbook(path, st.Report); err != nil {
			return err
		}
		exec.Logf(StageExport, "workbook "+path)
	}
	if path := exec.Cfg.ExportCSV; path != "" {
		if err := export.WriteCSV(path, st.Report.Records); err != nil {
			return err
		}
		exec.Logf(StageExport, "csv "+path)
	}
	return nil
}

func persistStage(ctx context.Context, exec ExecutionContext, st *State) error {
	if exec.Store == nil {
		return nil
	}
	if err := exec.Store.SaveJoined(ctx, st.RunID, st.Records); err != nil {
		return err
	}
	aggregates := []struct {
		dimension string
		stats     []analysis.GroupStat
	}{
		{"team", st.Report.TeamAll},
		{"team_since_cutoff", st.Report.TeamSince},
		{"weekday", st.Report.Weekday},
		{"month", st.Report.Monthly},
	}
	for _, a := range aggregates {
		if err := exec.Store.SaveAggregates(ctx, st.RunID, a.dimension, a.stats); err != nil {
			return err
		}
	}
	exec.Logf(StagePersist, fmt.Sprintf("records=%d", len(st.Records)))
	return nil
}

func publishStage(ctx context.Context, exec ExecutionContext, st *State) error {
	return notify.SendSlack(ctx, exec.Cfg, notify.SummaryMessage(st.RunID, st.Report))
}
