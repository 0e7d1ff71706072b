package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"response_analytics/analysis"
	"response_analytics/ingest"
	"response_analytics/internal/store"
	"response_analytics/report"
)

// ErrStage marks a core stage failure that aborted a run.
var ErrStage = errors.New("core stage failed")

// State carries the per-stage snapshots of one run. Each stage only appends
// its own output; earlier snapshots are never modified.
type State struct {
	RunID           string
	Submissions     []analysis.Submission
	Responses       []analysis.ResponseEvent
	SubmissionStats ingest.Stats
	ResponseStats   ingest.Stats
	Deduped         []analysis.Submission
	DedupStats      analysis.DedupStats
	Records         []analysis.JoinedRecord
	JoinStats       analysis.JoinStats
	Report          *report.Report
	Charts          []string
	Counts          map[string]int
	SinkErrors      map[string]string
}

func (s *State) count(key string, n int) {
	s.Counts[key] = n
}

// Result summarizes a finished run.
type Result struct {
	RunID      string
	Status     string
	Report     *report.Report
	Charts     []string
	Counts     map[string]int
	SinkErrors map[string]string
	Duration   time.Duration
}

// Execute runs steps in order. Core failures stop the run and are returned
// wrapped in ErrStage; sink failures are logged and recorded on the result.
func Execute(ctx context.Context, exec ExecutionContext, steps []Step, trigger string) (*Result, error) {
	start := time.Now()
	st := &State{Counts: map[string]int{}, SinkErrors: map[string]string{}}
	if exec.Store != nil {
		run, err := exec.Store.StartRun(ctx, trigger, start)
		if err != nil {
			return nil, fmt.Errorf("start run: %w", err)
		}
		st.RunID = run.ID
	} else {
		st.RunID = uuid.NewString()
	}
	exec.Logf = runLogger(ctx, exec, st.RunID)
	exec.Logf(StageIngest, fmt.Sprintf("run started trigger=%s", trigger))

	var coreErr error
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			coreErr = fmt.Errorf("%w: %s: %v", ErrStage, step.Stage, err)
			break
		}
		err := step.Fn(ctx, exec, st)
		if err == nil {
			continue
		}
		if step.Sink {
			st.SinkErrors[string(step.Stage)] = err.Error()
			exec.Logf(step.Stage, "sink failed: "+err.Error())
			continue
		}
		coreErr = fmt.Errorf("%w: %s: %w", ErrStage, step.Stage, err)
		exec.Logf(step.Stage, "failed: "+err.Error())
		break
	}

	status := store.StatusSucceeded
	switch {
	case coreErr != nil:
		status = store.StatusFailed
	case len(st.SinkErrors) > 0:
		status = store.StatusPartial
	}
	finished := time.Now()
	res := &Result{
		RunID:      st.RunID,
		Status:     status,
		Report:     st.Report,
		Charts:     st.Charts,
		Counts:     st.Counts,
		SinkErrors: st.SinkErrors,
		Duration:   finished.Sub(start),
	}
	finish(exec, res, coreErr, finished)
	return res, coreErr
}

// finish records the outcome outside the run's context so a cancelled run is still closed out.
func finish(exec ExecutionContext, res *Result, coreErr error, finished time.Time) {
	if exec.Store != nil {
		var errMsg *string
		if coreErr != nil {
			msg := coreErr.Error()
			errMsg = &msg
		}
		if err := exec.Store.FinishRun(context.Background(), res.RunID, res.Status, res.Counts, res.SinkErrors, errMsg, finished); err != nil {
			log.Printf("pipeline: run=%s finish record failed: %v", res.RunID, err)
		}
	}
	if exec.Metrics != nil {
		exec.Metrics.RecordRun(res.Status, res.Duration, finished, coreErr == nil)
		if path := exec.Cfg.MetricsTextfile; path != "" {
			if err := exec.Metrics.WriteTextfile(path); err != nil {
				log.Printf("pipeline: run=%s %v", res.RunID, err)
			}
		}
	}
	log.Printf("pipeline: run=%s status=%s duration_ms=%d joined=%d sink_errors=%d",
		res.RunID, res.Status, res.Duration.Milliseconds(), res.Counts["joined"], len(res.SinkErrors))
}

func runLogger(ctx context.Context, exec ExecutionContext, runID string) func(Stage, string) {
	return func(stage Stage, msg string) {
		log.Printf("pipeline: run=%s stage=%s %s", runID, stage, msg)
		if exec.Store == nil {
			return
		}
		if err := exec.Store.AppendRunLog(context.WithoutCancel(ctx), runID, string(stage), msg, time.Now()); err != nil {
			log.Printf("pipeline: run=%s log append failed: %v", runID, err)
		}
	}
}
