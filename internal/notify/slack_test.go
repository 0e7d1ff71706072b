package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"response_analytics/analysis"
	"response_analytics/config"
	"response_analytics/report"
)

func sampleReport() *report.Report {
	created := time.Date(2013, time.June, 3, 9, 0, 0, 0, time.UTC)
	records := []analysis.JoinedRecord{
		{SubmissionID: "e1", SubjectID: "A", Team: "Crisis", CreatedAt: created, TimeResponded: created.Add(48 * time.Hour), ResponseDays: 2},
	}
	return report.Build(records, report.Options{Cutoff: created.AddDate(0, 0, -2), OutlierDays: 30})
}

func TestSendSlackPostsSummary(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := config.Config{SlackWebhookURL: srv.URL}
	msg := SummaryMessage("run-1", sampleReport())
	if err := SendSlack(context.Background(), cfg, msg); err != nil {
		t.Fatalf("send: %v", err)
	}
	text, _ := got["text"].(string)
	for _, want := range []string{"run-1", "Average Response Time: 2.00 days", "Submission Frequency"} {
		if !strings.Contains(text, want) {
			t.Fatalf("posted text missing %q:\n%s", want, text)
		}
	}
}

func TestSendSlackErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	err := SendSlack(context.Background(), config.Config{SlackWebhookURL: srv.URL}, Message{Text: "x"})
	if err == nil {
		t.Fatalf("expected error for 500 response")
	}
}

func TestSendSlackDisabled(t *testing.T) {
	if err := SendSlack(context.Background(), config.Config{}, Message{Text: "x"}); err != nil {
		t.Fatalf("expected no-op without webhook, got %v", err)
	}
}
