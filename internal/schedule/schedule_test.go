package schedule

import (
	"context"
	"testing"
	"time"
)

func TestNextWeekdayMorning(t *testing.T) {
	s, err := New("0 9 * * 1-5", time.UTC, func(time.Time) {})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	friday := time.Date(2024, time.March, 8, 10, 0, 0, 0, time.UTC)
	want := time.Date(2024, time.March, 11, 9, 0, 0, 0, time.UTC)
	if got := s.Next(friday); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestNextHonoursLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	s, err := New("0 6 * * *", loc, func(time.Time) {})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got := s.Next(time.Date(2024, time.March, 8, 12, 0, 0, 0, time.UTC))
	if !got.Equal(time.Date(2024, time.March, 9, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 06:00 local, got %s", got.UTC())
	}
}

func TestInvalidSchedule(t *testing.T) {
	if _, err := New("every tuesday", time.UTC, func(time.Time) {}); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
}

func TestSchedulerFires(t *testing.T) {
	fired := make(chan time.Time, 1)
	s, err := New("@every 1s", time.UTC, func(at time.Time) {
		select {
		case fired <- at:
		default:
		}
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatalf("scheduler did not fire")
	}
}
