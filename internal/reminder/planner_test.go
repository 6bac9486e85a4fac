package reminder

import (
	"errors"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestPlanOneShotKeepsFullDate(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	p := NewPlanner(time.UTC, fixedClock(now))

	got, err := p.Plan(now.Add(5*time.Minute+30*time.Second), false)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := Trigger{Year: 2026, Month: time.March, Day: 10, Hour: 8, Minute: 5}
	if got != want {
		t.Fatalf("Plan = %+v, want %+v", got, want)
	}
	if err := got.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestPlanDailyDropsDate(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 20, 0, 0, 0, time.UTC)
	p := NewPlanner(time.UTC, fixedClock(now))

	got, err := p.Plan(time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC), true)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := Trigger{Hour: 9, Minute: 0, Repeats: true}
	if got != want {
		t.Fatalf("Plan = %+v, want %+v", got, want)
	}
	if got.CronSpec() != "0 9 * * *" {
		t.Fatalf("CronSpec = %q", got.CronSpec())
	}
}

func TestPlanRejectsPastAndNow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	p := NewPlanner(time.UTC, fixedClock(now))

	for _, c := range []time.Time{now, now.Add(-time.Second), now.AddDate(0, 0, -1)} {
		if _, err := p.Plan(c, false); !errors.Is(err, ErrInvalidSchedule) {
			t.Fatalf("Plan(%v) err = %v, want ErrInvalidSchedule", c, err)
		}
		if _, err := p.Plan(c, true); !errors.Is(err, ErrInvalidSchedule) {
			t.Fatalf("Plan(%v, daily) err = %v, want ErrInvalidSchedule", c, err)
		}
	}
}

func TestPlanUsesPlannerLocation(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+7", 7*3600)
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	p := NewPlanner(loc, fixedClock(now))

	// 02:30 UTC is 09:30 wall clock in loc.
	got, err := p.Plan(time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC), true)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if got.Hour != 9 || got.Minute != 30 {
		t.Fatalf("Plan = %+v, want 09:30", got)
	}
}

func TestTriggerValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		tr   Trigger
		ok   bool
	}{
		{name: "daily", tr: Trigger{Hour: 23, Minute: 59, Repeats: true}, ok: true},
		{name: "once", tr: Trigger{Year: 2026, Month: 2, Day: 28, Hour: 7}, ok: true},
		{name: "bad hour", tr: Trigger{Hour: 24, Repeats: true}},
		{name: "bad minute", tr: Trigger{Minute: 60, Repeats: true}},
		{name: "daily with date", tr: Trigger{Year: 2026, Hour: 1, Repeats: true}},
		{name: "once without date", tr: Trigger{Hour: 1}},
		{name: "feb 30", tr: Trigger{Year: 2026, Month: 2, Day: 30}},
	}
	for _, tt := range tests {
		err := tt.tr.Validate()
		if tt.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.ok && err == nil {
			t.Fatalf("%s: expected error", tt.name)
		}
	}
}

func TestTriggerAt(t *testing.T) {
	t.Parallel()
	tr := Trigger{Year: 2026, Month: 11, Day: 1, Hour: 6, Minute: 45}
	at := tr.At(time.UTC)
	if !at.Equal(time.Date(2026, 11, 1, 6, 45, 0, 0, time.UTC)) {
		t.Fatalf("At = %v", at)
	}
	if !(Trigger{Hour: 6, Repeats: true}).At(time.UTC).IsZero() {
		t.Fatal("daily trigger should have no absolute time")
	}
}

func TestZonedPlannerFollowsZoneChanges(t *testing.T) {
	t.Parallel()
	loc := time.UTC
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	p := NewZonedPlanner(func() *time.Location { return loc }, fixedClock(now))
	pick := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)

	got, _ := p.Plan(pick, true)
	if got.Hour != 2 {
		t.Fatalf("UTC hour = %d, want 2", got.Hour)
	}
	loc = time.FixedZone("UTC+7", 7*3600)
	got, _ = p.Plan(pick, true)
	if got.Hour != 9 {
		t.Fatalf("UTC+7 hour = %d, want 9", got.Hour)
	}
}

func TestPlanRejectsYearsPastTimestampRange(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	p := NewPlanner(time.UTC, fixedClock(now))

	tests := []struct {
		at   time.Time
		fail bool
	}{
		{at: time.Date(9999, 12, 31, 9, 0, 0, 0, time.UTC)},
		{at: time.Date(10000, 1, 2, 9, 0, 0, 0, time.UTC), fail: true},
		// 9999-12-31 23:30 in UTC-1 is already year 10000 in UTC.
		{at: time.Date(9999, 12, 31, 23, 30, 0, 0, time.FixedZone("UTC-1", -3600)), fail: true},
	}
	for _, tt := range tests {
		_, err := p.Plan(tt.at, false)
		if tt.fail != errors.Is(err, ErrInvalidSchedule) {
			t.Fatalf("Plan(%v) err = %v, want invalid=%v", tt.at, err, tt.fail)
		}
	}
}
