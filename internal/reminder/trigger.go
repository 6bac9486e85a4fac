package reminder

import (
	"fmt"
	"time"
)

// Trigger describes when a scheduled notification fires.
//
// One-shot: {year, month, day, hour, minute}.
// Daily:    {hour, minute, repeats: true}; date fields stay zero.
//
// Both are wall-clock values in the device's local zone. A daily trigger keeps
// firing at the same local hour/minute across DST changes.
type Trigger struct {
	Year    int        `json:"year,omitempty"`
	Month   time.Month `json:"month,omitempty"`
	Day     int        `json:"day,omitempty"`
	Hour    int        `json:"hour"`
	Minute  int        `json:"minute"`
	Repeats bool       `json:"repeats,omitempty"`
}

// OnceTrigger keeps the full date and minute of t (seconds are dropped).
func OnceTrigger(t time.Time) Trigger {
	return Trigger{Year: t.Year(), Month: t.Month(), Day: t.Day(), Hour: t.Hour(), Minute: t.Minute()}
}

// DailyTrigger keeps only the hour and minute of t.
func DailyTrigger(t time.Time) Trigger {
	return Trigger{Hour: t.Hour(), Minute: t.Minute(), Repeats: true}
}

func (t Trigger) Validate() error {
	if t.Hour < 0 || t.Hour > 23 {
		return fmt.Errorf("hour %d out of range", t.Hour)
	}
	if t.Minute < 0 || t.Minute > 59 {
		return fmt.Errorf("minute %d out of range", t.Minute)
	}
	if t.Repeats {
		if t.Year != 0 || t.Month != 0 || t.Day != 0 {
			return fmt.Errorf("daily trigger must not carry a date")
		}
		return nil
	}
	if t.Year <= 0 || t.Month < time.January || t.Month > time.December || t.Day < 1 {
		return fmt.Errorf("one-shot trigger needs year, month and day")
	}
	at := time.Date(t.Year, t.Month, t.Day, 0, 0, 0, 0, time.UTC)
	if at.Day() != t.Day || at.Month() != t.Month {
		return fmt.Errorf("invalid date %04d-%02d-%02d", t.Year, t.Month, t.Day)
	}
	return nil
}

// At returns the absolute fire time of a one-shot trigger in loc.
// For daily triggers it returns the zero time.
func (t Trigger) At(loc *time.Location) time.Time {
	if t.Repeats {
		return time.Time{}
	}
	if loc == nil {
		loc = time.Local
	}
	return time.Date(t.Year, t.Month, t.Day, t.Hour, t.Minute, 0, 0, loc)
}

// CronSpec returns the five-field cron expression of a daily trigger.
func (t Trigger) CronSpec() string {
	return fmt.Sprintf("%d %d * * *", t.Minute, t.Hour)
}

func (t Trigger) String() string {
	if t.Repeats {
		return fmt.Sprintf("daily %02d:%02d", t.Hour, t.Minute)
	}
	return fmt.Sprintf("once %04d-%02d-%02d %02d:%02d", t.Year, int(t.Month), t.Day, t.Hour, t.Minute)
}
