package reminder

import (
	"fmt"
	"time"
)

// Planner turns a user-picked time and a recurrence flag into a Trigger.
//
// No timezone conversion happens: the candidate is read as a wall-clock time
// in the planner's location (the device zone unless configured otherwise).
type Planner struct {
	zone func() *time.Location
	now  func() time.Time
}

// NewPlanner returns a planner for loc (nil means time.Local) using now as the
// clock (nil means time.Now).
func NewPlanner(loc *time.Location, now func() time.Time) *Planner {
	if loc == nil {
		loc = time.Local
	}
	return NewZonedPlanner(func() *time.Location { return loc }, now)
}

// NewZonedPlanner reads the location from zone on every call, so it follows
// a scheduler whose timezone changes at runtime.
func NewZonedPlanner(zone func() *time.Location, now func() time.Time) *Planner {
	if zone == nil {
		zone = func() *time.Location { return time.Local }
	}
	if now == nil {
		now = time.Now
	}
	return &Planner{zone: zone, now: now}
}

func (p *Planner) Location() *time.Location {
	if loc := p.zone(); loc != nil {
		return loc
	}
	return time.Local
}

// Now is the planner's clock.
func (p *Planner) Now() time.Time { return p.now() }

// maxYear is the last year the stored RFC 3339 timestamp can represent.
const maxYear = 9999

// Validate reports ErrInvalidSchedule unless candidate is strictly after now
// and its year fits the stored timestamp format.
// UIs can call it when the user picks a time; Plan checks again.
func (p *Planner) Validate(candidate time.Time) error {
	if y := candidate.UTC().Year(); y > maxYear {
		return fmt.Errorf("%w: year %d is beyond %d", ErrInvalidSchedule, y, maxYear)
	}
	now := p.now()
	if !candidate.After(now) {
		loc := p.Location()
		return fmt.Errorf("%w: %s is not after %s", ErrInvalidSchedule,
			candidate.In(loc).Format("2006-01-02 15:04"), now.In(loc).Format("2006-01-02 15:04:05"))
	}
	return nil
}

// Plan validates candidate against the current time and returns the trigger.
func (p *Planner) Plan(candidate time.Time, recurring bool) (Trigger, error) {
	if err := p.Validate(candidate); err != nil {
		return Trigger{}, err
	}
	local := candidate.In(p.Location())
	if recurring {
		return DailyTrigger(local), nil
	}
	return OnceTrigger(local), nil
}
