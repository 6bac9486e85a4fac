package reminder

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// timeLayout matches the ISO-8601 form existing installs wrote
// (UTC, millisecond precision, "Z" suffix).
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Reminder is the only persisted entity.
type Reminder struct {
	// ID is the Scheduler registration id.
	ID   string
	Text string
	// FireTime is the first (or only) occurrence.
	FireTime    time.Time
	IsRecurring bool
}

type record struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Time        string `json:"time"`
	IsRecurring bool   `json:"isRecurring"`
}

func (r Reminder) MarshalJSON() ([]byte, error) {
	return json.Marshal(record{
		ID:          r.ID,
		Text:        r.Text,
		Time:        r.FireTime.UTC().Format(timeLayout),
		IsRecurring: r.IsRecurring,
	})
}

func (r *Reminder) UnmarshalJSON(b []byte) error {
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return err
	}
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("reminder without id")
	}
	t, err := time.Parse(time.RFC3339Nano, rec.Time)
	if err != nil {
		return err
	}
	*r = Reminder{ID: rec.ID, Text: rec.Text, FireTime: t, IsRecurring: rec.IsRecurring}
	return nil
}

// Equal compares field by field; times compare as instants.
func (r Reminder) Equal(o Reminder) bool {
	return r.ID == o.ID && r.Text == o.Text && r.IsRecurring == o.IsRecurring && r.FireTime.Equal(o.FireTime)
}
