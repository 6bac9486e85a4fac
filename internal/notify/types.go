package notify

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRateLimited = errors.New("delivery rate limited")
	ErrNoSink      = errors.New("no delivery sink")
)

// Config controls throttling and the delivery sink.
type Config struct {
	RatePerSec float64
	Burst      int
	// DedupWindow suppresses a second delivery of the same (id, fire time).
	DedupWindow time.Duration
	// Command, when non-empty, is run for every delivery with the title and
	// body appended as the last two arguments.
	Command []string
	Timeout time.Duration
}

// Message is one notification as shown to the user.
type Message struct {
	ID    string
	Title string
	Body  string
	At    time.Time
}

// Sink displays a message.
type Sink interface {
	Show(ctx context.Context, m Message) error
}

type HistoryItem struct {
	At    time.Time
	ID    string
	Title string
	Body  string
	Error string
}

// FiredEvent is the bus payload for reminder.fired.
type FiredEvent struct {
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Body  string    `json:"body"`
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}
