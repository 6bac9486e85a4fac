package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"unicode/utf8"

	logx "healthvault/pkg/logx"
)

// LogSink writes the reminder to the log. It is the default sink.
type LogSink struct {
	Log logx.Logger
}

func (l LogSink) Show(ctx context.Context, m Message) error {
	l.Log.Info("reminder", logx.String("title", m.Title), logx.String("text", m.Body), logx.Time("at", m.At))
	return nil
}

// CommandSink runs Argv with the title and body appended.
type CommandSink struct {
	Argv []string
}

func (c CommandSink) Show(ctx context.Context, m Message) error {
	if len(c.Argv) == 0 || strings.TrimSpace(c.Argv[0]) == "" {
		return ErrNoSink
	}
	args := append(append([]string(nil), c.Argv[1:]...), m.Title, m.Body)
	out, err := exec.CommandContext(ctx, c.Argv[0], args...).CombinedOutput()
	if err != nil {
		msg := truncate(strings.TrimSpace(string(out)), 200)
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", c.Argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", c.Argv[0], err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
