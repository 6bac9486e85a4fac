package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"healthvault/internal/app"
	"healthvault/internal/reminder"
)

var errUsage = errors.New("usage")

const (
	dateTimeLayout = "2006-01-02 15:04"
	clockLayout    = "15:04"
)

type cli struct {
	app *app.App
	out io.Writer
}

func (c *cli) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	text := fs.String("text", "", "reminder text")
	at := fs.String("at", "", `"YYYY-MM-DD HH:MM" or "HH:MM"`)
	daily := fs.Bool("daily", false, "repeat every day at the same time")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if strings.TrimSpace(*at) == "" {
		return fmt.Errorf("%w: -at is required", errUsage)
	}

	mgr := c.app.Manager()
	when, err := parseWhen(*at, mgr.Planner().Now(), mgr.Planner().Location())
	if err != nil {
		return err
	}
	r, err := mgr.Create(ctx, *text, when, *daily)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "created %s: %s\n", r.ID, describe(r, mgr.Planner().Location()))
	return nil
}

// parseWhen reads a full date-time, or a bare clock time meaning its next
// occurrence after now.
func parseWhen(s string, now time.Time, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateTimeLayout, s, loc); err == nil {
		return t, nil
	}
	clock, err := time.ParseInLocation(clockLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse -at %q (want %q or %q)", errUsage, s, dateTimeLayout, clockLayout)
	}
	n := now.In(loc)
	t := time.Date(n.Year(), n.Month(), n.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
	if !t.After(n) {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func (c *cli) list(ctx context.Context) error {
	list, err := c.app.Manager().List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(c.out, "no reminders")
		return nil
	}
	loc := c.app.Manager().Planner().Location()
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tTEXT")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, describe(r, loc), r.Text)
	}
	return tw.Flush()
}

func describe(r reminder.Reminder, loc *time.Location) string {
	t := r.FireTime.In(loc)
	if r.IsRecurring {
		return "daily at " + t.Format(clockLayout)
	}
	return t.Format(dateTimeLayout)
}

func (c *cli) remove(ctx context.Context, args []string) error {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return fmt.Errorf("%w: rm takes exactly one id", errUsage)
	}
	id := strings.TrimSpace(args[0])
	_, found, err := c.app.Manager().Get(ctx, id)
	if err != nil {
		return err
	}
	if err := c.app.Manager().Delete(ctx, id); err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(c.out, "no reminder %s\n", id)
		return nil
	}
	fmt.Fprintf(c.out, "deleted %s\n", id)
	return nil
}

func (c *cli) reconcile(ctx context.Context) error {
	pruned, err := c.app.Manager().Reconcile(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "pruned %d reminder(s)\n", len(pruned))
	for _, r := range pruned {
		fmt.Fprintf(c.out, "  %s  %s\n", r.ID, r.Text)
	}
	return nil
}

func (c *cli) next(ctx context.Context) error {
	entries, err := c.app.Scheduler().Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.out, "nothing scheduled")
		return nil
	}
	loc := c.app.Scheduler().Location()
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTRIGGER\tNEXT\tBODY")
	for _, e := range entries {
		next := "-"
		if !e.Next.IsZero() {
			next = e.Next.In(loc).Format(dateTimeLayout)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Trigger.String(), next, e.Body)
	}
	return tw.Flush()
}
