package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthvault/internal/app"
)

const usage = `usage: healthvault [-config path] [-v] <command> [args]

commands:
  run                                   run the reminder daemon
  add -text TEXT -at WHEN [-daily]      create a reminder
                                        WHEN is "YYYY-MM-DD HH:MM" or "HH:MM" (next occurrence)
  list                                  list stored reminders
  rm ID                                 delete a reminder
  reconcile                             drop reminders that already fired
  next                                  show scheduled registrations and next fire times
`

func main() {
	var (
		cfgPath string
		verbose bool
	)
	flag.StringVar(&cfgPath, "config", "./healthvault.json", "path to config (json or yaml)")
	flag.BoolVar(&verbose, "v", false, "verbose logging for CLI commands")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, args := flag.Arg(0), flag.Args()[1:]

	var err error
	if cmd == "run" {
		err = runDaemon(cfgPath)
	} else {
		err = runCommand(cfgPath, verbose, cmd, args)
	}
	if errors.Is(err, errUsage) {
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "healthvault:", err)
		os.Exit(1)
	}
}

func runDaemon(cfgPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, app.Options{})
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Close()
		return err
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	stopCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	return a.Stop(stopCtx)
}

func runCommand(cfgPath string, verbose bool, cmd string, args []string) error {
	level := "warn"
	if verbose {
		level = "debug"
	}
	a, err := app.New(cfgPath, app.Options{LogLevel: level})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c := &cli{app: a, out: os.Stdout}
	switch cmd {
	case "add":
		return c.add(ctx, args)
	case "list", "ls":
		return c.list(ctx)
	case "rm", "delete":
		return c.remove(ctx, args)
	case "reconcile":
		return c.reconcile(ctx)
	case "next":
		return c.next(ctx)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}
