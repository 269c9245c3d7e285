package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/himanishpuri/VinylKeeper/internal/config"
	"github.com/himanishpuri/VinylKeeper/internal/session"
	"github.com/himanishpuri/VinylKeeper/internal/storage"
	"github.com/himanishpuri/VinylKeeper/pkg/models"
)

const (
	menuPrompt   = "start [s]ession | [d]isplay data | [q]uit? "
	invalidInput = "Invalid input, please try again."
)

// recorder is what the menu drives.
type recorder interface {
	StartSession(ctx context.Context) (session.Summary, error)
	DisplayData(ctx context.Context, key models.SortKey) (*storage.QueryResult, error)
}

func handleMenu(cfg *config.Config) error {
	svc, err := createService(cfg, liveSource(cfg))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	return runMenu(context.Background(), svc, os.Stdin, os.Stdout, interruptContext)
}

// interruptContext returns a context canceled on SIGINT.
func interruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt)
}

// lineReader delivers input lines on a channel so a running session can wait
// for Enter while the menu keeps ownership of the input.
func lineReader(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

func runMenu(
	ctx context.Context,
	rec recorder,
	in io.Reader,
	out io.Writer,
	stopCtx func(context.Context) (context.Context, context.CancelFunc),
) error {
	lines := lineReader(in)

	for {
		fmt.Fprint(out, menuPrompt)
		line, ok := <-lines
		if !ok {
			fmt.Fprintln(out, "\nquitting...")
			return nil
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "s":
			runMenuSession(ctx, rec, lines, out, stopCtx)
		case "d":
			if !runMenuDisplay(ctx, rec, lines, out) {
				fmt.Fprintln(out, "\nquitting...")
				return nil
			}
		case "q":
			fmt.Fprintln(out, "quitting...")
			return nil
		default:
			fmt.Fprintln(out, invalidInput)
		}
	}
}

func runMenuSession(
	ctx context.Context,
	rec recorder,
	lines <-chan string,
	out io.Writer,
	stopCtx func(context.Context) (context.Context, context.CancelFunc),
) {
	sctx, cancel := stopCtx(ctx)
	defer cancel()

	type result struct {
		sum session.Summary
		err error
	}
	done := make(chan result, 1)
	go func() {
		sum, err := rec.StartSession(sctx)
		done <- result{sum, err}
	}()

	fmt.Fprintln(out, "Listening... press Enter (or Ctrl+C) to stop.")

	var res result
	select {
	case <-lines:
		cancel()
		res = <-done
	case res = <-done:
	}

	if res.err != nil {
		if errors.Is(res.err, session.ErrSessionRunning) {
			fmt.Fprintln(out, "A session is already running.")
			return
		}
		fmt.Fprintf(out, "Session failed: %v\n", res.err)
	}
	printSummary(out, res.sum)
}

// runMenuDisplay asks for a sort key and prints the play log. It reports false
// when input ended.
func runMenuDisplay(ctx context.Context, rec recorder, lines <-chan string, out io.Writer) bool {
	printSortKeys(out)
	for {
		fmt.Fprint(out, "sort by? ")
		line, ok := <-lines
		if !ok {
			return false
		}
		key, err := models.ParseSortKey(strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintln(out, invalidInput)
			continue
		}

		res, err := rec.DisplayData(ctx, key)
		if err != nil {
			fmt.Fprintf(out, "Failed to read plays: %v\n", err)
			return true
		}
		printResult(out, res)
		return true
	}
}
