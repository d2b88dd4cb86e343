// Package notify sends run completion notifications. Delivery failures are
// never fatal; callers surface them as warnings and carry on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// RunSummary describes a finished command for notification backends.
type RunSummary struct {
	Command    string        // "export", "import", "clone", ...
	Succeeded  bool
	Source     string        // redacted source label
	Target     string        // redacted target label, if any
	Tables     int
	Rows       int64
	Errors     []string
	Duration   time.Duration
	FinishedAt time.Time
}

// Subject builds the notification subject line.
func (s RunSummary) Subject() string {
	outcome := "succeeded"
	if !s.Succeeded {
		outcome = "failed"
	}
	return fmt.Sprintf("[pgporter] %s %s", s.Command, outcome)
}

// Body builds a plain-text notification body.
func (s RunSummary) Body() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command:  %s\n", s.Command)
	if s.Source != "" {
		fmt.Fprintf(&b, "Source:   %s\n", s.Source)
	}
	if s.Target != "" {
		fmt.Fprintf(&b, "Target:   %s\n", s.Target)
	}
	fmt.Fprintf(&b, "Tables:   %d\n", s.Tables)
	fmt.Fprintf(&b, "Rows:     %d\n", s.Rows)
	fmt.Fprintf(&b, "Duration: %s\n", s.Duration.Round(time.Millisecond))
	if len(s.Errors) > 0 {
		fmt.Fprintf(&b, "\nErrors (%d):\n", len(s.Errors))
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	return b.String()
}

// Notifier delivers a run summary to one backend.
type Notifier interface {
	Send(ctx context.Context, summary RunSummary) error
}

// LogNotifier writes the summary to a structured logger. It is the default
// backend and never fails.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, summary RunSummary) error {
	n.logger.Info("run finished",
		"command", summary.Command,
		"succeeded", summary.Succeeded,
		"tables", summary.Tables,
		"rows", summary.Rows,
		"errors", len(summary.Errors),
		"duration", summary.Duration.Round(time.Millisecond).String(),
	)
	return nil
}
