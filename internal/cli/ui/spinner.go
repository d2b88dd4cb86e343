package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
)

// StepSpinner animates the sequential setup steps of a migration run, such
// as connecting to each database side. In TTY mode it shows a braille dot
// spinner; in non-TTY mode it prints static text so piped/CI output stays
// clean. Long data phases report through the progress reporter instead; the
// spinner is only for steps with no measurable progress of their own.
type StepSpinner struct {
	w      io.Writer
	s      *spinner.Spinner
	msg    string
	active bool
	noSpin bool // true when not a TTY
}

// NewStepSpinner creates a spinner that writes to w.
// Set noSpin=true for non-interactive environments.
func NewStepSpinner(w io.Writer, noSpin bool) *StepSpinner {
	return &StepSpinner{w: w, noSpin: noSpin}
}

// Start begins a named step with an animated spinner (or static text).
func (ss *StepSpinner) Start(msg string) {
	ss.msg = msg
	if ss.noSpin {
		fmt.Fprintf(ss.w, "  %s", msg)
		return
	}
	ss.s = spinner.New(
		spinner.CharSets[14], // braille dots: ⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏
		80*time.Millisecond,
		spinner.WithWriter(ss.w),
	)
	ss.s.Prefix = "  "
	ss.s.Suffix = " " + msg
	ss.s.FinalMSG = ""
	ss.s.Start()
	ss.active = true
}

// Done completes the current step with a green checkmark.
func (ss *StepSpinner) Done() {
	ss.finish(StyleSuccess.Render(SymbolCheck))
}

// Warn completes the current step with a yellow warning symbol. Used when a
// step finished in degraded form, like a dependency analysis falling back to
// alphabetical order.
func (ss *StepSpinner) Warn() {
	ss.finish(StyleWarning.Render(SymbolWarning))
}

// Fail completes the current step with a red cross.
func (ss *StepSpinner) Fail() {
	ss.finish(StyleError.Render(SymbolCross))
}

func (ss *StepSpinner) finish(symbol string) {
	if ss.noSpin {
		fmt.Fprintf(ss.w, " %s\n", symbol)
		return
	}
	if ss.s != nil && ss.active {
		ss.s.Stop()
		ss.active = false
	}
	fmt.Fprintf(ss.w, "\r  %s %s\n", ss.msg, symbol)
}

// Stop halts the spinner without printing a status (for cleanup on signals).
func (ss *StepSpinner) Stop() {
	if ss.s != nil && ss.active {
		ss.s.Stop()
		ss.active = false
	}
}
