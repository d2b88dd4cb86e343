// Package replay discovers exported artifacts, rewrites their DDL so it is
// safe to run against a target that already holds some of the objects, and
// executes the resulting steps in order.
package replay

import "time"

// Category classifies a migration step by the kind of artifact it applies.
type Category string

const (
	CategorySchema    Category = "schema"
	CategoryFunctions Category = "functions"
	CategoryTriggers  Category = "triggers"
	CategoryData      Category = "data"
)

// Step is one discrete unit of migration work. Steps are built once by the
// planner, never mutated, and consumed by the executor exactly once.
type Step struct {
	Name     string   // display name, e.g. "schema" or "data public.users"
	Path     string   // absolute path of the artifact file
	Rank     int      // execution order, 1-based
	Category Category
}

// Status is the terminal state of a step. started is observable only through
// the progress reporter; results carry one of the other three.
type Status string

const (
	StatusStarted   Status = "started"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StepResult records the outcome of one executed step. Appended to the run
// result as each step completes and never mutated afterwards.
type StepResult struct {
	Name     string        `json:"name"`
	Category Category      `json:"category"`
	Status   Status        `json:"status"`
	Error    string        `json:"error,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Hint     string        `json:"hint,omitempty"`
	Duration time.Duration `json:"-"`
	// DurationMS mirrors Duration for JSON output.
	DurationMS int64 `json:"duration_ms"`
}

// RunResult is the ordered outcome of a whole replay run.
type RunResult struct {
	Steps     []StepResult `json:"steps"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	DryRun    bool         `json:"dry_run"`
}

// Append adds a step result and keeps the status counters current.
func (r *RunResult) Append(sr StepResult) {
	sr.DurationMS = sr.Duration.Milliseconds()
	r.Steps = append(r.Steps, sr)
	switch sr.Status {
	case StatusSucceeded:
		r.Succeeded++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

// OK reports whether the run completed without a failed step.
func (r *RunResult) OK() bool {
	return r.Failed == 0
}
