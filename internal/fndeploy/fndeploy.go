// Package fndeploy deploys edge-function directories to a target project by
// invoking the platform CLI as an external process.
package fndeploy

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pgporter/pgporter/internal/progress"
)

// cliName is the external deployment CLI.
const cliName = "supabase"

// Options configure a deploy run.
type Options struct {
	SourceDir   string
	ProjectRef  string
	AccessToken string // passed via environment, never argv
	DryRun      bool
	Progress    progress.Reporter
}

// Stats summarizes a deploy run.
type Stats struct {
	Deployed int           `json:"deployed"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"-"`
}

// runner abstracts external process execution so tests never shell out.
type runner interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) LookPath(file string) (string, error) { return exec.LookPath(file) }

func (execRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

// Deployer drives the external CLI for each discovered function.
type Deployer struct {
	opts     Options
	run      runner
	progress progress.Reporter
}

// New validates that the platform CLI is installed. A missing CLI is a
// fatal entry error; nothing can be deployed without it.
func New(opts Options) (*Deployer, error) {
	return newWithRunner(opts, execRunner{})
}

func newWithRunner(opts Options, run runner) (*Deployer, error) {
	if opts.SourceDir == "" {
		return nil, fmt.Errorf("functions source directory is required")
	}
	if opts.ProjectRef == "" {
		return nil, fmt.Errorf("project ref is required")
	}
	if _, err := run.LookPath(cliName); err != nil {
		return nil, fmt.Errorf("%s CLI not found in PATH: %w", cliName, err)
	}
	rep := opts.Progress
	if rep == nil {
		rep = progress.NopReporter{}
	}
	return &Deployer{opts: opts, run: run, progress: rep}, nil
}

// Discover lists deployable functions: immediate subdirectories of the
// source directory containing an index.ts or index.js entrypoint, sorted by
// name.
func Discover(sourceDir string) ([]string, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return nil, fmt.Errorf("reading functions directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		for _, entry := range []string{"index.ts", "index.js"} {
			if _, err := os.Stat(filepath.Join(sourceDir, e.Name(), entry)); err == nil {
				names = append(names, e.Name())
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Run deploys every discovered function. A function failing to deploy is
// recorded and the rest still deploy.
func (d *Deployer) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	names, err := Discover(d.opts.SourceDir)
	if err != nil {
		return stats, err
	}

	phase := progress.Phase{Name: "Functions", Index: 1, Total: 1}
	d.progress.StartPhase(phase, len(names))

	var env []string
	if d.opts.AccessToken != "" {
		env = append(env, "SUPABASE_ACCESS_TOKEN="+d.opts.AccessToken)
	}

	for i, name := range names {
		if d.opts.DryRun {
			d.progress.Warn(fmt.Sprintf("dry-run: would deploy function %s", name))
			continue
		}
		out, err := d.run.Run(ctx, d.opts.SourceDir, env, cliName,
			"functions", "deploy", name, "--project-ref", d.opts.ProjectRef)
		if err != nil {
			msg := fmt.Sprintf("deploying %s: %v", name, err)
			if summary := lastLine(out); summary != "" {
				msg += ": " + summary
			}
			stats.Errors = append(stats.Errors, msg)
			d.progress.Warn(msg)
			continue
		}
		stats.Deployed++
		d.progress.Progress(phase, i+1, len(names))
	}

	d.progress.CompletePhase(phase, len(names), time.Since(start))
	stats.Duration = time.Since(start)
	return stats, nil
}

// lastLine extracts the final non-empty line of CLI output, which is where
// the deploy CLI prints its error summary.
func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}
