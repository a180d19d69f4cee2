package checker

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/amirkhaki/watson/pkg/runtime"
)

// Report summarizes a campaign.
type Report struct {
	ID       string `yaml:"id"`
	Program  string `yaml:"program"`
	Strategy string `yaml:"strategy"`
	Seed     int64  `yaml:"seed,omitempty"`
	Outcome  string `yaml:"outcome"`

	// Iterations counts every iteration run, Blocked those cut short by a
	// failed assumption or by a saved graph parking made unreachable.
	Iterations int `yaml:"iterations"`
	Blocked    int `yaml:"blocked"`
	// Distinct counts the distinct schedules seen.
	Distinct int           `yaml:"distinct"`
	// Graphs counts the distinct execution graphs trust completed.
	Graphs   int           `yaml:"graphs,omitempty"`
	Elapsed  time.Duration `yaml:"elapsed"`

	// Failure describes the bug found, if any.
	Failure    string           `yaml:"failure,omitempty"`
	Deadlocked []runtime.TaskID `yaml:"deadlocked,omitempty"`
	// Schedule is the order in which tasks were resumed in the buggy iteration.
	Schedule []runtime.TaskID `yaml:"schedule,omitempty"`
	// Witness lists, for a failure found by trust, the events the failing
	// task's last event depends on.
	Witness []string `yaml:"witness,omitempty"`
	// TraceFile is the recorded trace of the buggy iteration, for replay.
	TraceFile string `yaml:"trace_file,omitempty"`

	trace []runtime.Event
}

// Executions returns the number of iterations that ran to completion.
func (r *Report) Executions() int {
	return r.Iterations - r.Blocked
}

// Bug reports whether the campaign found an assertion failure or a deadlock.
func (r *Report) Bug() bool {
	return r.Outcome == runtime.OutcomeAssertionFailure.String() ||
		r.Outcome == runtime.OutcomeDeadlock.String()
}

// Trace returns the recorded trace of the buggy iteration.
func (r *Report) Trace() []runtime.Event { return r.trace }

func (r *Report) String() string {
	s := fmt.Sprintf("%s [%s] %s: %d iterations (%d blocked, %d distinct) in %v",
		r.Program, r.Strategy, r.Outcome, r.Iterations, r.Blocked, r.Distinct, r.Elapsed)
	if r.Failure != "" {
		s += "\n  " + r.Failure
	}
	if len(r.Schedule) > 0 {
		s += fmt.Sprintf("\n  schedule: %v", r.Schedule)
	}
	return s
}

// Save writes the report as <dir>/<id>.yaml, and the buggy trace next to
// it as <dir>/<id>.trace.
func (r *Report) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	if len(r.trace) > 0 {
		r.TraceFile = filepath.Join(dir, r.ID+".trace")
		if err := runtime.SaveTrace(r.TraceFile, r.trace); err != nil {
			return "", err
		}
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	filename := filepath.Join(dir, r.ID+".yaml")
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return filename, nil
}

// LoadReport reads a report written by Save.
func LoadReport(filename string) (*Report, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	r := &Report{}
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", filename, err)
	}
	return r, nil
}
