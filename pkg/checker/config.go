package checker

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of a checking campaign.
type Config struct {
	// Strategy is one of "random", "trust" or "replay".
	Strategy string `yaml:"strategy"`
	// Iterations bounds the campaign. Zero lets trust run until its
	// exploration is exhausted and gives random 100 iterations.
	Iterations int   `yaml:"iterations"`
	Seed       int64 `yaml:"seed"`
	// Policy orders enabled tasks once trust has replayed a saved graph:
	// "fifo" or "random".
	Policy string `yaml:"policy"`
	// ReplayFile is the trace the replay strategy follows.
	ReplayFile string `yaml:"replay_file"`

	Retries int           `yaml:"retries"`
	Backoff time.Duration `yaml:"backoff"`
	Timeout time.Duration `yaml:"timeout"`

	// ReportPath is the directory reports and buggy traces are written to.
	// Empty disables writing.
	ReportPath string `yaml:"report_path"`
	// Debug dumps every trust graph under ReportPath.
	Debug bool `yaml:"debug"`

	LogDir    string `yaml:"log_dir"`
	Verbosity int    `yaml:"verbosity"`
}

const defaultRandomIterations = 100

// DefaultConfig returns the configuration used when nothing is given.
func DefaultConfig() Config {
	return Config{
		Strategy:   StrategyRandom,
		Seed:       time.Now().UnixNano(),
		Policy:     "fifo",
		Retries:    10,
		Backoff:    10 * time.Millisecond,
		ReportPath: "watson-report",
	}
}

// LoadConfig reads a YAML configuration file. Fields the file leaves out
// keep their default value.
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", filename, err)
	}
	return cfg, cfg.Validate()
}

// Validate reports settings no campaign can run with.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyRandom, StrategyTrust:
	case StrategyReplay:
		if c.ReplayFile == "" {
			return fmt.Errorf("%w: replay needs a trace file", ErrInvalidStrategy)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStrategy, c.Strategy)
	}
	switch c.Policy {
	case "", "fifo", "random":
	default:
		return fmt.Errorf("unknown policy %q", c.Policy)
	}
	if c.Iterations < 0 {
		return fmt.Errorf("negative iteration bound %d", c.Iterations)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %v", c.Timeout)
	}
	return nil
}

// iterations returns the iteration bound, zero meaning none.
func (c Config) iterations() int {
	if c.Iterations == 0 && c.Strategy == StrategyRandom {
		return defaultRandomIterations
	}
	return c.Iterations
}
