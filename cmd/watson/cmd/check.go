package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/amirkhaki/watson/pkg/checker"
	"github.com/amirkhaki/watson/pkg/programs"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check program[:size]...",
	Short: "check built-in programs",
	Long: `check runs one campaign per program, concurrently. A program name may
carry the number of tasks to spawn, as in coarse-list:7.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		applyCheckFlags(&cfg, cmd.Flags())

		targets := make([]checker.Target, 0, len(args))
		for _, name := range args {
			p, size, err := programs.Lookup(name)
			if err != nil {
				return err
			}
			targets = append(targets, checker.Target{Name: fmt.Sprintf("%s:%d", p.Name, size), Program: p.Build(size)})
		}

		c, err := checker.New(cfg)
		if err != nil {
			return err
		}
		reports, err := c.CheckAll(cmd.Context(), targets)
		for _, r := range reports {
			if r != nil {
				printReport(cmd.OutOrStdout(), r)
			}
		}
		if err != nil {
			return err
		}
		return bugsFound(reports)
	},
}

var strategy string
var iterations int
var seed int64
var policy string
var timeout time.Duration
var reportPath string
var debug bool

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVarP(&strategy, "strategy", "s", checker.StrategyRandom,
		"exploration strategy: random or trust")
	checkCmd.Flags().IntVarP(&iterations, "iterations", "n", 0,
		"iteration bound (0: exhaust trust, 100 for random)")
	checkCmd.Flags().Int64Var(&seed, "seed", 0,
		"random seed (default: current time)")
	checkCmd.Flags().StringVar(&policy, "policy", "fifo",
		"trust scheduling policy once a saved graph is replayed: fifo or random")
	checkCmd.Flags().DurationVarP(&timeout, "timeout", "t", 0,
		"campaign time bound (0: none)")
	checkCmd.Flags().StringVarP(&reportPath, "report", "r", "watson-report",
		"directory for reports and buggy traces (empty: none)")
	checkCmd.Flags().BoolVar(&debug, "debug", false,
		"dump every trust execution graph into the report directory")
}

func applyCheckFlags(cfg *checker.Config, flags *pflag.FlagSet) {
	if flags.Changed("strategy") {
		cfg.Strategy = strategy
	}
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("policy") {
		cfg.Policy = policy
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("report") {
		cfg.ReportPath = reportPath
	}
	if flags.Changed("debug") {
		cfg.Debug = debug
	}
}

func bugsFound(reports []*checker.Report) error {
	n := 0
	for _, r := range reports {
		if r.Bug() {
			n++
		}
	}
	if n > 0 {
		return fmt.Errorf("%d of %d programs have bugs", n, len(reports))
	}
	return nil
}
