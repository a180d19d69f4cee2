package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/amirkhaki/watson/pkg/checker"
	"github.com/amirkhaki/watson/pkg/programs"
)

// replayCmd represents the replay command
var replayCmd = &cobra.Command{
	Use:   "replay (report.yaml | program[:size] trace)",
	Short: "re-run a recorded schedule",
	Long: `replay runs a program once, resuming its tasks in the order a recorded
trace gives. Either pass a report written by check, or a program and the
trace file to follow.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		name, trace := "", ""
		switch {
		case len(args) == 2:
			name, trace = args[0], args[1]
		case filepath.Ext(args[0]) == ".yaml" || filepath.Ext(args[0]) == ".yml":
			r, err := checker.LoadReport(args[0])
			if err != nil {
				return err
			}
			if r.TraceFile == "" {
				return fmt.Errorf("report %s has no trace", args[0])
			}
			name, trace = r.Program, r.TraceFile
		default:
			return fmt.Errorf("replay needs a report, or a program and a trace")
		}

		p, size, err := programs.Lookup(name)
		if err != nil {
			return err
		}
		cfg.Strategy = checker.StrategyReplay
		cfg.ReplayFile = trace
		cfg.ReportPath = ""
		c, err := checker.New(cfg)
		if err != nil {
			return err
		}
		r, err := c.Check(cmd.Context(), name, p.Build(size))
		if err != nil {
			return err
		}
		printReport(cmd.OutOrStdout(), r)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
