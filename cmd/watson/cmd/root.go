package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/amirkhaki/watson/pkg/checker"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "watson",
	Short: "explore the interleavings of concurrent programs",
	Long: `watson runs a program under test many times, forcing its tasks to
take turns in the order a strategy picks, and reports assertion failures
and deadlocks together with the schedule that produced them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			color.NoColor = true
		}
	},
}

// Execute runs the command line and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		errorf(os.Stderr, "%v", err)
		os.Exit(1)
	}
}

var configFile string
var logDir string
var verbosity int
var noColor bool

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"directory for log files (stderr when empty)")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbose", "v", 0,
		"log verbosity: 1 iterations, 2 scheduling, 3 graph events")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"print reports without colors")
}

// loadConfig builds the configuration from the config file, if any, then
// applies the flags set on the command line.
func loadConfig(flags *pflag.FlagSet) (checker.Config, error) {
	cfg := checker.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = checker.LoadConfig(configFile); err != nil {
			return cfg, err
		}
	}
	if flags.Changed("log-dir") {
		cfg.LogDir = logDir
	}
	if flags.Changed("verbose") {
		cfg.Verbosity = verbosity
	}
	return cfg, nil
}

// printReport writes r in red when it found a bug, yellow when the
// campaign was cut short, green otherwise.
func printReport(out io.Writer, r *checker.Report) {
	c := color.New(color.FgHiGreen)
	switch {
	case r.Bug():
		c = color.New(color.FgHiRed)
	case r.Outcome != "success":
		c = color.New(color.FgHiYellow)
	}
	c.Fprintln(out, r)
}

func errorf(out io.Writer, format string, args ...any) {
	color.New(color.FgRed, color.Bold).Fprint(out, "error: ")
	fmt.Fprintf(out, format+"\n", args...)
}
