package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amirkhaki/watson/pkg/checker"
	"github.com/amirkhaki/watson/pkg/programs"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list built-in programs and strategies",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "programs:")
		for _, p := range programs.All() {
			bug := ""
			if p.Bug {
				bug = " (buggy)"
			}
			fmt.Fprintf(out, "  %-22s %d tasks  %s%s\n", p.Name, p.Size, p.Description, bug)
		}
		fmt.Fprintf(out, "strategies: %s\n", strings.Join(checker.Strategies(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
