package commands

import (
	"github.com/spf13/cobra"
)

var assessExecute bool

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Run cost, optimization and compliance together",
	Long: `Runs every section against one environment and prints a single report.
Without --execute the action plan is simulated and nothing is changed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSections(cmd, assessExecute)
	},
}

func init() {
	assessCmd.Flags().BoolVar(&assessExecute, "execute", false, "Apply the allowed plan entries instead of simulating them")
}
