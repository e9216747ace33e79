package commands

import (
	"github.com/DrSkyle/cloudgov/pkg/engine"
	"github.com/spf13/cobra"
)

var optimizeExecute bool

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Plan (and optionally apply) cost optimizations",
	Long: `Analyzes storage, tables, compute and edge resources and plans idempotent
optimizations. Plans are simulated unless --execute is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSections(cmd, optimizeExecute, engine.SectionOptimize)
	},
}

func init() {
	optimizeCmd.Flags().BoolVar(&optimizeExecute, "execute", false, "Apply the allowed plan entries instead of simulating them")
}
