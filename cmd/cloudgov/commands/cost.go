package commands

import (
	"github.com/DrSkyle/cloudgov/pkg/engine"
	"github.com/spf13/cobra"
)

var costCmd = &cobra.Command{
	Use:   "cost",
	Short: "Analyze spend, trend and budget",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSections(cmd, false, engine.SectionCost)
	},
}
