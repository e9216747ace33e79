package commands

import (
	"github.com/DrSkyle/cloudgov/pkg/engine"
	"github.com/spf13/cobra"
)

var complianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Score encryption, access, logging and network posture",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSections(cmd, false, engine.SectionCompliance)
	},
}
