package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/DrSkyle/cloudgov/pkg/version"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	cfgFile      string
	outputTarget string
	outputFormat string

	v = viper.New()
)

var rootCmd = &cobra.Command{
	Use:   version.AppName,
	Short: "Cloud cost and compliance governance",
	Long: `cloudgov assesses one deployment environment for cost, optimization and
compliance, and applies a bounded set of safe remediations when asked to.`,
	Version:       version.Current,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. SIGINT and SIGTERM cancel the run; a
// cancelled run still emits its partial report.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ~/.cloudgov.yaml)")
	flags.StringP("environment", "e", "", "Environment to assess: dev, staging or prod")
	flags.String("region", "", "AWS Region (default us-east-1)")
	flags.String("profile", "", "AWS shared config profile")
	flags.BoolP("verbose", "v", false, "Debug logging, including every AWS operation")
	flags.String("rules", "", "YAML file of custom CEL policy rules")
	flags.StringVarP(&outputTarget, "output", "o", "", "Write the report to a path or s3://bucket/key")
	flags.StringVarP(&outputFormat, "format", "f", "summary", "Output format: json, csv or summary")

	for key, flag := range map[string]string{
		"environment": "environment",
		"region":      "region",
		"profile":     "profile",
		"verbose":     "verbose",
		"rules_file":  "rules",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		renderHelp(cmd.OutOrStdout(), cmd)
	})

	rootCmd.AddCommand(assessCmd, costCmd, optimizeCmd, complianceCmd, versionCmd)
}

func renderHelp(w io.Writer, cmd *cobra.Command) {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#00FF99")).
		MarginBottom(1)

	flagStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA"))

	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("CLOUDGOV %s", version.Current)))
	if cmd.Long != "" {
		fmt.Fprintln(w, cmd.Long)
	} else {
		fmt.Fprintln(w, cmd.Short)
	}

	fmt.Fprintln(w, titleStyle.Render("USAGE"))
	fmt.Fprintf(w, "  %s\n\n", cmd.UseLine())

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintln(w, titleStyle.Render("COMMANDS"))
		for _, c := range cmd.Commands() {
			if c.IsAvailableCommand() {
				fmt.Fprintf(w, "  %-12s %s\n", c.Name(), c.Short)
			}
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, titleStyle.Render("FLAGS"))
	printFlag := func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := "--" + f.Name
		if f.Shorthand != "" {
			name = "-" + f.Shorthand + ", " + name
		}
		output := fmt.Sprintf("  %-18s %s", name, f.Usage)
		if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
			output += fmt.Sprintf(" (default %s)", f.DefValue)
		}
		fmt.Fprintln(w, flagStyle.Render(output))
	}
	cmd.LocalFlags().VisitAll(printFlag)
	cmd.InheritedFlags().VisitAll(printFlag)
	fmt.Fprintln(w)
}
