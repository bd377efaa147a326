package commands

import (
	"fmt"

	"github.com/dyluth/romp/internal/mcpserver"
	"github.com/dyluth/romp/internal/printer"
	"github.com/spf13/cobra"
)

var (
	version string
	commit  string
	date    string

	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "romp",
	Short: "Romp - blackboard-coordinated code review agents",
	Long: `Romp runs AI review agents that coordinate through a shared Redis
blackboard instead of passing transcripts to each other.

Agents assemble prior context, post findings and warnings, record decisions
with the alternatives they rejected, and hand off or delegate what remains.
Every store operation is exposed to agents as an MCP tool.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	// Enable strict flag parsing - unknown flags will cause an error
	FParseErrWhitelist: cobra.FParseErrWhitelist{},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	// Silence Cobra's default error and usage printing
	// We print formatted colored errors directly in the printer package
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	mcpserver.Version = v
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

// usageArgs wraps a positional-argument validator so that a mismatch prints the
// command's usage even though cobra's own usage output is silenced.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return printer.Error(
				"invalid arguments",
				err.Error(),
				[]string{cmd.UsageString()},
			)
		}
		return nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "romp.yml", "Path to romp.yml (defaults apply when missing)")
}
