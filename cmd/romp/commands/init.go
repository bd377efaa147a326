package commands

import (
	"fmt"

	"github.com/dyluth/romp/internal/git"
	"github.com/dyluth/romp/internal/printer"
	"github.com/dyluth/romp/internal/scaffold"
	"github.com/spf13/cobra"
)

var (
	forceInit bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a romp project",
	Long: `Initialize a romp project with the default configuration.

Creates:
  • romp.yml - Project configuration with every default documented
  • .gitignore entry for .romp/, where the run ledger lives

This command must be run from the root of a Git repository.

Use --force to overwrite an existing romp.yml.`,
	Args: usageArgs(cobra.NoArgs),
	RunE: runInit,
}

func init() {
	// No -f shorthand: it would read as a config flag
	initCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing romp.yml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	checker := git.NewChecker("")
	if err := checker.ValidateGitContext(); err != nil {
		return err
	}

	changed, err := scaffold.Initialize(".", forceInit)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	for _, path := range changed {
		printer.Success("Wrote %s\n", path)
	}
	printer.Println()
	printer.Info("Next steps:\n")
	printer.Println("  1. Start Redis, or point ROMP_REDIS_URL at one")
	printer.Println("  2. romp review src/auth/")
	printer.Println("  3. romp hoard")
	return nil
}
