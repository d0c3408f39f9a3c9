package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/bugzilla-contrib/jbtools/internal/config"
	"github.com/bugzilla-contrib/jbtools/internal/importer"
	"github.com/bugzilla-contrib/jbtools/internal/store"
)

var (
	importedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

var importCmd = &cobra.Command{
	Use:   "import <spool-dir>...",
	Short: "Import JitterBug spool directories into a Bugzilla database",
	Long: `Import reads each numbered bug file in the given spool directories,
folds in the companion files (.state, .notes, .audit, .reply.*,
.followup.*) and inserts the result into the target Bugzilla schema.
Bugs that already exist are skipped, so a run can be repeated after
fixing whatever made individual bugs fail.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}
		cfg, err := config.ImportFromViper(v)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := store.OpenPG(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer st.Close()

		result, err := importer.Run(ctx, st, cfg, args)
		if err != nil {
			return err
		}

		fmt.Printf("%s  %s  %s\n",
			importedStyle.Render(fmt.Sprintf("%d imported", result.Imported)),
			skippedStyle.Render(fmt.Sprintf("%d skipped", result.Skipped)),
			failedStyle.Render(fmt.Sprintf("%d failed", result.Failed)))
		if result.Failed > 0 {
			return fmt.Errorf("%d bugs failed to import", result.Failed)
		}
		return nil
	},
}

func init() {
	f := importCmd.Flags()
	f.String("assignee", "", "Default assignee for every imported bug (required)")
	f.String("reporter", "", "Address credited with notes-file comments (required)")
	f.String("group", "", "Bugzilla group for private bugs (required)")
	f.String("domain", "", "Domain appended to bare usernames (required)")
	f.String("product", "", "Target product name (required)")
	f.String("component", "", "Target component (default: the product's only component)")
	f.String("version", "", "Fallback version for bugs that name no known version")
	f.String("timezone", "", "Zone for timestamps without one (default: Local)")
	f.String("email-mapping", "", "YAML file mapping old addresses to canonical ones")
	f.String("database-url", "", "Postgres connection URL for the Bugzilla schema (required)")
}
