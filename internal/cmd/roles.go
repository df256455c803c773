package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/compound/internal/composition"
)

var rolesCmd = &cobra.Command{
	Use:   "roles",
	Short: "Show the role vocabulary",
	Args:  cobra.NoArgs,
	RunE:  runRoles,
}

func init() {
	rootCmd.AddCommand(rolesCmd)
}

func runRoles(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := composition.FromConfig(cfg.Fleet)
	if err != nil {
		return fmt.Errorf("invalid compositions: %w", err)
	}
	vocab := catalog.Vocabulary()

	p := newPrinter(cmd.OutOrStdout())
	p.header(fmt.Sprintf("Role vocabulary (version %d)", vocab.Version()))
	for _, role := range vocab.Roles() {
		if role.IsRoot() {
			p.line("  %s %s", role, p.dim("(implicit)"))
			continue
		}
		p.line("  %s", role)
	}
	return nil
}
