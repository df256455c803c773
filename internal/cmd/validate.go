package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/compound/internal/composition"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and list its compositions",
	Long: `Load the configuration, validate it, and print the compositions in the
order they are tried. The first composition whose selector matches a
demand is the one provisioned for it.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := composition.FromConfig(cfg.Fleet)
	if err != nil {
		return fmt.Errorf("invalid compositions: %w", err)
	}

	p := newPrinter(cmd.OutOrStdout())
	source := viper.ConfigFileUsed()
	if source == "" {
		source = "(none - using defaults)"
	}
	p.line("Configuration valid %s", p.dim(source))
	p.line("")

	specs := catalog.Specs()
	if len(specs) == 0 {
		p.line("No compositions configured; every demand will be declined.")
		return nil
	}

	rows := [][]string{{"#", "NAME", "SELECTOR", "SIZE", "ENTRIES"}}
	for i, spec := range specs {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			spec.Name(),
			spec.Selector().String(),
			strconv.Itoa(spec.Size()),
			formatEntries(spec.Entries()),
		})
	}
	p.table(rows)
	p.line("")
	p.line("%d backend node(s), max instances %s", len(cfg.Backend.Nodes), formatLimit(cfg.Fleet.MaxInstances))
	return nil
}

func formatEntries(entries []composition.Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf("%s=%s x%d", e.Role, e.Selector, e.Count))
	}
	return strings.Join(parts, ", ")
}

func formatLimit(n int) string {
	if n == 0 {
		return "unlimited"
	}
	return strconv.Itoa(n)
}
