package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lowercasename/eggcms/internal/sqlite"
)

func newMigrateCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Reconcile database tables with the schemas",
		Long: "Validate every schema, then create missing tables and add columns for\n" +
			"new fields. Columns are never dropped or renamed.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer s.close()

			var plans []*sqlite.Plan
			if dryRun {
				plans, err = s.plan(cmd)
			} else {
				plans, err = s.reconcile(cmd.Context())
			}
			if err != nil {
				return err
			}

			if flags.jsonMode {
				return printJSON(cmd, plans)
			}
			printPlans(cmd, plans)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the plan without changing the database")
	return cmd
}

// plan computes every schema's plan without applying it.
func (s *session) plan(cmd *cobra.Command) ([]*sqlite.Plan, error) {
	m, err := s.backend.Migrator()
	if err != nil {
		return nil, sysError("%w", err)
	}
	plans := make([]*sqlite.Plan, 0, len(s.schemas))
	for _, def := range s.schemas {
		p, err := m.Plan(cmd.Context(), def)
		if err != nil {
			return plans, sysError("plan %s: %w", def.Name, err)
		}
		plans = append(plans, p)
	}
	return plans, nil
}

func printPlans(cmd *cobra.Command, plans []*sqlite.Plan) {
	out := cmd.OutOrStdout()
	for _, p := range plans {
		line := fmt.Sprintf("%-20s %s", p.Schema, p.Action)
		if len(p.Added) > 0 {
			line += " +" + strings.Join(p.Added, " +")
		}
		if len(p.Reused) > 0 {
			line += " (reused: " + strings.Join(p.Reused, ", ") + ")"
		}
		if len(p.Removed) > 0 {
			line += " (kept: " + strings.Join(p.Removed, ", ") + ")"
		}
		fmt.Fprintln(out, line)
	}
}
