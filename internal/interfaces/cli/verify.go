package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ecomdw/etl/internal/domain/warehouse"
	"github.com/ecomdw/etl/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
)

func newVerifyCommand(global *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check fact_orders foreign keys against the dimensions",
		Long: `Counts, per fact foreign key, the orders that reference a dimension row and
the orphans whose key has no dimension row. Exits non-zero on orphans.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(global)
			if err != nil {
				return err
			}
			defer a.close()

			db, err := a.database()
			if err != nil {
				return err
			}
			report, err := persistence.NewIntegrityRepository(db).Check(cmd.Context())
			if err != nil {
				return fmt.Errorf("integrity check failed: %w", err)
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
					return err
				}
			} else {
				printIntegrity(cmd.OutOrStdout(), report)
			}
			return report.Err()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the integrity report as JSON")
	return cmd
}

func printIntegrity(w io.Writer, r *warehouse.IntegrityReport) {
	fmt.Fprintf(w, "fact_orders: %d orders\n\n", r.TotalOrders)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tDIMENSION\tNON-NULL\tCOVERAGE\tORPHANS")
	for _, k := range r.Keys {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.1f%%\t%d\n",
			k.Key, k.Key.Dimension(), k.NonNull, r.Coverage(k.Key)*100, k.Orphans)
	}
	_ = tw.Flush()
}
