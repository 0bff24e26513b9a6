package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep-expired",
	Short: "Mark active links past their expiry as expired",
	Long: `Mark active links past their expiry as expired.

Reads never depend on the sweep: expiry is always evaluated against the clock.
The sweep only keeps stored statuses tidy for listings and reports.

Examples:
  paylink sweep-expired`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	svc, err := newService(cfg, db)
	if err != nil {
		return err
	}
	n, err := svc.SweepExpired(cmd.Context(), svc.Now())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Marked %d links expired\n", n)
	return nil
}
