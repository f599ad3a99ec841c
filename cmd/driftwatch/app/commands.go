package app

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/driftwatch/driftwatch/pkg/constants"
)

// NewVersionCommand creates the version command.
func (a *App) NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("driftwatch version %s\n", a.version)
			fmt.Printf("commit: %s\n", a.commit)
			fmt.Printf("built: %s\n", a.date)
			fmt.Printf("built by: %s\n", a.builtBy)
			fmt.Printf("go version: %s\n", runtime.Version())
			fmt.Printf("platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

// NewCycleCommand creates the cycle command, which runs exactly one
// reconciliation pass and prints its report.
func (a *App) NewCycleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cycle",
		Short: "Run a single reconciliation pass",
		Long: `Cycle fetches both catalogs once, runs detection, raises pending
actions for qualifying divergences, and prints the pass summary.

With the chat integration configured this posts real notifications;
without it the pass runs silently and only the summary is printed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
			defer cancel()

			mon, err := a.Monitor()
			if err != nil {
				return err
			}
			if err := mon.Load(ctx); err != nil {
				a.logger.Warn().Err(err).Msg("State restore failed; continuing with empty state")
			}

			rep, err := mon.Cycle(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("cycle finished in %s\n", rep.Duration.Round(time.Millisecond))
			if rep.Seeded {
				fmt.Printf("  snapshot seeded with %d source items; detection starts next pass\n", rep.SourceItems)
				return nil
			}
			fmt.Printf("  fetched: %d source, %d operator\n", rep.SourceItems, rep.OperatorItems)
			fmt.Printf("  candidates: %d (%d guard discards)\n", rep.Candidates, rep.GuardDiscards)
			fmt.Printf("  actions raised: %d (%d already pending)\n", rep.Raised, rep.AlreadyPending)
			fmt.Printf("  bundles: %d confirmations, %d mismatches, %d missing constituents\n",
				rep.BundleConfirmations, rep.BundleMismatches, rep.MissingConstituents)
			fmt.Printf("  stock alerts: %d\n", rep.StockAlerts)
			fmt.Printf("  listings: %d new, %d removed\n", rep.NewListings, rep.RemovedListings)
			return nil
		},
	}
}

// NewPendingCommand creates the pending command, which lists actions
// awaiting review.
func (a *App) NewPendingCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending actions awaiting review",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
			defer cancel()

			mon, err := a.Monitor()
			if err != nil {
				return err
			}
			if err := mon.Load(ctx); err != nil {
				return err
			}

			pending := mon.Approvals().Pending("")
			if len(pending) == 0 {
				fmt.Println("nothing pending")
				return nil
			}

			fmt.Printf("%d pending:\n", len(pending))
			for _, act := range pending {
				fmt.Printf("  %-12s %-40s $%.2f -> $%.2f  raised %s\n",
					act.Kind, act.Name, act.OperatorPrice, act.Proposed,
					act.RaisedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// NewBundlesCommand creates the bundles command, which lists confirmed
// compositions and pending confirmations, with a reset subcommand.
func (a *App) NewBundlesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundles",
		Short: "List bundle compositions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
			defer cancel()

			mon, err := a.Monitor()
			if err != nil {
				return err
			}
			if err := mon.Load(ctx); err != nil {
				return err
			}

			confirmed := mon.Bundles().Confirmed()
			fmt.Printf("%d confirmed:\n", len(confirmed))
			for _, comp := range confirmed {
				fmt.Printf("  %d  %-40s %d constituents\n", comp.ProductID, comp.Name, len(comp.VariantIDs))
			}

			detected := mon.Bundles().PendingConfirmations()
			if len(detected) > 0 {
				fmt.Printf("%d awaiting confirmation:\n", len(detected))
				for _, pc := range detected {
					fmt.Printf("  %d  %-40s detected %s\n", pc.ProductID, pc.Name, pc.DetectedAt.Format(time.RFC3339))
				}
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "reset <product-id>",
		Short: "Clear all bundle state for a product",
		Long: `Reset removes a product's confirmed composition, pending
confirmation, and manual-entry parking. The product is re-detected on
the next cycle.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.CommandTimeout)
			defer cancel()

			mon, err := a.Monitor()
			if err != nil {
				return err
			}
			if err := mon.Load(ctx); err != nil {
				return err
			}

			if err := mon.Bundles().Reset(ctx, productID); err != nil {
				return err
			}
			fmt.Printf("bundle state for product %d cleared\n", productID)
			return nil
		},
	})

	return cmd
}
