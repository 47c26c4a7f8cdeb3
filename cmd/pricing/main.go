package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leonardcser/storefront/internal/app"
	"github.com/leonardcser/storefront/internal/audit"
	"github.com/leonardcser/storefront/internal/config"
	"github.com/leonardcser/storefront/internal/events"
	"github.com/leonardcser/storefront/internal/logger"
	"github.com/leonardcser/storefront/internal/pricing"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		category string
		options  string
		dryRun   bool
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "pricing",
		Short: "Convert a category's products into size-priced variable products",
		Long: "pricing sets every product in a WooCommerce category to a variable product\n" +
			"with one variation per size. Products already priced that way are skipped,\n" +
			"so the command is safe to re-run.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitFromEnv(); err != nil {
				return err
			}
			defer logger.Close()

			job := pricing.Job{Category: category, DryRun: dryRun}
			if options != "" {
				opts, err := pricing.ParseOptions(options)
				if err != nil {
					return err
				}
				job.Options = opts
			}
			return run(cmd.Context(), job, asJSON)
		},
	}
	cmd.Flags().StringVar(&category, "category", "vape", "category slug to reprice")
	cmd.Flags().StringVar(&options, "options", "", `size table as label=price pairs, e.g. "0.5g=25,1g=40,2g=70"`)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the plan without changing anything")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func run(parent context.Context, job pricing.Job, asJSON bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Woo.Validate(); err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	a.ConnectEvents("storefront-pricing")
	a.ConnectAudit(ctx)

	rep, err := pricing.Run(ctx, a.Woo, job)
	outcome := "ok"
	if err != nil {
		outcome = "error: " + err.Error()
	}
	if saveErr := a.Audit.Save(context.WithoutCancel(ctx), audit.Record{
		Action:     "pricing.cli",
		ProductIDs: rep.Changed(),
		DryRun:     job.DryRun,
		Outcome:    outcome,
	}); saveErr != nil {
		logger.Warnf("audit record: %v", saveErr)
	}
	for _, id := range rep.Changed() {
		a.Catalog.InvalidateProduct(id)
		if pubErr := a.Events.Publish(ctx, events.NewProductEvent(id, events.ActionPriced)); pubErr != nil {
			logger.Warnf("publish product %d: %v", id, pubErr)
		}
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printReport(rep)
	if rep.Failed > 0 {
		return fmt.Errorf("%d products failed", rep.Failed)
	}
	return nil
}

func printReport(rep pricing.Report) {
	mode := "applied"
	if rep.DryRun {
		mode = "dry run"
	}
	fmt.Printf("category %s (%s)\n", rep.Category, mode)
	for _, o := range rep.Results {
		line := fmt.Sprintf("  %-8s #%d %s", o.Status, o.ProductID, o.Name)
		if o.Error != "" {
			line += ": " + o.Error
		}
		fmt.Println(line)
	}
	fmt.Printf("updated=%d skipped=%d planned=%d failed=%d\n", rep.Updated, rep.Skipped, rep.Planned, rep.Failed)
}
