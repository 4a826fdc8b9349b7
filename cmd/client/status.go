package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vaultsync/vaultsync/internal/client"
	"github.com/vaultsync/vaultsync/internal/client/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last sync watermark for the configured vault",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configFromViper()
		if err := cfg.Validate(); err != nil {
			return err
		}
		cmd.SilenceUsage = true

		c, err := client.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer c.Close()

		watermark, err := c.Watermark()
		if err != nil {
			return err
		}

		fmt.Println("vault:        ", cfg.VaultDir)
		fmt.Println("remote folder:", cfg.RemoteFolder)
		fmt.Println("policy:       ", cfg.Policy)
		if watermark == 0 {
			fmt.Println("last sync:    ", "never")
		} else {
			ts := time.UnixMilli(watermark)
			fmt.Printf("last sync:     %s (%s)\n", ts.Format(time.RFC3339), humanize.Time(ts))
		}
		return nil
	},
}

func printPlan(ctx context.Context, c *client.Client) error {
	plan, err := c.Plan(ctx)
	if err != nil {
		return err
	}
	printPlanTable(plan)
	return nil
}

func printPlanTable(plan *sync.SyncPlan) {
	if plan.IsEmpty() {
		fmt.Println(green("✓"), "both trees converged, nothing to do")
		return
	}

	section := func(label string, entries []*sync.PathEntry) {
		if len(entries) == 0 {
			return
		}
		fmt.Printf("%s (%d):\n", label, len(entries))
		for _, e := range entries {
			fmt.Println("  ", e.Path)
		}
	}

	section("upload", plan.Uploads)
	section("download", plan.Downloads)
	section("delete local", plan.LocalDeletes)
	section("delete remote", plan.RemoteDeletes)

	if len(plan.Conflicts) > 0 {
		fmt.Printf("%s (%d):\n", red("conflicts"), len(plan.Conflicts))
		for _, c := range plan.Conflicts {
			fmt.Println("  ", c.Path)
		}
	}
	for _, p := range plan.Skipped {
		fmt.Println("  skipped (type mismatch):", p)
	}
}

func printResult(result *sync.RunResult) {
	fmt.Println(green("✓"), "sync complete",
		"uploaded:", result.Uploaded,
		"downloaded:", result.Downloaded,
		"deleted local:", result.DeletedLocal,
		"deleted remote:", result.DeletedRemote,
		"conflicts:", result.Resolved,
	)
	if len(result.Failed) > 0 {
		fmt.Println(red("!"), len(result.Failed), "items failed:")
		for _, f := range result.Failed {
			fmt.Printf("   %s %s: %v\n", f.Op, f.Path, f.Err)
		}
	}
}
