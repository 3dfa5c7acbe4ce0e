package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-scheduling-core/internal/app"
	"github.com/hackgods/clinic-scheduling-core/internal/config"
	"github.com/hackgods/clinic-scheduling-core/internal/logging"
	"github.com/hackgods/clinic-scheduling-core/internal/numbering"
	"github.com/hackgods/clinic-scheduling-core/internal/schedule"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "clinicctl",
		Short:        "Operator tools for the clinic scheduling store",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(poolsCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func open(ctx context.Context) (*app.Runtime, config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, cfg, fmt.Errorf("config load: %w", err)
	}
	log := logging.New(cfg.Env, cfg.LogLevel, "clinicctl")

	rt, err := app.Open(ctx, cfg, log)
	if err != nil {
		return nil, cfg, err
	}
	return rt, cfg, nil
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report duplicate patient numbers, overlaps and out-of-hours appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, cfg, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			raw, _ := cmd.Flags().GetStringSlice("day")
			days := make([]time.Time, 0, len(raw))
			for _, d := range raw {
				day, err := time.ParseInLocation(schedule.DateFormat, d, cfg.Location)
				if err != nil {
					return fmt.Errorf("parse --day %q: %w", d, err)
				}
				days = append(days, day)
			}

			report, err := rt.Service.CheckIntegrity(cmd.Context(), days)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "patients checked: %d\n", report.Patients)
			for number, ids := range report.DuplicateNumbers {
				fmt.Fprintf(out, "duplicate number %s held by %v\n", number, ids)
			}
			for _, o := range report.Overlaps {
				fmt.Fprintf(out, "%s: %s overlaps %s\n", o.Date, o.First, o.Other)
			}
			for _, id := range report.OutOfHours {
				fmt.Fprintf(out, "outside business hours: %s\n", id)
			}

			if !report.OK() {
				return fmt.Errorf("integrity check failed")
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}

	cmd.Flags().StringSlice("day", []string{time.Now().Format(schedule.DateFormat)}, "days to check, YYYY-MM-DD")
	return cmd
}

func poolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pools",
		Short: "Show the highest issued and reusable numbers per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, _, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			state, err := rt.Service.PoolState(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, cat := range numbering.Categories {
				s := state[cat]
				fmt.Fprintf(out, "%-3s highest=%d released=%v\n", cat.Prefix(), s.Highest, s.Released)
			}
			return nil
		},
	}
}
