package main

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/careflow/careflow/internal/domain/dashboard"
	"github.com/careflow/careflow/internal/platform/authz"
)

func dashboardCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the role-scoped workload counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireRoute(authz.RouteDashboard); err != nil {
				return err
			}
			ctx := cmd.Context()

			stats, err := a.dash.Stats(ctx)
			if err != nil {
				return err
			}
			printStats(stats)
			if !watch {
				return nil
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			defer signal.Stop(sig)

			cancel := a.dash.Watch(ctx, a.cfg.DashboardPollInterval(), func(s *dashboard.Stats) {
				fmt.Println()
				printStats(s)
			})
			defer cancel()
			<-sig
			return nil
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep polling and reprinting")
	return cmd
}

func printStats(s *dashboard.Stats) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	row := func(label string, v *int) {
		if v != nil {
			fmt.Fprintf(w, "%s\t%d\n", label, *v)
		}
	}
	row("Total patients", s.TotalPatients)
	row("Active sessions", s.ActiveSessions)
	row("Drafts", s.DraftSessions)
	row("Awaiting doctor", s.AwaitingDoctor)
	row("In review", s.InReview)
	row("Completed today", s.CompletedToday)
	row("Pending tests", s.PendingTests)
	row("Failed analyses", s.FailedAnalyses)
	row("My assigned sessions", s.MyAssignedSessions)
	row("Total users", s.TotalUsers)
	row("Active users", s.ActiveUsers)
	row("Sessions, last 7 days", s.SessionsLastSevenDay)
	w.Flush()
}
