package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kestrel-tools/timelogd/internal/timelog/dashboard"
)

var flagDashboardAddr string

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Serve a websocket feed of engine events",
}

var dashboardServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server and stream engine events until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := flagDashboardAddr
		if addr == "" {
			addr = cfg.DashboardAddr
		}
		if addr == "" {
			return fmt.Errorf("dashboard serve: no address configured; pass --addr or set dashboard_addr")
		}

		srv := dashboard.NewServer(&dashboard.Config{Addr: addr, Logger: nil})
		tok := eng.Subscribe(srv.Handler())
		defer eng.Unsubscribe(tok)

		if err := srv.Start(); err != nil {
			return fmt.Errorf("start dashboard: %w", err)
		}
		fmt.Printf("%s dashboard listening on %s (ctrl-c to stop)\n", RenderAccent("→"), srv.GetAddr())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		return srv.Stop()
	},
}

func init() {
	dashboardServeCmd.Flags().StringVar(&flagDashboardAddr, "addr", "", "listen address, e.g. :8080 (overrides dashboard_addr config)")
	dashboardCmd.AddCommand(dashboardServeCmd)
	rootCmd.AddCommand(dashboardCmd)
}
