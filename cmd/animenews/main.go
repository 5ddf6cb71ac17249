package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/deusflow/animenews/internal/config"
	"github.com/deusflow/animenews/internal/logger"
	"github.com/deusflow/animenews/internal/storage"
)

// Version is set via ldflags at build time.
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "animenews",
		Short:        "Post anime news from feeds and news pages to a Telegram channel",
		SilenceUsage: true,
	}
	root.AddCommand(runCmd(), onceCmd(), sourcesCmd(), statusCmd(), versionCmd())
	return root
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Poll all sources until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svc, err := build(ctx, true)
			if err != nil {
				return err
			}
			defer svc.Close()

			if svc.cfg.EnableHTTPMonitoring {
				go startMonitoringServer(ctx, svc.cfg.MonitoringPort, svc.metrics, svc.log)
			}
			return svc.app.Run(ctx)
		},
	}
}

func onceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := build(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer svc.Close()
			return svc.app.RunOnce(context.WithoutCancel(cmd.Context()))
		},
	}
}

func sourcesCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Fetch every source and print its items without publishing",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := build(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer svc.Close()

			out := cmd.OutOrStdout()
			for _, src := range svc.cfg.Sources {
				fmt.Fprintf(out, "== %s (%s, %s)\n", src.Name, src.Strategy, src.URL)
				items, err := svc.fetchers[src.Strategy].Fetch(cmd.Context(), src)
				if err != nil {
					fmt.Fprintf(out, "   error: %v\n\n", err)
					continue
				}
				for i, it := range items {
					if limit > 0 && i >= limit {
						break
					}
					d := svc.filter.Decide(it)
					mark := "-"
					if d.Relevant {
						mark = "+"
					}
					fmt.Fprintf(out, " %s %s\n   %s\n", mark, it.Title, it.Link)
					if d.Keyword != "" {
						fmt.Fprintf(out, "   %s: %s\n", d.Reason, d.Keyword)
					}
				}
				fmt.Fprintf(out, "   %d items\n\n", len(items))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "items to print per source (0 = all)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the stored marker of every source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log := logger.Init(cfg.Debug)
			store, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tKEY\tMARKER")
			for _, src := range cfg.Sources {
				id, ok := store.Marker(cmd.Context(), src.Key())
				if !ok {
					id = "(none)"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", src.Name, storage.MarkerKey(src.Key()), id)
			}
			if n, err := store.Count(cmd.Context()); err == nil {
				fmt.Fprintf(w, "\t%d markers stored in %s backend\t\n", n, cfg.StoreBackend)
			}
			return w.Flush()
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "animenews %s\n", Version)
		},
	}
}
