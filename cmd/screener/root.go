package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"MarketScreener/internal/notifier"
	"MarketScreener/internal/scheduler"
)

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "screener",
		Short:         "Daily technical screener for IDX equities",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config.yaml")
	root.AddCommand(newRunCmd(&cfgPath), newServeCmd(&cfgPath), newRegimeCmd(&cfgPath))
	return root
}

func newRunCmd(cfgPath *string) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one screening pass and deliver the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()
			sink, err := a.sink(dryRun)
			if err != nil {
				return err
			}
			return scheduler.RunOnce(cmd.Context(), a.screener, sink)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the report to stdout instead of Telegram")
	return cmd
}

func newServeCmd(cfgPath *string) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run on the cron schedule and answer bot commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()
			sink, err := a.sink(dryRun)
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			sched := scheduler.NewScheduler(ctx, a.screener, sink, loc)
			if err := sched.Register(cfg.Schedule.Cron); err != nil {
				return fmt.Errorf("register schedule: %w", err)
			}
			sched.Start()
			defer sched.Stop()

			if tn, ok := sink.(*notifier.TelegramNotifier); ok {
				go tn.StartPolling(ctx, sched.HandleCommand)
			}

			srv := startMetricsServer(cfg.Metrics.Addr, a)
			log.Info().Str("cron", cfg.Schedule.Cron).Str("tz", loc.String()).Msg("screener service started")
			<-ctx.Done()
			log.Info().Msg("shutting down")

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("metrics server shutdown")
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print reports to stdout instead of Telegram")
	return cmd
}

func newRegimeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "regime",
		Short: "Classify the benchmark and print the market regime",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*cfgPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			snap := a.screener.CurrentRegime(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), notifier.PlainText(notifier.FormatRegime(snap)))
			return nil
		},
	}
}

func startMetricsServer(addr string, a *app) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", a.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics endpoint listening")
	return srv
}
