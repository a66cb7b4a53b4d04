package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"bracket-trader/internal/api"
	"bracket-trader/internal/notify"
	"bracket-trader/internal/stream"
	"bracket-trader/internal/trading"
	"bracket-trader/pkg/utils"
)

// addRunCommand adds the long-running daemon command.
func addRunCommand(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the trading daemon (scheduler, reconciler, API)",
		Long: `Run the long-lived trading process. It hosts the intake API, fires the
entry executor once per trading day inside the configured window, and
reconciles local order state against the broker until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(app)
		},
	}
	rootCmd.AddCommand(cmd)
}

func runDaemon(app *App) error {
	cfg := app.Config
	logger := app.Logger

	s, err := app.OpenStore()
	if err != nil {
		return err
	}
	defer s.Close()

	g, err := app.OpenGateway()
	if err != nil {
		return err
	}

	resolver, err := app.OpenResolver()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := stream.NewHub()
	hub.Start(ctx)
	defer hub.Stop()

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if url := cfg.Credentials.Webhook.URL; url != "" {
		notifier = notify.NewMulti(notify.NewLogNotifier(logger), notify.NewWebhookNotifier(url))
		logger.Info().Msg("Webhook alerting enabled")
	}

	executor := trading.NewExecutor(g, s, hub, notifier, logger, trading.ExecutorConfig{
		DryRun:         cfg.Trading.DryRun,
		StopLossOffset: cfg.Trading.StopLossOffset,
		Exchange:       app.Exchange(),
		Product:        cfg.Trading.DefaultProduct,
		FillPoll:       time.Duration(cfg.Schedule.FillPollSeconds) * time.Second,
		FillTimeout:    time.Duration(cfg.Schedule.FillTimeoutSecs) * time.Second,
	})

	target, window := cfg.EntryWindow()
	guard := trading.NewGuard(s, g, executor, logger, trading.GuardConfig{
		TargetHour:   target.Hour,
		TargetMinute: target.Minute,
		TargetSecond: target.Second,
		Window:       window,
		DryRun:       cfg.Trading.DryRun,
	})

	reconciler := trading.NewReconciler(s, g, hub, logger)
	loop := trading.NewLoop(guard, reconciler, logger,
		time.Duration(cfg.Schedule.TickSeconds)*time.Second,
		time.Duration(cfg.Schedule.ReconcileSeconds)*time.Second)

	actions := trading.NewActions(s, g, hub, logger, app.Exchange(), cfg.Trading.DefaultProduct)
	server := api.NewServer(cfg.Server.ListenAddr, s, g, actions, resolver, hub, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		_ = loop.Run(ctx)
	}()

	logger.Info().
		Bool("dry_run", cfg.Trading.DryRun).
		Bool("paper", cfg.Trading.Paper).
		Str("entry_time", cfg.Schedule.EntryTime).
		Time("next_entry_window", loop.NextEntryWindow(utils.NowIST())).
		Msg("Trading daemon started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case received := <-sig:
		logger.Info().Str("signal", received.String()).Msg("Shutting down")
	case err := <-serverErr:
		if err != nil {
			logger.Error().Err(err).Msg("API server failed")
			cancel()
			<-loopDone
			return err
		}
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("API server shutdown incomplete")
	}

	select {
	case <-loopDone:
	case <-shutdownCtx.Done():
		logger.Warn().Msg("Orchestration loop did not stop in time")
	}

	logger.Info().Msg("Trading daemon stopped")
	return nil
}
