// Package cli provides the command-line interface for the trading application.
package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"bracket-trader/internal/broker"
	"bracket-trader/internal/config"
	"bracket-trader/internal/logging"
	"bracket-trader/internal/models"
	"bracket-trader/internal/store"
	"bracket-trader/internal/symbols"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies. Heavyweight dependencies are built
// lazily so read-only commands work without broker credentials.
type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Store    store.OrderStore
	Gateway  broker.Gateway
	Resolver *symbols.Resolver
}

// OpenStore initializes the SQLite order store if needed.
func (a *App) OpenStore() (store.OrderStore, error) {
	if a.Store != nil {
		return a.Store, nil
	}
	s, err := store.NewSQLiteStore(a.Config.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening order store: %w", err)
	}
	a.Store = s
	a.Logger.Debug().Str("path", a.Config.Storage.DBPath).Msg("Order store opened")
	return s, nil
}

// OpenGateway initializes the broker gateway if needed. Paper mode gets the
// in-memory simulator; live mode requires Zerodha credentials.
func (a *App) OpenGateway() (broker.Gateway, error) {
	if a.Gateway != nil {
		return a.Gateway, nil
	}
	if a.Config.Trading.Paper {
		a.Gateway = broker.NewSimGateway()
		a.Logger.Info().Msg("Paper mode: simulated gateway in use")
		return a.Gateway, nil
	}
	creds := a.Config.Credentials.Zerodha
	if creds.APIKey == "" || creds.AccessToken == "" {
		return nil, fmt.Errorf("zerodha credentials missing: set api_key and access_token in credentials.yaml")
	}
	a.Gateway = broker.NewZerodhaGateway(broker.ZerodhaConfig{
		APIKey:      creds.APIKey,
		AccessToken: creds.AccessToken,
	})
	a.Logger.Debug().Msg("Zerodha gateway initialized")
	return a.Gateway, nil
}

// OpenResolver loads the instrument dictionary if needed.
func (a *App) OpenResolver() (*symbols.Resolver, error) {
	if a.Resolver != nil {
		return a.Resolver, nil
	}
	r, err := symbols.NewResolver(a.Config.Trading.InstrumentsCSV)
	if err != nil {
		return nil, err
	}
	a.Resolver = r
	a.Logger.Debug().Int("instruments", r.Len()).Msg("Instrument dictionary loaded")
	return r, nil
}

// Exchange returns the configured default exchange.
func (a *App) Exchange() models.Exchange {
	return models.Exchange(a.Config.Trading.DefaultExchange)
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "Bracket Trader - scheduled bracket-order placement and reconciliation",
		Long: `Bracket Trader places entry + stop-loss bracket orders at a scheduled
market time and continuously reconciles local order state against the broker.

Intents are entered ahead of time (CLI or HTTP API), executed once per trading
day inside the configured trigger window, and tracked until the position exits.

Use 'trader help <command>' for more information about a command.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if debug, _ := cmd.Flags().GetBool("debug"); debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			if dryRun, _ := cmd.Flags().GetBool("dry-run"); dryRun {
				app.Config.Trading.DryRun = true
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/bracket-trader)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().Bool("dry-run", false, "validate and log actions without contacting the broker")

	addOrderCommands(rootCmd, app)
	addRunCommand(rootCmd, app)
	addStatusCommand(rootCmd, app)
	addResolveCommand(rootCmd, app)

	return rootCmd
}
