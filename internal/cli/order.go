// Package cli provides the command-line interface for the trading application.
package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bracket-trader/internal/models"
	"bracket-trader/internal/trading"
)

// addOrderCommands adds the intent management commands.
func addOrderCommands(rootCmd *cobra.Command, app *App) {
	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "Manage bracket order intents",
	}
	orderCmd.AddCommand(newOrderAddCmd(app))
	orderCmd.AddCommand(newOrderListCmd(app))
	orderCmd.AddCommand(newOrderShowCmd(app))
	orderCmd.AddCommand(newOrderCancelCmd(app))
	orderCmd.AddCommand(newOrderExitCmd(app))
	rootCmd.AddCommand(orderCmd)
}

func newOrderAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <symbol> <quantity>",
		Short: "Create a new PENDING bracket intent",
		Long: `Create a new bracket intent for the next scheduled entry run.

The symbol is resolved to a broker instrument identifier using the local
instrument dictionary. Nothing is sent to the broker until the entry window.`,
		Example: `  trader order add RELIANCE 10 --trigger 2850 --limit 2852 --sl 2820
  trader order add INFY 25 --trigger 1500.5 --limit 1501 --sl 1480`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			symbol := strings.ToUpper(args[0])
			qty, err := strconv.Atoi(args[1])
			if err != nil || qty <= 0 {
				output.Error("Invalid quantity: %s", args[1])
				return fmt.Errorf("invalid quantity")
			}

			trigger, _ := cmd.Flags().GetFloat64("trigger")
			limit, _ := cmd.Flags().GetFloat64("limit")
			sl, _ := cmd.Flags().GetFloat64("sl")

			resolver, err := app.OpenResolver()
			if err != nil {
				return err
			}
			instrument, err := resolver.Resolve(symbol)
			if err != nil {
				output.Error("Unknown symbol: %s", symbol)
				return err
			}

			s, err := app.OpenStore()
			if err != nil {
				return err
			}
			intent := &models.Intent{
				Instrument:   instrument,
				Quantity:     qty,
				TriggerPrice: trigger,
				LimitPrice:   limit,
				StopLoss:     sl,
			}
			id, err := s.CreateIntent(ctx, intent)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				created, _ := s.GetIntent(ctx, id)
				return output.JSON(created)
			}
			output.Success("Intent %d created: %s x%d trigger=%.2f limit=%.2f sl=%.2f",
				id, symbol, qty, trigger, limit, sl)
			return nil
		},
	}

	cmd.Flags().Float64("trigger", 0, "entry trigger price (required)")
	cmd.Flags().Float64("limit", 0, "entry limit price (required)")
	cmd.Flags().Float64("sl", 0, "stop-loss trigger price (required)")
	_ = cmd.MarkFlagRequired("trigger")
	_ = cmd.MarkFlagRequired("limit")
	_ = cmd.MarkFlagRequired("sl")
	return cmd
}

func newOrderListCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List intents, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			s, err := app.OpenStore()
			if err != nil {
				return err
			}

			pendingOnly, _ := cmd.Flags().GetBool("pending")
			var intents []models.Intent
			if pendingOnly {
				intents, err = s.ListPending(ctx)
			} else {
				intents, err = s.ListIntents(ctx)
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(intents)
			}
			if len(intents) == 0 {
				output.Info("No intents")
				return nil
			}
			output.Printf("%-5s %-24s %6s %10s %10s %10s %-10s %s\n",
				"ID", "INSTRUMENT", "QTY", "TRIGGER", "LIMIT", "SL", "STATUS", "ORDERS")
			for _, in := range intents {
				orders := ""
				if in.EntryOrderID != "" {
					orders = in.EntryOrderID + "/" + in.SLOrderID
				}
				output.Printf("%-5d %-24s %6d %10.2f %10.2f %10.2f %s%-10s%s %s\n",
					in.ID, in.Instrument, in.Quantity, in.TriggerPrice, in.LimitPrice, in.StopLoss,
					StatusColor(string(in.Status)), in.Status, ColorReset, orders)
			}
			return nil
		},
	}
	cmd.Flags().Bool("pending", false, "show only PENDING intents")
	return cmd
}

func newOrderShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id: %s", args[0])
			}

			s, err := app.OpenStore()
			if err != nil {
				return err
			}
			intent, err := s.GetIntent(ctx, id)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(intent)
			}
			output.Printf("Intent %d\n", intent.ID)
			output.Printf("  Instrument: %s\n", intent.Instrument)
			output.Printf("  Quantity:   %d\n", intent.Quantity)
			output.Printf("  Trigger:    %.2f\n", intent.TriggerPrice)
			output.Printf("  Limit:      %.2f\n", intent.LimitPrice)
			output.Printf("  Stop loss:  %.2f\n", intent.StopLoss)
			output.Printf("  Status:     %s%s%s\n", StatusColor(string(intent.Status)), intent.Status, ColorReset)
			if intent.EntryOrderID != "" {
				output.Printf("  Entry order: %s\n", intent.EntryOrderID)
				output.Printf("  SL order:    %s\n", intent.SLOrderID)
			}
			return nil
		},
	}
}

func newOrderCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a PENDING intent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			actions, id, err := app.openActions(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := actions.CancelIntent(ctx, id); err != nil {
				return err
			}
			output.Success("Intent %d cancelled", id)
			return nil
		},
	}
}

func newOrderExitCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "exit <id>",
		Short: "Force-exit an EXECUTED intent's position at market",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			actions, id, err := app.openActions(args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := actions.ForceExit(ctx, id); err != nil {
				return err
			}
			output.Success("Intent %d force-exited", id)
			return nil
		},
	}
}

// openActions builds the operator action surface for cancel/exit commands.
func (a *App) openActions(idArg string) (*trading.Actions, int64, error) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid id: %s", idArg)
	}
	s, err := a.OpenStore()
	if err != nil {
		return nil, 0, err
	}
	g, err := a.OpenGateway()
	if err != nil {
		return nil, 0, err
	}
	actions := trading.NewActions(s, g, nil, a.Logger, a.Exchange(), a.Config.Trading.DefaultProduct)
	return actions, id, nil
}
