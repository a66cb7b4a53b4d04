package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"bracket-trader/pkg/utils"
)

// addStatusCommand adds the connectivity and schedule status command.
func addStatusCommand(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show broker connectivity and today's entry state",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			g, err := app.OpenGateway()
			if err != nil {
				return err
			}
			s, err := app.OpenStore()
			if err != nil {
				return err
			}

			now := utils.NowIST()
			day := utils.TradingDay(now)
			entryDone, err := s.EntryRunDone(ctx, day)
			if err != nil {
				return err
			}

			pending, err := s.ListPending(ctx)
			if err != nil {
				return err
			}

			info, connErr := g.CheckConnectivity(ctx)

			if output.IsJSON() {
				payload := map[string]interface{}{
					"time_ist":       now.Format(time.RFC3339),
					"trading_day":    utils.IsTradingDay(now),
					"market_open":    utils.IsMarketOpen(now),
					"entry_done":     entryDone,
					"pending":        len(pending),
					"connected":      connErr == nil,
					"entry_time":     app.Config.Schedule.EntryTime,
					"window_seconds": app.Config.Schedule.WindowSeconds,
				}
				if connErr != nil {
					payload["error"] = connErr.Error()
				} else {
					payload["account_id"] = info.AccountID
					payload["available_cash"] = info.AvailableCash
					payload["open_positions"] = info.OpenPositions
				}
				return output.JSON(payload)
			}

			output.Printf("Time (IST):     %s\n", now.Format("2006-01-02 15:04:05"))
			output.Printf("Trading day:    %v\n", utils.IsTradingDay(now))
			output.Printf("Market open:    %v\n", utils.IsMarketOpen(now))
			output.Printf("Entry window:   %s +/- %ds\n", app.Config.Schedule.EntryTime, app.Config.Schedule.WindowSeconds)
			if entryDone {
				output.Printf("Entry run:      %sdone%s\n", ColorGreen, ColorReset)
			} else {
				output.Printf("Entry run:      %snot yet%s\n", ColorYellow, ColorReset)
			}
			output.Printf("Pending:        %d\n", len(pending))

			if connErr != nil {
				output.Error("Broker:         unreachable (%v)", connErr)
				return connErr
			}
			output.Success("Broker:         connected")
			output.Printf("  Account:        %s\n", info.AccountID)
			output.Printf("  Available cash: %.2f\n", info.AvailableCash)
			output.Printf("  Open positions: %d\n", info.OpenPositions)

			if len(pending) > 0 {
				output.Println()
				output.Info("Queued for next entry run:")
				for _, in := range pending {
					output.Printf("  %d %s x%d trigger=%.2f sl=%.2f\n",
						in.ID, in.Instrument, in.Quantity, in.TriggerPrice, in.StopLoss)
				}
			}
			return nil
		},
	}
	rootCmd.AddCommand(cmd)
}
