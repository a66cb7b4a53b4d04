package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// addResolveCommand adds the instrument lookup command.
func addResolveCommand(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "resolve <query>",
		Short: "Search the instrument dictionary",
		Example: `  trader resolve RELIANCE
  trader resolve INFY --limit 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			resolver, err := app.OpenResolver()
			if err != nil {
				return err
			}

			limit, _ := cmd.Flags().GetInt("limit")
			matches := resolver.Search(strings.ToUpper(args[0]), limit)

			if output.IsJSON() {
				return output.JSON(matches)
			}
			if len(matches) == 0 {
				output.Warn("No instruments match %q", args[0])
				return nil
			}
			output.Printf("%-20s %-15s %s\n", "SYMBOL", "ISIN", "INSTRUMENT KEY")
			for _, m := range matches {
				output.Printf("%-20s %-15s %s\n", m.TradingSymbol, m.ISIN, m.InstrumentKey)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 10, "maximum matches to show")
	rootCmd.AddCommand(cmd)
}
