package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kingrea/lab-assistant/internal/inventory"
)

func ratioCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "ratio <total> <x>",
		Short:   "Split a total volume into a 1+x dilution",
		Example: "  labassistant ratio 500 4   # DD-X 1+4 for a 500 ml tank",
		Args:    cobra.ExactArgs(2),
		// Pure arithmetic; no config or database needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			total, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("total %q: %w", args[0], err)
			}
			x, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("ratio %q: %w", args[1], err)
			}
			stock, diluent, err := inventory.SplitRatio(total, x)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), keyValues("",
				kv("Stock", strconv.FormatFloat(stock, 'f', 2, 64)),
				kv("Water", strconv.FormatFloat(diluent, 'f', 2, 64)),
				kv("Total", strconv.FormatFloat(total, 'f', 2, 64)),
			))
			return nil
		},
	}
}
