package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check-rubric [path]",
	Short: "Validate a rubric source and print a summary",
	Long: `Loads the rubric at path, or the configured one when no path is given,
and reports its dimensions, commands, logic gates and cycle order.
An empty rubric setting checks the embedded default.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			path = cfg.Rubric
		}
		cat, err := loadCatalog(path)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "rubric %s\n", cat.Version())
		for _, d := range cat.Dimensions() {
			ids := make([]string, 0, len(d.Bands))
			for _, b := range d.Bands {
				ids = append(ids, b.ID)
			}
			fmt.Fprintf(out, "  %-4s %-28s %s\n", d.ID, d.Name, strings.Join(ids, " "))
		}
		fmt.Fprintf(out, "commands: %d\n", len(cat.Commands()))
		gates := cat.LogicGates()
		fmt.Fprintf(out, "logic gates: %d\n", len(gates))
		for _, g := range gates {
			fmt.Fprintf(out, "  %-4s %s_%s = %s%d (%s)\n",
				g.TriggerBand, g.Rule.Operator, g.Rule.Dimension, g.Rule.Dimension, g.Rule.Limit, g.Priority)
		}
		if order := cat.CycleOrder(); len(order) > 0 {
			fmt.Fprintf(out, "cycle: %s\n", strings.Join(order, " -> "))
		}
		return nil
	},
}
