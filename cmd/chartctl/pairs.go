package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(pairsCmd)
}

var pairsCmd = &cobra.Command{
	Use:   "pairs",
	Short: "list the configured pairs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CODE\tSYMBOL\tPIP\tNAME")
		for _, p := range cfg.Pairs {
			fmt.Fprintf(w, "%s\t%s\t%g\t%s\n", p.Code, p.Symbol, p.Pip, p.Name)
		}
		return w.Flush()
	},
}
