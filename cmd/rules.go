package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newRulesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List registered passive rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(opts)
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tRISK\tCONFIDENCE\tCWE\tWASC\tTHRESHOLD")
			for _, st := range e.registry.All() {
				info := st.Rule.Info()
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%s\n",
					info.PluginID, info.Name, info.Risk, info.Confidence, info.CWEID, info.WASCID, st.Threshold)
			}
			return w.Flush()
		},
	}
}
