package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := flags.toolset()
			if err != nil {
				return err
			}
			defer set.Close()

			out := cmd.OutOrStdout()
			if asJSON {
				_, err = fmt.Fprintln(out, set.Descriptions())
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, name := range set.Names() {
				fmt.Fprintf(tw, "%s\t%s\n", name, firstLine(set.Get(name).Description()))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the descriptions as JSON")
	return cmd
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' || r == '.' {
			return s[:i]
		}
	}
	return s
}
