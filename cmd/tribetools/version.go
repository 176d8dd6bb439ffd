package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tmoody1973/tribe-ai/toolset"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s tools %s\n", toolset.AgentName, toolset.Version)
		},
	}
}
