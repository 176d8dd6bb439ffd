package main

import (
	"github.com/spf13/cobra"
	"github.com/tmoody1973/tribe-ai/pkg/mcpserver"
)

func newMCPCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			set, err := flags.toolset()
			if err != nil {
				return err
			}
			defer set.Close()

			srv, err := mcpserver.New(set)
			if err != nil {
				return err
			}
			return srv.ServeStdio()
		},
	}
}
