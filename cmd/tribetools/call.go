package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"github.com/tmoody1973/tribe-ai/callbacks"
	"github.com/tmoody1973/tribe-ai/chatmodel"
)

func newCallCmd(flags *globalFlags) *cobra.Command {
	var (
		corridorID string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "call <tool> [json|-]",
		Short: "Call a tool with JSON arguments",
		Long: `Calls a tool and prints the JSON result.
Arguments default to {}; use - to read them from stdin.
The command fails when the result is a failure.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "{}"
			if len(args) == 2 {
				input = args[1]
			}
			if input == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return errors.WithStack(err)
				}
				input = string(b)
			}

			set, err := flags.toolset()
			if err != nil {
				return err
			}
			defer set.Close()

			if verbose {
				set.WithCallback(callbacks.NewPrinter(cmd.ErrOrStderr(), callbacks.ModeVerbose))
			}

			ctx := cmd.Context()
			if corridorID != "" {
				ctx = chatmodel.WithUserContext(ctx, &chatmodel.UserContext{CorridorID: corridorID})
			}

			out, err := set.Call(ctx, args[0], strings.TrimSpace(input))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)

			if gjson.Get(out, "error").Bool() {
				return errors.Newf("%s: %s", gjson.Get(out, "kind").String(), gjson.Get(out, "message").String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&corridorID, "corridor", "", "Corridor ID of the session")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Trace the call on stderr")
	return cmd
}
