package main

import (
	"fmt"

	"github.com/spf13/cobra"

	dat "github.com/dep2p/go-dat"
)

func newCreateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create [dir]",
		Short: "Create a new writable archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := opts.dirArg(args, 0)
			node, err := dat.Open(cmd.Context(), dir, opts.nodeOptions(dat.WithErrorIfExists(true))...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Created archive in %s\n", node.Path())
			fmt.Fprintf(out, "Link: %s\n", node.Key().Link())
			return node.Close()
		},
	}
}
