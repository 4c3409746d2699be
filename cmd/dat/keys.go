package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	dat "github.com/dep2p/go-dat"
)

func newKeysCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys [dir]",
		Short: "Print the keys and files of an existing archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			dir := opts.dirArg(args, 0)
			exists, err := dat.Exists(dir)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("no archive in %s", dir)
			}

			node, err := dat.Open(cmd.Context(), dir, opts.nodeOptions()...)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, node.Close()) }()

			files, err := node.Files()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:          %s\n", node.Key())
			fmt.Fprintf(out, "Discovery:    %s\n", node.DiscoveryKey())
			fmt.Fprintf(out, "Writable:     %t\n", node.Writable())
			fmt.Fprintf(out, "Version:      %d\n", node.Version())
			for _, f := range files {
				fmt.Fprintf(out, "  %-32s %8d bytes  (seq %d)\n", f.Name, f.Size, f.Seq)
			}
			return nil
		},
	}
}
