package main

import (
	"fmt"

	"github.com/spf13/cobra"

	dat "github.com/dep2p/go-dat"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), dat.VersionInfo())
			return nil
		},
	}
}
