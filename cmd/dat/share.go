package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	dat "github.com/dep2p/go-dat"
)

type shareOptions struct {
	Add     []string
	Timeout time.Duration
}

func newShareCommand(opts *rootOptions) *cobra.Command {
	so := &shareOptions{}
	cmd := &cobra.Command{
		Use:   "share [dir]",
		Short: "Join the network and share an archive",
		Long: `Open (or create) the archive in dir, optionally import files into it,
then join the network and serve it until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShare(cmd, opts, so, opts.dirArg(args, 0))
		},
	}
	cmd.Flags().StringSliceVar(&so.Add, "add", nil, "files to import before sharing")
	cmd.Flags().DurationVar(&so.Timeout, "timeout", 0, "stop sharing after this long (0 = until interrupted)")
	return cmd
}

func runShare(cmd *cobra.Command, opts *rootOptions, so *shareOptions, dir string) (err error) {
	ctx := cmd.Context()
	node, err := dat.Open(ctx, dir, opts.nodeOptions()...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, node.Close()) }()

	for _, path := range so.Add {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := node.WriteFile(filepath.Base(path), data); err != nil {
			return fmt.Errorf("import %s: %w", path, err)
		}
	}

	network, err := node.JoinNetwork(ctx)
	if err != nil {
		return err
	}
	sub, err := network.Subscribe()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sharing %s\n", node.Key().Link())
	fmt.Fprintf(out, "Version %d, writable %t, listening on %v\n", node.Version(), node.Writable(), network.ListenAddrs())

	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for evt := range sub.Out() {
			switch e := evt.(type) {
			case dat.EvtPeerConnected:
				fmt.Fprintf(out, "Peer connected: %s (%d connected)\n", e.Peer.ShortString(), e.ConnectedCount)
			case dat.EvtPeerDisconnected:
				fmt.Fprintf(out, "Peer disconnected: %s (%d connected)\n", e.Peer.ShortString(), e.ConnectedCount)
			}
		}
	}()

	if so.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, so.Timeout)
		defer cancel()
	}
	<-ctx.Done()

	_ = sub.Close()
	<-printed
	fmt.Fprintf(out, "Stopped sharing: %s\n", node.Stats())
	return nil
}
