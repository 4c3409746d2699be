package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	dat "github.com/dep2p/go-dat"
)

// clonePollInterval 检查同步进度的间隔
const clonePollInterval = 100 * time.Millisecond

type cloneOptions struct {
	Timeout time.Duration
}

func newCloneCommand(opts *rootOptions) *cobra.Command {
	co := &cloneOptions{}
	cmd := &cobra.Command{
		Use:   "clone <key> [dir]",
		Short: "Clone an archive from the network",
		Long: `Open a read-only mirror of the archive identified by key in dir,
join the network and wait until it has caught up with a writer.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClone(cmd, opts, co, args[0], opts.dirArg(args, 1))
		},
	}
	cmd.Flags().DurationVar(&co.Timeout, "timeout", 0, "give up after this long (0 = until interrupted)")
	return cmd
}

func runClone(cmd *cobra.Command, opts *rootOptions, co *cloneOptions, key, dir string) (err error) {
	ctx := cmd.Context()
	node, err := dat.Open(ctx, dir, opts.nodeOptions(dat.WithKeyString(key))...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, node.Close()) }()

	network, err := node.JoinNetwork(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cloning %s into %s\n", node.Key().Link(), node.Path())

	if co.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, co.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(clonePollInterval)
	defer ticker.Stop()
	for !caughtUp(node, network) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("clone incomplete at version %d: %w", node.Version(), ctx.Err())
		case <-ticker.C:
		}
	}

	files, err := node.Files()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Cloned version %d (%d files)\n", node.Version(), len(files))
	for _, f := range files {
		fmt.Fprintf(out, "  %s\n", f.Name)
	}
	return nil
}

// caughtUp 已从某个可写节点收到其全部条目
func caughtUp(node *dat.Node, network *dat.Network) bool {
	version := node.Version()
	for _, c := range network.Connections() {
		r := c.Replication
		if r.RemoteWritable && r.RemoteLength > 0 && version >= r.RemoteLength {
			return true
		}
	}
	return false
}
