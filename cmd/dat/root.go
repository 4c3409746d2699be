package main

import (
	"fmt"

	"github.com/spf13/cobra"

	dat "github.com/dep2p/go-dat"
	"github.com/dep2p/go-dat/config"
	"github.com/dep2p/go-dat/pkg/interfaces"
	"github.com/dep2p/go-dat/pkg/lib/log"
)

var logger = log.Logger("dat/cmd")

// rootOptions 所有子命令共享的选项
type rootOptions struct {
	ConfigFile string
	LogLevel   string

	// config 在 PersistentPreRunE 中加载
	config *config.Config

	// discovery 非 nil 时替代配置中的发现方式
	discovery interfaces.Discovery
}

func newRootOptions() *rootOptions {
	return &rootOptions{}
}

// newRootCommand 创建 dat 根命令
func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dat",
		Short:         "dat - peer-to-peer archives",
		Long:          "Create, share and clone directories identified by a public key.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "JSON config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error), overrides config")

	cmd.AddCommand(newCreateCommand(opts))
	cmd.AddCommand(newShareCommand(opts))
	cmd.AddCommand(newCloneCommand(opts))
	cmd.AddCommand(newKeysCommand(opts))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

// load 加载配置文件并设置日志级别
func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg := config.NewConfig()
	if o.ConfigFile != "" {
		loaded, err := config.LoadFile(o.ConfigFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	log.SetOutputWithLevel(cmd.ErrOrStderr(), level)

	o.config = cfg
	logger.Debug("配置已加载", "file", o.ConfigFile, "level", cfg.Log.Level)
	return nil
}

// nodeOptions 返回打开节点的公共选项
func (o *rootOptions) nodeOptions(extra ...dat.Option) []dat.Option {
	opts := []dat.Option{dat.WithConfig(o.config)}
	if o.discovery != nil {
		opts = append(opts, dat.WithDiscovery(o.discovery))
	}
	return append(opts, extra...)
}

// dirArg 返回目录参数，未给出时使用配置中的默认目录
func (o *rootOptions) dirArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return o.config.Storage.DataDir
}
