// Package cli 实现 shardsql 命令行：查看分组、解析分片、离线编译语句。
//
//	shardsql groups -c shardsql --config-path ./config
//	shardsql resolve user 10086 --writer
//	shardsql compile select user --columns '["id","name"]' --where '{"age[>]":18}'
package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/config"
	"github.com/ceyewan/shardsql/topology"
)

// RootOptions 全局参数
type RootOptions struct {
	ConfigName  string
	ConfigPaths []string
	Key         string
	Format      string // text|json
	Verbose     bool
}

// ValidFormats 支持的输出格式
var ValidFormats = []string{"text", "json"}

// NewRootCommand 创建 shardsql 根命令
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "shardsql",
		Short:         "shardsql - sharded SQL routing and compilation",
		Long:          "Inspect shard topologies, resolve shard keys to servers and compile the query DSL to SQL.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigName, "config", "c", "shardsql", "config file name without extension")
	cmd.PersistentFlags().StringSliceVar(&opts.ConfigPaths, "config-path", []string{".", "./config"}, "config search paths")
	cmd.PersistentFlags().StringVar(&opts.Key, "key", "database", "config key holding the group map")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewGroupsCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))

	return cmd
}

// logger 日志写到 stderr，避免破坏 JSON 输出
func (o *RootOptions) logger(cmd *cobra.Command) (clog.Logger, error) {
	level := "warn"
	if o.Verbose {
		level = "debug"
	}
	return clog.New(&clog.Config{Level: level, Format: "console", Output: "buffer"},
		clog.WithWriter(cmd.ErrOrStderr()),
		clog.WithNamespace("shardsql"))
}

// loadTopology 从配置文件读取分组映射
func (o *RootOptions) loadTopology(ctx context.Context, logger clog.Logger) (*topology.Topology, error) {
	loader, err := config.New(&config.Config{
		Name:  o.ConfigName,
		Paths: o.ConfigPaths,
	}, config.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, err
	}
	return topology.FromLoader(loader, o.Key)
}
