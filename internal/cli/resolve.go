package cli

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ceyewan/shardsql/clog"
	"github.com/ceyewan/shardsql/metrics"
	"github.com/ceyewan/shardsql/router"
	"github.com/ceyewan/shardsql/topology"
)

// ResolveOptions resolve 子命令参数
type ResolveOptions struct {
	*RootOptions
	Writer  bool
	Ping    bool
	Timeout time.Duration
}

type resolveResult struct {
	Group       string `json:"group"`
	ShardIndex  int    `json:"shard_index"`
	ServerIndex int    `json:"server_index"`
	Role        string `json:"role"`
	Endpoint    string `json:"endpoint"`
	Database    string `json:"database"`
	Ping        string `json:"ping,omitempty"`
}

// NewResolveCommand 把分片键解析为服务器与库名
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <group> [shard-key]",
		Short: "Resolve a shard key to its server and database",
		Long: `Resolve a shard key to the shard index, server endpoint and database name.

Numeric keys select shards directly; other keys are hashed with CRC-32.
With --ping a connection is opened through the router and health checked.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var shardKey any
			if len(args) > 1 {
				shardKey = args[1]
			}
			return runResolve(cmd, opts, args[0], shardKey)
		},
	}

	cmd.Flags().BoolVarP(&opts.Writer, "writer", "w", false, "resolve against the writer pool")
	cmd.Flags().BoolVar(&opts.Ping, "ping", false, "open a connection and health check it")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "ping timeout")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, group string, shardKey any) error {
	logger, err := opts.logger(cmd)
	if err != nil {
		return err
	}
	topo, err := opts.loadTopology(cmd.Context(), logger)
	if err != nil {
		return err
	}
	res, err := topo.Resolve(group, shardKey, opts.Writer)
	if err != nil {
		return err
	}
	out := describeResolution(res)

	if opts.Ping {
		ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
		defer cancel()
		if err := ping(ctx, logger, topo, group, shardKey, opts.Writer); err != nil {
			return err
		}
		out.Ping = "ok"
	}

	return newPrinter(opts.RootOptions, cmd.OutOrStdout()).print(out, func(w io.Writer) {
		fmt.Fprintf(w, "group:    %s\n", out.Group)
		fmt.Fprintf(w, "shard:    %d\n", out.ShardIndex)
		fmt.Fprintf(w, "server:   %d (%s, %s)\n", out.ServerIndex, out.Endpoint, out.Role)
		fmt.Fprintf(w, "database: %s\n", out.Database)
		if out.Ping != "" {
			fmt.Fprintf(w, "ping:     %s\n", out.Ping)
		}
	})
}

func ping(ctx context.Context, logger clog.Logger, topo *topology.Topology, group string, shardKey any, writer bool) error {
	r, err := router.New(topo, router.WithLogger(logger))
	if err != nil {
		return err
	}
	defer r.Close()

	conn, _, err := r.Resolve(ctx, group, shardKey, writer)
	if err != nil {
		return err
	}
	return conn.HealthCheck(ctx)
}

func describeResolution(res topology.Resolution) resolveResult {
	return resolveResult{
		Group:       res.Group,
		ShardIndex:  res.ShardIndex,
		ServerIndex: res.ServerIndex,
		Role:        metrics.Role(res.Writer),
		Endpoint:    net.JoinHostPort(res.Endpoint.Host, strconv.Itoa(res.Endpoint.Port)),
		Database:    res.DatabaseName,
	}
}
