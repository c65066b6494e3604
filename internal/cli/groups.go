package cli

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ceyewan/shardsql/topology"
)

type groupInfo struct {
	Name        string   `json:"name"`
	ShardsType  string   `json:"shards_type"`
	ShardsCount int      `json:"shards_count"`
	Prefix      string   `json:"prefix,omitempty"`
	Writers     []string `json:"writers"`
	Readers     []string `json:"readers"`
}

// NewGroupsCommand 列出配置中的全部分组
func NewGroupsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "groups",
		Short: "List configured shard groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := rootOpts.logger(cmd)
			if err != nil {
				return err
			}
			topo, err := rootOpts.loadTopology(cmd.Context(), logger)
			if err != nil {
				return err
			}
			infos, err := describeGroups(topo)
			if err != nil {
				return err
			}
			return newPrinter(rootOpts, cmd.OutOrStdout()).print(infos, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "GROUP\tTYPE\tSHARDS\tPREFIX\tWRITERS\tREADERS")
				for _, g := range infos {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n", g.Name, g.ShardsType, g.ShardsCount, g.Prefix,
						strings.Join(g.Writers, ","), strings.Join(g.Readers, ","))
				}
				_ = tw.Flush()
			})
		},
	}
}

func describeGroups(topo *topology.Topology) ([]groupInfo, error) {
	names := topo.GroupNames()
	infos := make([]groupInfo, 0, len(names))
	for _, name := range names {
		g, err := topo.Group(name)
		if err != nil {
			return nil, err
		}
		infos = append(infos, groupInfo{
			Name:        g.Name,
			ShardsType:  string(g.ShardsType),
			ShardsCount: g.ShardsCount,
			Prefix:      g.Prefix,
			Writers:     endpoints(g.Writers),
			Readers:     endpoints(g.Readers),
		})
	}
	return infos, nil
}

func endpoints(p topology.ServerPool) []string {
	out := make([]string, len(p.Endpoints))
	for i, e := range p.Endpoints {
		out[i] = net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	}
	return out
}
