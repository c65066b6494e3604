package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ceyewan/shardsql/connector"
	"github.com/ceyewan/shardsql/query"
	"github.com/ceyewan/shardsql/xerrors"
)

// 可编译的语句种类
var compileKinds = []string{
	"select", "get", "has", "count", "avg", "max", "min", "sum",
	"insert", "update", "delete", "raw",
}

// CompileOptions compile 子命令参数，DSL 参数均为 JSON
type CompileOptions struct {
	*RootOptions
	Group   string
	Prefix  string
	Driver  string
	Join    string
	Columns string
	Where   string
	Data    string
	Params  string
}

type paramInfo struct {
	Name  string `json:"name"`
	Kind  string `json:"kind"`
	Value any    `json:"value"`
}

type compileResult struct {
	SQL          string      `json:"sql"`
	Params       []paramInfo `json:"params"`
	Interpolated string      `json:"interpolated"`
}

// NewCompileCommand 离线编译 DSL，不访问数据库
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <kind> <table|sql>",
		Short: "Compile the query DSL to SQL",
		Long: `Compile a statement without touching a database.

Kinds: ` + strings.Join(compileKinds, ", ") + `.
--join, --columns, --where, --data and --params take JSON; object key order is kept.
With --group the table name is mapped and prefixed through the configured topology.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().StringVarP(&opts.Group, "group", "g", "", "group used for table mapping and prefix")
	cmd.Flags().StringVar(&opts.Prefix, "prefix", "", "table prefix when no group is given")
	cmd.Flags().StringVar(&opts.Driver, "driver", connector.DriverMySQL, "driver used for quoting interpolated values")
	cmd.Flags().StringVar(&opts.Join, "join", "", "join map as JSON")
	cmd.Flags().StringVar(&opts.Columns, "columns", "", "column list as JSON, or a bare column name")
	cmd.Flags().StringVar(&opts.Where, "where", "", "where map as JSON")
	cmd.Flags().StringVar(&opts.Data, "data", "", "insert/update data as JSON")
	cmd.Flags().StringVar(&opts.Params, "params", "", "raw SQL parameters as JSON object")

	return cmd
}

func runCompile(cmd *cobra.Command, opts *CompileOptions, kind, target string) error {
	prefix, table := opts.Prefix, target
	if opts.Group != "" {
		logger, err := opts.logger(cmd)
		if err != nil {
			return err
		}
		topo, err := opts.loadTopology(cmd.Context(), logger)
		if err != nil {
			return err
		}
		g, err := topo.Group(opts.Group)
		if err != nil {
			return err
		}
		prefix = g.Prefix
		if kind != "raw" {
			if table, err = topo.TableName(opts.Group, target); err != nil {
				return err
			}
		}
	}

	st, err := compileStatement(query.New(query.WithPrefix(prefix)), opts, kind, table)
	if err != nil {
		return err
	}

	out := compileResult{
		SQL:          st.SQL,
		Params:       make([]paramInfo, 0, st.Params.Len()),
		Interpolated: query.Interpolate(st.SQL, st.Params, connector.Quoter(opts.Driver)),
	}
	for _, p := range st.Params.List() {
		out.Params = append(out.Params, paramInfo{Name: p.Name, Kind: p.Kind.String(), Value: p.DriverValue()})
	}

	return newPrinter(opts.RootOptions, cmd.OutOrStdout()).print(out, func(w io.Writer) {
		fmt.Fprintln(w, out.SQL)
		for _, p := range out.Params {
			fmt.Fprintf(w, "  %s (%s) = %v\n", p.Name, p.Kind, p.Value)
		}
		if len(out.Params) > 0 {
			fmt.Fprintln(w, out.Interpolated)
		}
	})
}

func compileStatement(c *query.Compiler, opts *CompileOptions, kind, table string) (*query.Statement, error) {
	join, err := decodeFlag("join", opts.Join, false)
	if err != nil {
		return nil, err
	}
	columns, err := decodeFlag("columns", opts.Columns, true)
	if err != nil {
		return nil, err
	}
	where, err := decodeFlag("where", opts.Where, false)
	if err != nil {
		return nil, err
	}
	data, err := decodeFlag("data", opts.Data, false)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "select":
		return c.PrepareSelect(table, selectArgs(join, columns, where)...), nil
	case "get":
		return c.PrepareGet(table, selectArgs(join, columns, where)...), nil
	case "has":
		if join != nil {
			return c.PrepareHas(table, join, where), nil
		}
		return c.PrepareHas(table, where), nil
	case "count", "avg", "max", "min", "sum":
		return c.PrepareAggregate(strings.ToUpper(kind), table, selectArgs(join, columns, where)...), nil
	case "insert":
		return c.CompileInsert(table, data)
	case "update":
		return c.CompileUpdate(table, data, where)
	case "delete":
		return c.CompileDelete(table, where), nil
	case "raw":
		params, err := decodeParams(opts.Params)
		if err != nil {
			return nil, err
		}
		return c.CompileRaw(query.Raw(table, params)), nil
	}
	return nil, xerrors.Mark(xerrors.ErrInvalidArgument,
		fmt.Errorf("unknown kind %q: must be one of %v", kind, compileKinds))
}

// selectArgs 按 (join?, columns?, where?) 的位置约定排列参数
func selectArgs(join, columns, where any) []any {
	switch {
	case join != nil:
		return []any{join, columns, where}
	case where != nil:
		return []any{columns, where}
	case columns != nil:
		return []any{columns}
	}
	return nil
}

// decodeFlag 空值为 nil；bare 为真时非 JSON 文本按原样作为字符串
func decodeFlag(name, s string, bare bool) (any, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := query.DecodeJSON([]byte(s))
	if err != nil {
		if bare {
			return s, nil
		}
		return nil, xerrors.Mark(xerrors.ErrInvalidArgument, xerrors.Wrapf(err, "decode --%s", name))
	}
	return v, nil
}

func decodeParams(s string) (map[string]any, error) {
	v, err := decodeFlag("params", s, false)
	if err != nil || v == nil {
		return nil, err
	}
	m, ok := query.AsMap(v)
	if !ok {
		return nil, xerrors.Mark(xerrors.ErrInvalidArgument, fmt.Errorf("--params must be a JSON object"))
	}
	out := make(map[string]any, len(m))
	for _, p := range m {
		out[p.Key] = p.Value
	}
	return out, nil
}
