package topology

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-viper/mapstructure/v2"

	"github.com/ceyewan/shardsql/xerrors"
)

// rawGroup 分组配置的声明式形状，字段名同时接受 snake_case 与 camelCase
type rawGroup struct {
	ShardsCount        int               `mapstructure:"shards_count"`
	ShardsType         string            `mapstructure:"shards_type"`
	DatabaseName       string            `mapstructure:"database_name"`
	DatabaseNameFormat string            `mapstructure:"database_name_format"`
	TableNameFormat    string            `mapstructure:"table_name_format"`
	Username           string            `mapstructure:"username"`
	Password           string            `mapstructure:"password"`
	Charset            string            `mapstructure:"charset"`
	Collation          string            `mapstructure:"collation"`
	Prefix             string            `mapstructure:"prefix"`
	Option             map[string]string `mapstructure:"option"`
	Servers            any               `mapstructure:"servers"`
}

type rawServer struct {
	Server string `mapstructure:"server"`
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	Range  []int  `mapstructure:"range"`
}

// Parse 将 group -> 配置 的声明式映射解析为 Topology
//
// 必填字段不做预校验：缺少 servers 的分组会得到空的服务器池，
// 在 Resolve 时才失败。
func Parse(raw map[string]any) (*Topology, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make(map[string]*GroupConfig, len(raw))
	for _, name := range names {
		g, err := parseGroup(name, raw[name])
		if err != nil {
			return nil, configError(xerrors.Wrapf(err, "group %q", name))
		}
		groups[name] = g
	}
	return &Topology{groups: groups, names: names}, nil
}

func newDecoder(out any) (*mapstructure.Decoder, error) {
	return mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

func decode(input, out any) error {
	dec, err := newDecoder(out)
	if err != nil {
		return err
	}
	if err := dec.Decode(input); err != nil {
		return xerrors.Mark(ErrInvalidConfig, err)
	}
	return nil
}

func parseGroup(name string, input any) (*GroupConfig, error) {
	var rg rawGroup
	if err := decode(input, &rg); err != nil {
		return nil, err
	}

	g := &GroupConfig{
		Name:               name,
		ShardsCount:        rg.ShardsCount,
		ShardsType:         ShardsType(strings.ToLower(rg.ShardsType)),
		DatabaseName:       rg.DatabaseName,
		DatabaseNameFormat: rg.DatabaseNameFormat,
		TableNameFormat:    rg.TableNameFormat,
		Username:           rg.Username,
		Password:           rg.Password,
		Charset:            rg.Charset,
		Collation:          rg.Collation,
		Prefix:             rg.Prefix,
		Options:            rg.Option,
	}
	if g.ShardsCount < 1 {
		g.ShardsCount = 1
	}
	if g.ShardsType == "" {
		g.ShardsType = ShardsRange
	}
	if g.ShardsType != ShardsRange && g.ShardsType != ShardsHash {
		return nil, xerrors.Wrapf(ErrInvalidConfig, "unknown shards_type %q", rg.ShardsType)
	}
	if g.DatabaseName == "" {
		g.DatabaseName = name
	}
	if g.Charset == "" {
		g.Charset = DefaultCharset
	}
	if g.Collation == "" {
		g.Collation = DefaultCollation
	}

	writers, readers, err := splitServers(rg.Servers)
	if err != nil {
		return nil, err
	}
	if g.Writers, err = buildServerPool(writers, g.ShardsType, g.ShardsCount); err != nil {
		return nil, err
	}
	g.Readers = g.Writers
	if present(readers) {
		if g.Readers, err = buildServerPool(readers, g.ShardsType, g.ShardsCount); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// splitServers 识别 servers 的三种形态：单个对象、列表、writers/readers
func splitServers(servers any) (writers, readers any, err error) {
	if servers == nil {
		return nil, nil, nil
	}
	m, ok := toStringMap(servers)
	if !ok {
		return servers, nil, nil
	}
	var hasWriters bool
	for k, v := range m {
		switch normalizeKey(k) {
		case "writers":
			writers, hasWriters = v, true
		case "readers":
			readers = v
		}
	}
	if !hasWriters {
		return servers, nil, nil
	}
	return writers, readers, nil
}

// present 判断 readers 是否为非空列表或单个服务器对象
func present(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	}
	return false
}

func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// buildServerPool 构建服务器池
//
// range 策略按声明顺序写入 groupServers，重叠部分后者覆盖前者；
// hash 策略在 shardsCount > 1 时按取模覆盖，否则只有 0 号分片映射到 0 号服务器。
func buildServerPool(input any, shardsType ShardsType, shardsCount int) (ServerPool, error) {
	pool := ServerPool{GroupServers: make(map[int]int)}
	if input == nil {
		return pool, nil
	}

	var servers []rawServer
	if m, ok := toStringMap(input); ok {
		var one rawServer
		if err := decode(m, &one); err != nil {
			return pool, err
		}
		servers = []rawServer{one}
	} else if err := decode(input, &servers); err != nil {
		return pool, err
	}

	for k, s := range servers {
		ep := ServerEndpoint{Host: s.Server, Port: s.Port, Range: [2]int{0, 0}}
		if ep.Host == "" {
			ep.Host = s.Host
		}
		if ep.Port == 0 {
			ep.Port = DefaultPort
		}
		if len(s.Range) >= 2 {
			ep.Range = [2]int{s.Range[0], s.Range[1]}
		}
		pool.Endpoints = append(pool.Endpoints, ep)

		if shardsType == ShardsRange {
			for i := ep.Range[0]; i <= ep.Range[1]; i++ {
				pool.GroupServers[i] = k
			}
		}
	}

	serverCount := len(pool.Endpoints)
	if shardsType == ShardsHash && serverCount > 0 {
		if shardsCount > 1 {
			for i := 0; i < shardsCount; i++ {
				pool.GroupServers[i] = i % serverCount
			}
		} else {
			pool.GroupServers[0] = 0
		}
	}
	return pool, nil
}
