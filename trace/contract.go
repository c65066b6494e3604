package trace

const (
	// 数据库语义属性键
	AttrDBSystem    = "db.system"
	AttrDBName      = "db.name"
	AttrDBOperation = "db.operation"
	AttrDBTable     = "db.sql.table"
	AttrDBStatement = "db.statement"

	// 分片路由属性键
	AttrShardGroup    = "shardsql.group"
	AttrShardIndex    = "shardsql.shard_index"
	AttrShardRole     = "shardsql.role"
	AttrShardEndpoint = "shardsql.endpoint"
)

// InstrumentationName 默认 Tracer 名称
const InstrumentationName = "github.com/ceyewan/shardsql"

// SpanNameQuery 返回一次表操作的标准 Span Name，例如 "shardsql.select user"
func SpanNameQuery(operation, table string) string {
	if table == "" {
		return "shardsql." + operation
	}
	return "shardsql." + operation + " " + table
}
