package metrics

const (
	// 查询指标的标准标签
	LabelOperation = "op"
	LabelGroup     = "group"
	LabelRole      = "role"
	LabelOutcome   = "outcome"
	LabelTable     = "table"

	// 熔断器指标标签
	LabelEndpoint = "endpoint"
	LabelState    = "state"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"

	// OutcomeDryRun 调试模式下只打印 SQL，不访问数据库
	OutcomeDryRun = "dry_run"
)

const (
	// 查询指标名称
	MetricQueriesTotal  = "shardsql_queries_total"
	MetricQueryDuration = "shardsql_query_duration_seconds"

	// 熔断器状态变更次数
	MetricBreakerTransitions = "shardsql_breaker_transitions_total"

	// router 当前缓存的连接数
	MetricOpenConnections = "shardsql_open_connections"
)

// Outcome 将错误映射为 outcome 标签值
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// Role 将读写角色映射为 role 标签值
func Role(writer bool) string {
	if writer {
		return "writer"
	}
	return "reader"
}
