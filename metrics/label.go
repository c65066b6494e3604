package metrics

// Label 指标标签
//
// 标签值应保持低基数，分片键等高基数值不要放进标签。
type Label struct {
	Key   string
	Value string
}

// L 便捷构造函数
//
//	counter.Inc(ctx, metrics.L("op", "select"), metrics.L("group", "user"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
