package testkit

import (
	"context"
	"sync"

	"github.com/ceyewan/shardsql/metrics"
)

// Meter 在内存中累加指标值，供测试断言
//
// 计数器与仪表累加数值，直方图累加样本数。
type Meter struct {
	mu     sync.Mutex
	values map[string]float64
	labels map[string][]metrics.Label
}

var _ metrics.Meter = (*Meter)(nil)

// NewMeter 返回一个记录型 meter
func NewMeter() *Meter {
	return &Meter{
		values: make(map[string]float64),
		labels: make(map[string][]metrics.Label),
	}
}

// Value 返回指标累计值
func (m *Meter) Value(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.values[name]
}

// LastLabels 返回指标最近一次记录的标签
func (m *Meter) LastLabels(name string) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.labels[name]))
	for _, l := range m.labels[name] {
		out[l.Key] = l.Value
	}
	return out
}

func (m *Meter) add(name string, v float64, labels []metrics.Label) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name] += v
	m.labels[name] = append([]metrics.Label(nil), labels...)
}

func (m *Meter) Counter(name string, _ string, _ ...metrics.MetricOption) (metrics.Counter, error) {
	return instrument{m: m, name: name}, nil
}

func (m *Meter) Gauge(name string, _ string, _ ...metrics.MetricOption) (metrics.Gauge, error) {
	return instrument{m: m, name: name}, nil
}

func (m *Meter) Histogram(name string, _ string, _ ...metrics.MetricOption) (metrics.Histogram, error) {
	return instrument{m: m, name: name, samples: true}, nil
}

func (m *Meter) Shutdown(context.Context) error { return nil }

type instrument struct {
	m       *Meter
	name    string
	samples bool
}

func (i instrument) Inc(_ context.Context, labels ...metrics.Label) { i.m.add(i.name, 1, labels) }
func (i instrument) Dec(_ context.Context, labels ...metrics.Label) { i.m.add(i.name, -1, labels) }

func (i instrument) Add(_ context.Context, v float64, labels ...metrics.Label) {
	i.m.add(i.name, v, labels)
}

func (i instrument) Set(_ context.Context, v float64, labels ...metrics.Label) {
	i.m.mu.Lock()
	defer i.m.mu.Unlock()
	i.m.values[i.name] = v
	i.m.labels[i.name] = append([]metrics.Label(nil), labels...)
}

func (i instrument) Record(_ context.Context, v float64, labels ...metrics.Label) {
	if i.samples {
		v = 1
	}
	i.m.add(i.name, v, labels)
}
