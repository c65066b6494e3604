package trace

// Config 链路追踪配置，对应配置文件中的 trace 段
//
//	trace:
//	  enabled: true
//	  endpoint: otel-collector:4317
//	  sampler: 0.1
type Config struct {
	// Enabled 为 false 时只安装本地 Provider，不导出 Span
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Sampler     float64 `mapstructure:"sampler"`
	// Batcher 取值 batch 或 simple
	Batcher  string `mapstructure:"batcher"`
	Insecure bool   `mapstructure:"insecure"`
}

// DefaultConfig 导出到本机 collector，全量采样
func DefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Endpoint:    "localhost:4317",
		Sampler:     1.0,
		Batcher:     "batch",
		Insecure:    true,
	}
}

func (c *Config) setDefaults(serviceName string) {
	if c.ServiceName == "" {
		c.ServiceName = serviceName
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.Batcher == "" {
		c.Batcher = "batch"
	}
}
