package metrics

// Config 指标配置
//
//	metrics:
//	  enabled: true
//	  service_name: "shardsql"
//	  version: "v0.1.0"
//	  port: 9090
//	  path: "/metrics"
type Config struct {
	// Enabled 为 false 时 New 返回 noop Meter
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
	Version     string `mapstructure:"version"`
	// Port 大于 0 时启动 Prometheus HTTP 服务
	Port int    `mapstructure:"port"`
	Path string `mapstructure:"path"`
}

// NewDevDefaultConfig 开发环境默认配置：启用指标但不暴露 HTTP 端口
func NewDevDefaultConfig(serviceName string) *Config {
	return &Config{
		Enabled:     true,
		ServiceName: serviceName,
		Version:     "dev",
		Path:        "/metrics",
	}
}

func (c *Config) setDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "shardsql"
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
}
