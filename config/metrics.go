package config

import (
	"errors"
	"strings"
)

// MetricsConfig Prometheus 指标配置
type MetricsConfig struct {
	// Enable 暴露 /metrics 端点
	Enable bool `json:"enable"`

	// Addr 指标 HTTP 服务监听地址
	Addr string `json:"addr"`

	// Path 指标路径
	Path string `json:"path"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enable: false,
		Addr:   "127.0.0.1:9090",
		Path:   "/metrics",
	}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if !c.Enable {
		return nil
	}
	if c.Addr == "" {
		return errors.New("metrics: addr must not be empty")
	}
	if !strings.HasPrefix(c.Path, "/") {
		return errors.New("metrics: path must start with /")
	}
	return nil
}
