// Package config 提供 go-p2pchat 的配置模型
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，带默认值和 Validate
//   - 支持从 JSON 加载和保存配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Session.Username = "alice"
//
//	// 从 JSON 文件加载（未出现的字段保持默认值）
//	cfg, err := config.LoadFile("p2pchat.json")
package config

// Config 是 go-p2pchat 的完整配置结构
//
// 配置按照功能模块组织：
//   - Network: 底层 P2P 网络（实现选择、监听、引导节点）
//   - Session: 会话层（主题、用户名、心跳、在线表）
//   - Bridge: 浏览器 WebSocket 桥
//   - Metrics: Prometheus 指标端点
type Config struct {
	// Network 网络配置
	Network NetworkConfig `json:"network"`

	// Session 会话配置
	Session SessionConfig `json:"session"`

	// Bridge WebSocket 桥配置
	Bridge BridgeConfig `json:"bridge"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Network: DefaultNetworkConfig(),
		Session: DefaultSessionConfig(),
		Bridge:  DefaultBridgeConfig(),
		Metrics: DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置，返回第一个发现的错误。
func (c *Config) Validate() error {
	if err := c.Network.Validate(); err != nil {
		return err
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	if err := c.Bridge.Validate(); err != nil {
		return err
	}
	if err := c.Metrics.Validate(); err != nil {
		return err
	}
	return nil
}
