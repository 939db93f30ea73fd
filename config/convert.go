package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// FromJSON 从 JSON 数据创建配置
//
// 先填充默认值，再用 JSON 覆盖；JSON 中未出现的字段保持默认。
//
// 示例 JSON:
//
//	{
//	  "network": {"kind": "libp2p", "bootstrap_peers": ["/ip4/1.2.3.4/tcp/4001/p2p/12D3Koo..."]},
//	  "session": {"username": "alice", "heartbeat_interval": "10s"}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromJSON(data)
}

// ToJSON 序列化配置（带缩进）
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
