package connmgr

import (
	"fmt"
	"time"

	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// Config 连接管理配置
type Config struct {
	// Bootstrap 传给 Network.Create 的引导配置
	Bootstrap interfaces.BootstrapConfig

	// PeerWaitTimeout 等待远端节点确认的超时，0 表示不限
	PeerWaitTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Bootstrap:       interfaces.BootstrapConfig{Default: true},
		PeerWaitTimeout: 0,
	}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.PeerWaitTimeout < 0 {
		return fmt.Errorf("%w: negative peer wait timeout %s", ErrInvalidConfig, c.PeerWaitTimeout)
	}
	return nil
}
