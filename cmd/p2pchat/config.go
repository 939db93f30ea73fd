package main

import (
	"errors"
	"flag"
	"strings"

	"github.com/google/uuid"

	"github.com/dep2p/go-p2pchat/config"
)

// applyFlags 把显式设置的命令行参数覆盖到配置上
func applyFlags(cfg *config.Config) {
	if isFlagSet("username") {
		cfg.Session.Username = *username
	}
	if isFlagSet("topic") {
		cfg.Session.Topic = *topic
	}
	if isFlagSet("network") {
		cfg.Network.Kind = *network
	}
	if isFlagSet("listen") {
		cfg.Network.ListenAddrs = splitList(*listen)
	}
	if isFlagSet("bootstrap") {
		cfg.Network.BootstrapPeers = splitList(*bootstrap)
	}
	if isFlagSet("bridge") {
		cfg.Bridge.Enable = *bridgeAddr != ""
		if *bridgeAddr != "" {
			cfg.Bridge.Addr = *bridgeAddr
		}
	}
	if isFlagSet("metrics") {
		cfg.Metrics.Enable = *metricsAdr != ""
		if *metricsAdr != "" {
			cfg.Metrics.Addr = *metricsAdr
		}
	}
}

// errMemoryNetwork 命令行客户端只运行一个会话，内存网络上不会有其他节点
var errMemoryNetwork = errors.New("memory 网络只连接同一进程内的会话，命令行客户端请使用 libp2p")

// checkCLIConfig 检查命令行客户端能否使用该配置
func checkCLIConfig(cfg *config.Config) error {
	if cfg.Network.Kind == config.NetworkMemory {
		return errMemoryNetwork
	}
	return nil
}

// isFlagSet 检查命令行参数是否被显式设置
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// splitList 拆分逗号分隔的列表，忽略空项
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// randomUsername 生成随机用户名
func randomUsername() string {
	return "user-" + uuid.NewString()[:8]
}
