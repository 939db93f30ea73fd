// Package main 提供 p2pchat 命令行聊天客户端
//
// 使用方法:
//
//	p2pchat -username alice -bootstrap /ip4/1.2.3.4/tcp/4001/p2p/12D3KooW...
//	p2pchat -config p2pchat.json -bridge 127.0.0.1:8080 -metrics 127.0.0.1:9090
//
// 终端命令：
//
//	/who    在线用户
//	/stats  收发流量
//	/quit   退出
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	p2pchat "github.com/dep2p/go-p2pchat"
	"github.com/dep2p/go-p2pchat/config"
	"github.com/dep2p/go-p2pchat/internal/bridge/wsbridge"
	"github.com/dep2p/go-p2pchat/internal/util/logger"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

var log = logger.Logger("cmd/p2pchat")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：运行时覆盖（「这次运行」想怎么跑）
//   JSON 配置文件：持久化配置（「这个用户」的固定配置）
//
// 命令行参数优先于配置文件。
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "配置文件路径")
	username   = flag.String("username", "", "用户名（默认随机生成）")
	topic      = flag.String("topic", "", "聊天主题")
	network    = flag.String("network", "", "网络实现 (libp2p)")
	listen     = flag.String("listen", "", "监听地址，逗号分隔的 multiaddr")
	bootstrap  = flag.String("bootstrap", "", "引导节点，逗号分隔的 multiaddr（含 /p2p/ 节点 ID）")
	bridgeAddr = flag.String("bridge", "", "启用浏览器 WebSocket 桥并监听该地址")
	metricsAdr = flag.String("metrics", "", "启用 Prometheus 指标并监听该地址")
	logLevel   = flag.String("log-level", "", "日志级别，如 info 或 core/connmgr=debug,warn")
	logFormat  = flag.String("log-format", "", "日志格式 (text/json)")

	showVersion = flag.Bool("version", false, "显示版本信息")
)

// shutdownTimeout HTTP 服务关闭超时
const shutdownTimeout = 5 * time.Second

// errQuit 用户输入 /quit
var errQuit = errors.New("quit")

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Printf("p2pchat %s\n", p2pchat.Version)
		return nil
	}

	if *logLevel != "" || *logFormat != "" {
		logger.Configure(*logLevel, *logFormat)
	}

	cfg, err := buildConfig()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	// ═══════════════════════════════════════════════════════════════════
	// 会话
	// ═══════════════════════════════════════════════════════════════════
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := append(p2pchat.UserConfigFrom(cfg).ToOptions(), p2pchat.WithMetricsRegisterer(reg))
	sess, err := p2pchat.New(opts...)
	if err != nil {
		return fmt.Errorf("创建会话失败: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			log.Warn("关闭会话失败", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// ═══════════════════════════════════════════════════════════════════
	// 浏览器桥（可选）
	// ═══════════════════════════════════════════════════════════════════
	if cfg.Bridge.Enable {
		bridge, err := wsbridge.New(wsbridge.Config{
			Topic:             types.Topic(cfg.Session.Topic),
			Username:          cfg.Session.Username,
			MessagesPerSecond: cfg.Bridge.MessagesPerSecond,
			Burst:             cfg.Bridge.Burst,
		}, sess)
		if err != nil {
			return err
		}
		mux := http.NewServeMux()
		mux.Handle("/ws", bridge)
		serveHTTP(g, gctx, cfg.Bridge.Addr, mux, bridge.Close)
		fmt.Printf("浏览器桥: ws://%s/ws\n", cfg.Bridge.Addr)
	}

	// ═══════════════════════════════════════════════════════════════════
	// 指标（可选）
	// ═══════════════════════════════════════════════════════════════════
	if cfg.Metrics.Enable {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		serveHTTP(g, gctx, cfg.Metrics.Addr, mux, nil)
		fmt.Printf("指标: http://%s%s\n", cfg.Metrics.Addr, cfg.Metrics.Path)
	}

	// ═══════════════════════════════════════════════════════════════════
	// 终端聊天
	// ═══════════════════════════════════════════════════════════════════
	g.Go(func() error {
		return runChat(gctx, sess, cfg.Session)
	})

	err = g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		err = nil
	}
	fmt.Println("\n正在关闭...")
	return err
}

// buildConfig 加载配置文件并应用命令行覆盖
func buildConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		var err error
		cfg, err = config.LoadFile(*configFile)
		if err != nil {
			return nil, err
		}
	}

	applyFlags(cfg)

	if cfg.Session.Username == "" {
		cfg.Session.Username = randomUsername()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkCLIConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serveHTTP 在 errgroup 中运行 HTTP 服务，gctx 结束时优雅关闭
func serveHTTP(g *errgroup.Group, gctx context.Context, addr string, handler http.Handler, onShutdown func() error) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve %s: %w", addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if onShutdown != nil {
			_ = onShutdown()
		}
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}
