// Package main 提供常驻的 GossipSub 中继节点
//
// 中继节点订阅聊天主题并参与 GossipSub 网状网络，帮助聊天客户端相互发现
// 和转发消息。客户端把它的地址作为引导节点即可。
//
// 使用方法:
//
//	relay-server -port 4001 -metrics 127.0.0.1:9091
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-p2pchat/internal/core/codec"
	"github.com/dep2p/go-p2pchat/internal/core/metrics"
	"github.com/dep2p/go-p2pchat/internal/network/libp2pnet"
	"github.com/dep2p/go-p2pchat/internal/util/logger"
	"github.com/dep2p/go-p2pchat/pkg/interfaces"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

var log = logger.Logger("cmd/relay")

func main() {
	if err := run(); err != nil {
		fmt.Printf("❌ 错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	port := flag.Int("port", 4001, "监听端口（TCP 和 QUIC）")
	topic := flag.String("topic", types.DefaultTopic.String(), "中继的聊天主题")
	metricsAddr := flag.String("metrics", "", "Prometheus 指标监听地址")
	statsInterval := flag.Duration("stats-interval", 30*time.Second, "统计报告间隔")
	flag.Parse()

	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║            p2pchat Relay Server                      ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")
	fmt.Println()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(reg, nil)
	if err != nil {
		return err
	}

	c, err := libp2pnet.New().Create(ctx, interfaces.BootstrapConfig{
		ListenAddrs: []string{
			fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", *port),
			fmt.Sprintf("/ip4/0.0.0.0/udp/%d/quic-v1", *port),
		},
	})
	if err != nil {
		return fmt.Errorf("启动中继节点失败: %w", err)
	}
	conn := c.(*libp2pnet.Conn)
	defer func() { _ = conn.Close() }()

	// 订阅主题以加入网状网络；消息只做统计
	obs := &countingObserver{metrics: collector}
	if err := conn.AddObserver(obs, *topic); err != nil {
		return fmt.Errorf("订阅主题失败: %w", err)
	}
	collector.SetState(types.StateReady)

	printServerInfo(conn, *topic)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reportStats(gctx, conn, collector, *statsInterval)
		return nil
	})

	if *metricsAddr != "" {
		srv := &http.Server{
			Addr:              *metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()

	fmt.Println("\n正在关闭中继节点...")
	return err
}

// countingObserver 解码入站消息并计数
type countingObserver struct {
	metrics *metrics.Collector
}

func (o *countingObserver) OnMessage(topic string, data []byte) {
	payload, err := codec.Decode(data)
	if err != nil {
		o.metrics.ObserveDecodeError(codec.ReasonOf(err).String(), len(data))
		log.Debug("无法解码的消息", "topic", topic, "err", err)
		return
	}
	o.metrics.ObserveReceived(payload.Kind(), len(data))
}

// printServerInfo 打印服务器信息
func printServerInfo(conn *libp2pnet.Conn, topic string) {
	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║                    服务器信息                         ║")
	fmt.Println("╠══════════════════════════════════════════════════════╣")
	fmt.Printf("║ 节点 ID: %s\n", conn.ID())
	fmt.Printf("║ 主题: %s\n", topic)
	fmt.Println("╚══════════════════════════════════════════════════════╝")
	fmt.Println()

	fmt.Println("客户端可以使用以下地址作为引导节点:")
	for _, addr := range conn.Addrs() {
		fmt.Printf("  %s\n", addr)
	}
	fmt.Println()
	fmt.Println("按 Ctrl+C 停止服务器")
}

// reportStats 定期报告统计信息
func reportStats(ctx context.Context, conn *libp2pnet.Conn, collector *metrics.Collector, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Printf("[Stats] 连接节点: %d, 流量: %s\n", conn.PeerCount(), collector.Traffic())
		}
	}
}
