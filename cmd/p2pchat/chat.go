package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	p2pchat "github.com/dep2p/go-p2pchat"
	"github.com/dep2p/go-p2pchat/config"
	"github.com/dep2p/go-p2pchat/pkg/types"
)

// runChat 连接网络并运行终端聊天循环
func runChat(ctx context.Context, sess *p2pchat.Session, cfg config.SessionConfig) error {
	topic := types.Topic(cfg.Topic)

	status, err := sess.SubscribeStatus()
	if err != nil {
		return err
	}
	defer status.Close()
	go printStatus(ctx, status.Out())

	fmt.Printf("用户名: %s\n正在连接网络...\n", cfg.Username)
	if err := sess.Start(ctx); err != nil {
		return fmt.Errorf("连接失败: %w", err)
	}
	fmt.Printf("已就绪，节点 ID: %s\n", sess.ID())

	sub, err := sess.Observe(topic, func(_ types.Topic, payload types.Payload) {
		if msg, ok := payload.(types.ChatMessage); ok {
			printMessage(msg, false)
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	hb, err := sess.StartHeartbeat(ctx, topic, cfg.Username)
	if err != nil {
		return err
	}
	defer hb.Stop()

	fmt.Println("输入消息后回车发送；/who 在线用户，/stats 流量，/quit 退出")

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return errQuit
			}
			if err := handleLine(ctx, sess, topic, cfg.Username, line); err != nil {
				return err
			}
		}
	}
}

// handleLine 处理一行终端输入
func handleLine(ctx context.Context, sess *p2pchat.Session, topic types.Topic, username, line string) error {
	switch strings.TrimSpace(line) {
	case "":
		return nil
	case "/quit":
		return errQuit
	case "/stats":
		fmt.Printf("流量: %s\n", sess.Traffic())
		return nil
	case "/who":
		printPresence(sess.Presence())
		return nil
	}

	err := sess.SendMessage(ctx, topic, username, line)
	switch {
	case err == nil:
		// 本地回显：网络不会把自己的消息投递回来
		printMessage(types.ChatMessage{
			Username:        username,
			Text:            line,
			TimestampMillis: types.NowMillis(time.Now()),
		}, true)
	case errors.Is(err, p2pchat.ErrNotReady), errors.Is(err, p2pchat.ErrEmptyText):
		fmt.Printf("未发送: %v\n", err)
	default:
		log.Warn("发送失败", "err", err)
		fmt.Printf("发送失败: %v\n", err)
	}
	return nil
}

// readLines 逐行读取输入，EOF 时关闭通道
func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

func printStatus(ctx context.Context, events <-chan interface{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			evt, ok := e.(types.EvtStatusChanged)
			if !ok {
				continue
			}
			if evt.Err != nil {
				fmt.Printf("[状态] %s（失败: %v）\n", evt.New, evt.Err)
				continue
			}
			fmt.Printf("[状态] %s → %s\n", evt.Old, evt.New)
		}
	}
}

func printMessage(msg types.ChatMessage, self bool) {
	name := msg.Username
	if self {
		name += "（我）"
	}
	fmt.Printf("[%s] %s: %s\n", msg.Time().Format("15:04:05"), name, msg.Text)
}

func printPresence(list []types.PresenceUpdate) {
	if len(list) == 0 {
		fmt.Println("暂无在线用户")
		return
	}
	now := time.Now()
	for _, p := range list {
		fmt.Printf("  %-20s %s 前\n", p.Username, now.Sub(p.Time()).Truncate(time.Second))
	}
}
