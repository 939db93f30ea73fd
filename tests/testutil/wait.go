package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dep2p/go-p2pchat/pkg/interfaces"
)

// WaitForCondition 等待条件满足或超时
//
// 参数：
//   - t: 测试对象
//   - timeout: 超时时间
//   - interval: 检查间隔
//   - condition: 条件函数，返回 true 表示条件满足
//
// 返回：条件是否满足（超时返回 false）
func WaitForCondition(t testing.TB, timeout time.Duration, interval time.Duration, condition func() bool) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 立即检查一次
	if condition() {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return condition()
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// WaitForConditionOrFail 等待条件满足，超时则 fail 测试
func WaitForConditionOrFail(t testing.TB, timeout time.Duration, interval time.Duration, condition func() bool, msg string) {
	t.Helper()

	if !WaitForCondition(t, timeout, interval, condition) {
		t.Fatalf("等待超时: %s", msg)
	}
}

// Eventually 在指定时间内重试条件检查，间隔 10ms
//
// 示例:
//
//	testutil.Eventually(t, time.Second, func() bool {
//	    return conn.ObserverCount(topic) == 0
//	}, "观察者应被移除")
func Eventually(t testing.TB, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	WaitForConditionOrFail(t, timeout, 10*time.Millisecond, condition, msg)
}

// Recv 从通道接收一个值，超时则 fail 测试
func Recv[T any](t testing.TB, ch <-chan T, timeout time.Duration) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(timeout):
		t.Fatalf("等待接收超时 (%s)", timeout)
		var zero T
		return zero
	}
}

// NoRecv 断言在 d 内通道上没有值
func NoRecv[T any](t testing.TB, ch <-chan T, d time.Duration) {
	t.Helper()

	select {
	case v := <-ch:
		t.Fatalf("不应收到值: %v", v)
	case <-time.After(d):
	}
}

// WaitForEvent 从事件订阅读取下一个事件，超时或订阅关闭则 fail 测试
func WaitForEvent(t testing.TB, sub interfaces.Subscription, timeout time.Duration) interface{} {
	t.Helper()

	select {
	case evt, ok := <-sub.Out():
		if !ok {
			t.Fatal("事件订阅已关闭")
		}
		return evt
	case <-time.After(timeout):
		t.Fatalf("等待事件超时 (%s)", timeout)
		return nil
	}
}
