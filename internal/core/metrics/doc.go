// Package metrics 提供会话层监控指标
//
// Collector 把会话层的计数导出为 Prometheus 指标：
//
//	p2pchat_published_total{kind}        发布的载荷数
//	p2pchat_received_total{kind}         解码成功的入站载荷数
//	p2pchat_decode_errors_total{reason}  解码失败数
//	p2pchat_dispatched_total             处理器调用次数
//	p2pchat_connection_state             当前连接状态（0=none … 3=ready）
//	p2pchat_bytes_total{direction}       收发字节数
//
// 同时维护最近 60 秒的收发速率（RateMeter），供命令行 /stats 展示。
//
// Collector 的所有方法对 nil 接收者安全，未启用指标时组件可直接传 nil。
package metrics
