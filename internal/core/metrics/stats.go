package metrics

import "fmt"

// Stats 流量快照
//
// TotalIn/TotalOut 为累计字节数，RateIn/RateOut 为最近 60 秒的平均字节/秒。
type Stats struct {
	TotalIn  int64
	TotalOut int64
	RateIn   float64
	RateOut  float64
}

// String 返回便于终端展示的摘要
func (s Stats) String() string {
	return fmt.Sprintf("in=%dB (%.1fB/s) out=%dB (%.1fB/s)", s.TotalIn, s.RateIn, s.TotalOut, s.RateOut)
}
