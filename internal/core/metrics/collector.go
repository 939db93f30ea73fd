package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-p2pchat/pkg/types"
)

// Namespace 指标名前缀
const Namespace = "p2pchat"

// 字节方向标签
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Collector 会话层指标收集器
type Collector struct {
	published    *prometheus.CounterVec
	received     *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	dispatched   prometheus.Counter
	state        prometheus.Gauge
	bytes        *prometheus.CounterVec

	rateIn  *RateMeter
	rateOut *RateMeter
}

// NewCollector 创建收集器并注册到 reg
//
// reg 为 nil 时不注册（指标仍可通过 Collector 方法读取速率）。
func NewCollector(reg prometheus.Registerer, clk clock.Clock) (*Collector, error) {
	if clk == nil {
		clk = clock.New()
	}

	c := &Collector{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "published_total",
			Help:      "Payloads published by this session.",
		}, []string{"kind"}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "received_total",
			Help:      "Inbound payloads decoded successfully.",
		}, []string{"kind"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound payloads dropped because they failed to decode.",
		}, []string{"reason"}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dispatched_total",
			Help:      "Handler invocations performed by the topic registry.",
		}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connection_state",
			Help:      "Connection state: 0=none 1=starting 2=connecting 3=ready.",
		}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_total",
			Help:      "Payload bytes sent and received.",
		}, []string{"direction"}),
		rateIn:  NewRateMeter(clk),
		rateOut: NewRateMeter(clk),
	}

	if reg != nil {
		for _, col := range []prometheus.Collector{
			c.published, c.received, c.decodeErrors, c.dispatched, c.state, c.bytes,
		} {
			if err := reg.Register(col); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

// ObservePublished 记录一次发布
func (c *Collector) ObservePublished(kind types.PayloadKind, size int) {
	if c == nil {
		return
	}
	c.published.WithLabelValues(kind.String()).Inc()
	c.bytes.WithLabelValues(DirectionOut).Add(float64(size))
	c.rateOut.Add(int64(size))
}

// ObserveReceived 记录一条解码成功的入站载荷
func (c *Collector) ObserveReceived(kind types.PayloadKind, size int) {
	if c == nil {
		return
	}
	c.received.WithLabelValues(kind.String()).Inc()
	c.bytes.WithLabelValues(DirectionIn).Add(float64(size))
	c.rateIn.Add(int64(size))
}

// ObserveDecodeError 记录一次解码失败
func (c *Collector) ObserveDecodeError(reason string, size int) {
	if c == nil {
		return
	}
	c.decodeErrors.WithLabelValues(reason).Inc()
	c.bytes.WithLabelValues(DirectionIn).Add(float64(size))
	c.rateIn.Add(int64(size))
}

// ObserveDispatched 记录一次处理器调用
func (c *Collector) ObserveDispatched() {
	if c == nil {
		return
	}
	c.dispatched.Inc()
}

// SetState 更新连接状态
func (c *Collector) SetState(state types.ConnectionState) {
	if c == nil {
		return
	}
	c.state.Set(float64(state))
}

// Traffic 返回收发流量快照
func (c *Collector) Traffic() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		TotalIn:  c.rateIn.Total(),
		TotalOut: c.rateOut.Total(),
		RateIn:   c.rateIn.Rate(),
		RateOut:  c.rateOut.Rate(),
	}
}
