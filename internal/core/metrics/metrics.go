package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/dep2p/go-dat/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// Namespace 指标命名空间
const Namespace = "dat"

// Metrics 节点指标集合
//
// 所有方法对 nil 接收者安全，未启用指标时调用方无需判断。
type Metrics struct {
	bandwidth *BandwidthCounter

	peersConnected prometheus.Gauge
	sessionsActive prometheus.Gauge
	connections    *prometheus.CounterVec
	archiveEntries prometheus.GaugeFunc
	bytesIn        prometheus.CounterFunc
	bytesOut       prometheus.CounterFunc
}

// New 创建指标集合
//
// entries 返回当前归档长度，为 nil 时 dat_archive_entries 恒为 0。
func New(clk clock.Clock, entries func() uint64) *Metrics {
	if entries == nil {
		entries = func() uint64 { return 0 }
	}
	bwc := NewBandwidthCounter(clk)

	return &Metrics{
		bandwidth: bwc,
		peersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "peers_connected",
			Help:      "Number of live peer connections.",
		}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "sessions_active",
			Help:      "Number of joined network sessions.",
		}),
		connections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_total",
			Help:      "Peer connections established, by direction.",
		}, []string{"direction"}),
		archiveEntries: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "archive_entries",
			Help:      "Length of the local archive log.",
		}, func() float64 { return float64(entries()) }),
		bytesIn: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_received_total",
			Help:      "Bytes received from peers.",
		}, func() float64 { return float64(bwc.Totals().TotalIn) }),
		bytesOut: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "bytes_sent_total",
			Help:      "Bytes sent to peers.",
		}, func() float64 { return float64(bwc.Totals().TotalOut) }),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.peersConnected,
		m.sessionsActive,
		m.connections,
		m.archiveEntries,
		m.bytesIn,
		m.bytesOut,
	}
}

// Register 在 reg 上注册全部指标
//
// 任一注册失败时撤销已注册的部分。
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil || reg == nil {
		return nil
	}
	var done []prometheus.Collector
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			for _, d := range done {
				reg.Unregister(d)
			}
			return err
		}
		done = append(done, c)
	}
	logger.Debug("指标已注册", "collectors", len(done))
	return nil
}

// Unregister 从 reg 上注销全部指标
func (m *Metrics) Unregister(reg prometheus.Registerer) error {
	if m == nil || reg == nil {
		return nil
	}
	var err error
	for _, c := range m.collectors() {
		if !reg.Unregister(c) {
			err = multierr.Append(err, errNotRegistered)
		}
	}
	return err
}

// Bandwidth 返回带宽计数器
func (m *Metrics) Bandwidth() *BandwidthCounter {
	if m == nil {
		return nil
	}
	return m.bandwidth
}

// PeerConnected 记录连接建立
func (m *Metrics) PeerConnected(inbound bool) {
	if m == nil {
		return
	}
	m.peersConnected.Inc()
	m.connections.WithLabelValues(direction(inbound)).Inc()
}

// PeerDisconnected 记录连接断开
func (m *Metrics) PeerDisconnected() {
	if m == nil {
		return
	}
	m.peersConnected.Dec()
}

// SessionOpened 记录加入网络
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionClosed 记录离开网络
func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func direction(inbound bool) string {
	if inbound {
		return "inbound"
	}
	return "outbound"
}
