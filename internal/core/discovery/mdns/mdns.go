// Package mdns 提供基于 mDNS 的局域网节点发现
//
// 每个通告对应一个 hashicorp/mdns 服务实例，TXT 记录携带 PeerID、
// 发现主题与可拨号地址。查询时按主题过滤。
package mdns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/dep2p/go-dat/pkg/interfaces"
	"github.com/dep2p/go-dat/pkg/lib/log"
	"github.com/dep2p/go-dat/pkg/types"
)

var logger = log.Logger("discovery/mdns")

// ErrPortUnknown 通告地址中没有可用端口
var ErrPortUnknown = errors.New("mdns port unknown")

// ErrClosed 发现器已关闭
var ErrClosed = errors.New("mdns discoverer closed")

// ============================================================================
//                              配置
// ============================================================================

// Config mDNS 发现器配置
type Config struct {
	// ServiceTag 服务标签
	ServiceTag string

	// Domain 域名
	Domain string

	// QueryTimeout 单次查询的等待时长
	QueryTimeout time.Duration

	// Interface 指定网络接口（空表示所有接口）
	Interface string

	// DisableIPv4 禁用 IPv4
	DisableIPv4 bool

	// DisableIPv6 禁用 IPv6
	DisableIPv6 bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		ServiceTag:   "_dat._tcp",
		Domain:       "local.",
		QueryTimeout: 2 * time.Second,
		DisableIPv6:  true,
	}
}

// ============================================================================
//                              Discoverer
// ============================================================================

type announceKey struct {
	topic types.DiscoveryKey
	peer  types.PeerID
}

// Discoverer mDNS 发现器
type Discoverer struct {
	config Config

	mu      sync.Mutex
	servers map[announceKey]*mdns.Server
	closed  bool
}

var _ interfaces.Discovery = (*Discoverer)(nil)

// New 创建 mDNS 发现器
func New(config Config) *Discoverer {
	def := DefaultConfig()
	if config.ServiceTag == "" {
		config.ServiceTag = def.ServiceTag
	}
	if config.Domain == "" {
		config.Domain = def.Domain
	}
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = def.QueryTimeout
	}
	return &Discoverer{
		config:  config,
		servers: make(map[announceKey]*mdns.Server),
	}
}

// Announce 启动一个 mDNS 服务实例通告本节点
func (d *Discoverer) Announce(_ context.Context, topic types.DiscoveryKey, self interfaces.PeerInfo) error {
	if self.ID.IsEmpty() {
		return types.ErrInvalidPeerID
	}

	port := inferPort(self.Addrs)
	if port == 0 {
		return ErrPortUnknown
	}

	ips := d.announceIPs(self.Addrs)
	if len(ips) == 0 {
		return fmt.Errorf("未找到本地 IP 地址")
	}

	addrs := filterDialableAddrs(self.Addrs)
	if len(addrs) == 0 {
		for _, ip := range ips {
			addrs = append(addrs, net.JoinHostPort(ip.String(), fmt.Sprint(port)))
		}
	}
	txt := buildTXTRecords(self.ID.String(), topic.String(), addrs)

	// hashicorp/mdns 会拼接为 <instance>.<service>.<domain>
	instance := fmt.Sprintf("dat-%s-%s", topic.ShortString(), self.ID.ShortString())

	service, err := mdns.NewMDNSService(instance, d.config.ServiceTag, d.config.Domain, "", port, ips, txt)
	if err != nil {
		return fmt.Errorf("创建 mDNS 服务失败: %w", err)
	}

	serverConfig := &mdns.Config{Zone: service}
	if d.config.Interface != "" {
		iface, err := net.InterfaceByName(d.config.Interface)
		if err != nil {
			logger.Warn("找不到指定接口", "interface", d.config.Interface, "err", err)
		} else {
			serverConfig.Iface = iface
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	key := announceKey{topic: topic, peer: self.ID}
	if old, ok := d.servers[key]; ok {
		_ = old.Shutdown()
		delete(d.servers, key)
	}

	server, err := mdns.NewServer(serverConfig)
	if err != nil {
		return fmt.Errorf("创建 mDNS 服务器失败: %w", err)
	}
	d.servers[key] = server

	logger.Info("mDNS 通告已启动",
		"instance", instance,
		"service", d.config.ServiceTag,
		"port", port,
		"addrs", addrs)
	return nil
}

// Unannounce 停止对应的服务实例
func (d *Discoverer) Unannounce(_ context.Context, topic types.DiscoveryKey, id types.PeerID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := announceKey{topic: topic, peer: id}
	server, ok := d.servers[key]
	if !ok {
		return nil
	}
	delete(d.servers, key)
	return server.Shutdown()
}

// FindPeers 执行一次 mDNS 查询，返回主题匹配的节点
//
// 查询时长取 QueryTimeout 与 ctx 剩余时间的较小值。
func (d *Discoverer) FindPeers(ctx context.Context, topic types.DiscoveryKey) ([]interfaces.PeerInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := d.config.QueryTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remain := time.Until(deadline); remain < timeout {
			timeout = remain
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	params := &mdns.QueryParam{
		Service:             d.config.ServiceTag,
		Domain:              d.config.Domain,
		Timeout:             timeout,
		Entries:             entries,
		DisableIPv4:         d.config.DisableIPv4,
		DisableIPv6:         d.config.DisableIPv6,
		WantUnicastResponse: true,
	}
	if d.config.Interface != "" {
		if iface, err := net.InterfaceByName(d.config.Interface); err == nil {
			params.Interface = iface
		}
	}

	want := topic.String()
	found := make(map[types.PeerID]interfaces.PeerInfo)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			info, entryTopic, ok := parseEntry(entry)
			if !ok || entryTopic != want {
				continue
			}
			if prev, exists := found[info.ID]; exists {
				info.Addrs = dedupeStrings(append(prev.Addrs, info.Addrs...))
			}
			found[info.ID] = info
		}
	}()

	err := mdns.Query(params)
	close(entries)
	<-done
	if err != nil {
		return nil, fmt.Errorf("mDNS 查询失败: %w", err)
	}

	out := make([]interfaces.PeerInfo, 0, len(found))
	for _, info := range found {
		out = append(out, info)
	}
	logger.Debug("mDNS 查询完成", "topic", topic.ShortString(), "peers", len(out))
	return out, nil
}

// Close 停止所有服务实例
func (d *Discoverer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var firstErr error
	for key, server := range d.servers {
		if err := server.Shutdown(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(d.servers, key)
	}
	logger.Info("mDNS 发现器已关闭")
	return firstErr
}

// announceIPs 优先使用通告地址中的局域网 IP，否则枚举本地网卡
func (d *Discoverer) announceIPs(addrs []string) []net.IP {
	var ips []net.IP
	for _, a := range filterDialableAddrs(addrs) {
		host, _, err := net.SplitHostPort(a)
		if err != nil {
			continue
		}
		if ip := net.ParseIP(host); ip != nil && d.ipAllowed(ip) {
			ips = append(ips, ip)
		}
	}
	if len(ips) > 0 {
		return ips
	}
	local, err := d.localIPs()
	if err != nil {
		logger.Debug("枚举本地 IP 失败", "err", err)
		return nil
	}
	return local
}

func (d *Discoverer) ipAllowed(ip net.IP) bool {
	isIPv4 := ip.To4() != nil
	if isIPv4 && d.config.DisableIPv4 {
		return false
	}
	if !isIPv4 && d.config.DisableIPv6 {
		return false
	}
	return true
}

// localIPs 获取本地局域网 IP
//
// 跳过回环、未启用与虚拟网卡，IPv4 排在前面。
func (d *Discoverer) localIPs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var v4, v6 []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if d.config.Interface != "" && iface.Name != d.config.Interface {
			continue
		}
		if isVirtualInterface(iface.Name) {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || !isLANIP(ipNet.IP) || !d.ipAllowed(ipNet.IP) {
				continue
			}
			if ipNet.IP.To4() != nil {
				v4 = append(v4, ipNet.IP)
			} else {
				v6 = append(v6, ipNet.IP)
			}
		}
	}
	return append(v4, v6...), nil
}

// ============================================================================
//                              TXT 记录
// ============================================================================

const (
	txtID    = "id="
	txtTopic = "topic="
	txtAddrs = "addrs="
)

// buildTXTRecords 构建满足 DNS TXT 单条 <=255 字节限制的记录
//
// 地址使用多个 "addrs=" 分片发布，消费端聚合。
func buildTXTRecords(peerID, topic string, addrs []string) []string {
	const maxLen = 255

	txt := []string{txtID + peerID, txtTopic + topic}
	cur := txtAddrs
	flush := func() {
		if cur != txtAddrs {
			txt = append(txt, cur)
		}
		cur = txtAddrs
	}

	for _, a := range addrs {
		if a == "" || len(txtAddrs)+len(a) > maxLen {
			continue
		}
		next := a
		if cur != txtAddrs {
			next = "," + a
		}
		if len(cur)+len(next) > maxLen {
			flush()
			next = a
		}
		cur += next
	}
	flush()
	return txt
}

// parseEntry 从服务条目解析节点信息与主题
func parseEntry(entry *mdns.ServiceEntry) (interfaces.PeerInfo, string, bool) {
	if entry == nil {
		return interfaces.PeerInfo{}, "", false
	}

	var (
		info  interfaces.PeerInfo
		topic string
		hasID bool
	)
	for _, field := range entry.InfoFields {
		switch {
		case strings.HasPrefix(field, txtID):
			id, err := types.ParsePeerID(strings.TrimPrefix(field, txtID))
			if err != nil {
				logger.Debug("解析 PeerID 失败", "field", field, "err", err)
				return interfaces.PeerInfo{}, "", false
			}
			info.ID = id
			hasID = true
		case strings.HasPrefix(field, txtTopic):
			topic = strings.TrimPrefix(field, txtTopic)
		case strings.HasPrefix(field, txtAddrs):
			if s := strings.TrimPrefix(field, txtAddrs); s != "" {
				info.Addrs = append(info.Addrs, filterDialableAddrs(strings.Split(s, ","))...)
			}
		}
	}

	// TXT 中无地址时回退到 A/AAAA 记录
	if len(info.Addrs) == 0 && entry.Port > 0 {
		if entry.AddrV4 != nil && isLANIP(entry.AddrV4) {
			info.Addrs = append(info.Addrs, net.JoinHostPort(entry.AddrV4.String(), fmt.Sprint(entry.Port)))
		}
		if entry.AddrV6 != nil && isLANIP(entry.AddrV6) {
			info.Addrs = append(info.Addrs, net.JoinHostPort(entry.AddrV6.String(), fmt.Sprint(entry.Port)))
		}
	}
	info.Addrs = dedupeStrings(info.Addrs)

	if !hasID || topic == "" || len(info.Addrs) == 0 {
		return interfaces.PeerInfo{}, "", false
	}
	return info, topic, true
}
