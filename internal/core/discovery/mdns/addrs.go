package mdns

import (
	"net"
	"strconv"
	"strings"
)

// virtualInterfacePrefixes 虚拟网卡前缀，其地址跨机通常不可达
var virtualInterfacePrefixes = []string{
	"utun", "tun", "tap", "ppp", "ipsec", "wg",
	"docker", "br-", "veth", "virbr", "vmnet", "vboxnet",
	"zt", "tailscale",
}

func isVirtualInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// nonRoutableCIDRs VPN、CGNAT 与文档网段
var nonRoutableCIDRs = func() []*net.IPNet {
	var out []*net.IPNet
	for _, cidr := range []string{"198.18.0.0/15", "198.51.100.0/24", "203.0.113.0/24", "100.64.0.0/10"} {
		if _, n, err := net.ParseCIDR(cidr); err == nil {
			out = append(out, n)
		}
	}
	return out
}()

func isNonRoutableIP(ip net.IP) bool {
	for _, n := range nonRoutableCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// isLANIP 判断是否为局域网可达地址
func isLANIP(ip net.IP) bool {
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return false
	}
	if isNonRoutableIP(ip) {
		return false
	}
	return ip.IsPrivate() || ip.IsLinkLocalUnicast()
}

// filterDialableAddrs 保留 host:port 形式且主机为局域网 IP 的地址
func filterDialableAddrs(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		host, portStr, err := net.SplitHostPort(s)
		if err != nil {
			continue
		}
		if p, err := strconv.Atoi(portStr); err != nil || p <= 0 || p > 65535 {
			continue
		}
		if ip := net.ParseIP(host); ip == nil || !isLANIP(ip) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// inferPort 从地址列表中取第一个有效端口
func inferPort(addrs []string) int {
	for _, s := range addrs {
		_, portStr, err := net.SplitHostPort(strings.TrimSpace(s))
		if err != nil {
			continue
		}
		if p, err := strconv.Atoi(portStr); err == nil && p > 0 && p <= 65535 {
			return p
		}
	}
	return 0
}

func dedupeStrings(in []string) []string {
	if len(in) <= 1 {
		return in
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
