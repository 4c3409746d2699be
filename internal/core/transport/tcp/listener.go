package tcp

import (
	"net"
	"strconv"
)

// Listener TCP 监听器
type Listener struct {
	net.Listener
}

// Addrs 返回可公告的地址
//
// 监听在未指定地址（0.0.0.0 / ::）上时展开为本机所有接口地址。
func (l *Listener) Addrs() []string {
	tcpAddr, ok := l.Addr().(*net.TCPAddr)
	if !ok {
		return []string{l.Addr().String()}
	}
	if !tcpAddr.IP.IsUnspecified() {
		return []string{tcpAddr.String()}
	}

	port := strconv.Itoa(tcpAddr.Port)
	ifaceAddrs, err := net.InterfaceAddrs()
	if err != nil {
		return []string{net.JoinHostPort("127.0.0.1", port)}
	}

	var out []string
	for _, a := range ifaceAddrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLinkLocalUnicast() {
			continue
		}
		if tcpAddr.IP.To4() != nil && ipnet.IP.To4() == nil {
			continue
		}
		out = append(out, net.JoinHostPort(ipnet.IP.String(), port))
	}
	if len(out) == 0 {
		out = append(out, net.JoinHostPort("127.0.0.1", port))
	}
	return out
}

// Port 返回监听端口
func (l *Listener) Port() int {
	if tcpAddr, ok := l.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}
