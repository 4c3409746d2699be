package metrics

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats 传输量快照
//
// 由 Totals 返回时 Peers 为仍有统计的对端数；ForPeer 返回的快照中 Peers 为 0。
type Stats struct {
	TotalIn  int64
	TotalOut int64
	RateIn   float64 // 字节/秒
	RateOut  float64 // 字节/秒
	Peers    int
}

// String 形如 "received 1.5 KiB, sent 300 B"
func (s Stats) String() string {
	return fmt.Sprintf("received %s, sent %s",
		humanize.IBytes(uint64(max(s.TotalIn, 0))),
		humanize.IBytes(uint64(max(s.TotalOut, 0))))
}
