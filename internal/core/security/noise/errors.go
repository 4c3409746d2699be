package noise

import "errors"

var (
	// ErrInvalidHandshake 握手失败
	ErrInvalidHandshake = errors.New("noise: invalid handshake")

	// ErrPeerIDMismatch PeerID 不匹配
	ErrPeerIDMismatch = errors.New("noise: peer ID mismatch")

	// ErrCapabilityMismatch 远端无法证明持有相同的归档密钥
	ErrCapabilityMismatch = errors.New("noise: archive capability proof mismatch")
)
