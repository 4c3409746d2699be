package replicate

import "errors"

var (
	// ErrMessageTooLarge 消息超过 MaxMessageSize
	ErrMessageTooLarge = errors.New("replicate: message too large")

	// ErrMalformedMessage 消息无法解码
	ErrMalformedMessage = errors.New("replicate: malformed message")

	// ErrUnexpectedMessage 消息与当前状态不符
	ErrUnexpectedMessage = errors.New("replicate: unexpected message")
)
