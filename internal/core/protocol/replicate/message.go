package replicate

import (
	"bufio"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
	"google.golang.org/protobuf/encoding/protowire"
)

// MaxMessageSize 单条消息上限
const MaxMessageSize = 16 << 20

// MessageType 消息类型
type MessageType uint64

const (
	// TypeStatus 长度通告
	TypeStatus MessageType = iota + 1
	// TypeRequest 条目请求
	TypeRequest
	// TypeData 条目数据
	TypeData
)

// String 返回类型名
func (t MessageType) String() string {
	switch t {
	case TypeStatus:
		return "status"
	case TypeRequest:
		return "request"
	case TypeData:
		return "data"
	default:
		return fmt.Sprintf("unknown(%d)", uint64(t))
	}
}

// Message 协议消息
//
// 各类型只使用部分字段：Status 使用 Length/Writable，
// Request 使用 Seq，Data 使用 Seq/Entry/Content。
type Message struct {
	Type     MessageType
	Length   uint64
	Writable bool
	Seq      uint64
	Entry    []byte
	Content  []byte
}

const (
	fieldType     protowire.Number = 1
	fieldLength   protowire.Number = 2
	fieldWritable protowire.Number = 3
	fieldSeq      protowire.Number = 4
	fieldEntry    protowire.Number = 5
	fieldContent  protowire.Number = 6
)

// Marshal 编码消息
func (m *Message) Marshal() []byte {
	b := protowire.AppendTag(nil, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Type))
	if m.Length != 0 {
		b = protowire.AppendTag(b, fieldLength, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Length)
	}
	if m.Writable {
		b = protowire.AppendTag(b, fieldWritable, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(true))
	}
	if m.Seq != 0 {
		b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
		b = protowire.AppendVarint(b, m.Seq)
	}
	if len(m.Entry) > 0 {
		b = protowire.AppendTag(b, fieldEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Entry)
	}
	if m.Content != nil {
		b = protowire.AppendTag(b, fieldContent, protowire.BytesType)
		b = protowire.AppendBytes(b, m.Content)
	}
	return b
}

// Unmarshal 解码消息，未知字段被跳过
func Unmarshal(b []byte) (*Message, error) {
	m := &Message{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && num <= fieldSeq:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
			}
			b = b[n:]
			switch num {
			case fieldType:
				m.Type = MessageType(v)
			case fieldLength:
				m.Length = v
			case fieldWritable:
				m.Writable = protowire.DecodeBool(v)
			case fieldSeq:
				m.Seq = v
			}
		case typ == protowire.BytesType && (num == fieldEntry || num == fieldContent):
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
			}
			b = b[n:]
			if num == fieldEntry {
				m.Entry = append([]byte(nil), v...)
			} else {
				m.Content = append([]byte{}, v...)
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	switch m.Type {
	case TypeStatus, TypeRequest, TypeData:
	default:
		return nil, fmt.Errorf("%w: type %s", ErrMalformedMessage, m.Type)
	}
	return m, nil
}

// WriteMessage 写入一帧
func WriteMessage(w io.Writer, m *Message) error {
	payload := m.Marshal()
	if len(payload) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	buf := make([]byte, 0, varint.UvarintSize(uint64(len(payload)))+len(payload))
	buf = append(buf, varint.ToUvarint(uint64(len(payload)))...)
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}

// ReadMessage 读取一帧
func ReadMessage(r *bufio.Reader) (*Message, error) {
	size, err := varint.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if size > MaxMessageSize {
		return nil, ErrMessageTooLarge
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return Unmarshal(payload)
}
