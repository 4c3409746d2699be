package archive

import (
	"encoding/hex"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
	"lukechampine.com/blake3"
)

// Hash 内容块的 BLAKE3-256 哈希
type Hash [32]byte

// String 返回十六进制表示
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashContent 计算内容哈希
func HashContent(data []byte) Hash {
	return Hash(blake3.Sum256(data))
}

// Entry 日志条目
type Entry struct {
	Seq       uint64
	Name      string
	Hash      Hash
	Size      uint64
	Signature []byte
}

// 条目字段编号
const (
	fieldSeq       protowire.Number = 1
	fieldName      protowire.Number = 2
	fieldHash      protowire.Number = 3
	fieldSize      protowire.Number = 4
	fieldSignature protowire.Number = 5
)

// SigningBytes 返回被签名的字节（不含签名字段）
func (e *Entry) SigningBytes() []byte {
	return e.appendUnsigned(nil)
}

func (e *Entry) appendUnsigned(b []byte) []byte {
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Seq)
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, e.Name)
	b = protowire.AppendTag(b, fieldHash, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Hash[:])
	b = protowire.AppendTag(b, fieldSize, protowire.VarintType)
	b = protowire.AppendVarint(b, e.Size)
	return b
}

// Marshal 编码条目
func (e *Entry) Marshal() []byte {
	b := e.appendUnsigned(nil)
	b = protowire.AppendTag(b, fieldSignature, protowire.BytesType)
	b = protowire.AppendBytes(b, e.Signature)
	return b
}

// UnmarshalEntry 解码条目，未知字段被跳过
func UnmarshalEntry(b []byte) (*Entry, error) {
	e := &Entry{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSeq && typ == protowire.VarintType:
			e.Seq, n = protowire.ConsumeVarint(b)
		case num == fieldSize && typ == protowire.VarintType:
			e.Size, n = protowire.ConsumeVarint(b)
		case num == fieldName && typ == protowire.BytesType:
			e.Name, n = protowire.ConsumeString(b)
		case num == fieldHash && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 && len(v) != len(e.Hash) {
				return nil, fmt.Errorf("%w: hash has %d bytes", ErrInvalidEntry, len(v))
			}
			copy(e.Hash[:], v)
		case num == fieldSignature && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			e.Signature = append([]byte(nil), v...)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return e, nil
}
