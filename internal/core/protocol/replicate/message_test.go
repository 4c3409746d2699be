package replicate

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/multiformats/go-varint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Frame(t *testing.T) {
	var buf bytes.Buffer
	msgs := []*Message{
		{Type: TypeStatus, Length: 7, Writable: true},
		{Type: TypeRequest, Seq: 0},
		{Type: TypeData, Seq: 3, Entry: []byte{1, 2, 3}, Content: []byte{}},
	}
	for _, m := range msgs {
		require.NoError(t, WriteMessage(&buf, m))
	}

	r := bufio.NewReader(&buf)
	for _, want := range msgs {
		got, err := ReadMessage(r)
		require.NoError(t, err)
		assert.Equal(t, want.Type, got.Type)
		assert.Equal(t, want.Length, got.Length)
		assert.Equal(t, want.Writable, got.Writable)
		assert.Equal(t, want.Seq, got.Seq)
		assert.Equal(t, want.Entry, got.Entry)
	}
}

func TestUnmarshal_Errors(t *testing.T) {
	t.Run("未知类型", func(t *testing.T) {
		_, err := Unmarshal((&Message{Type: 99}).Marshal())
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("截断", func(t *testing.T) {
		b := (&Message{Type: TypeData, Entry: []byte("entry")}).Marshal()
		_, err := Unmarshal(b[:len(b)-2])
		assert.ErrorIs(t, err, ErrMalformedMessage)
	})

	t.Run("跳过未知字段", func(t *testing.T) {
		b := (&Message{Type: TypeRequest, Seq: 5}).Marshal()
		b = append(b, 0x7a, 0x01, 0x00) // field 15, bytes, len 1
		m, err := Unmarshal(b)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), m.Seq)
	})
}

func TestReadMessage_TooLarge(t *testing.T) {
	frame := varint.ToUvarint(MaxMessageSize + 1)
	_, err := ReadMessage(bufio.NewReader(bytes.NewReader(frame)))
	assert.ErrorIs(t, err, ErrMessageTooLarge)
}

func TestMessageType_String(t *testing.T) {
	assert.Equal(t, "status", TypeStatus.String())
	assert.Equal(t, "data", TypeData.String())
	assert.Equal(t, "unknown(9)", MessageType(9).String())
}
