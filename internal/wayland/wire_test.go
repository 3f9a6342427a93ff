package wayland

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderLayout(t *testing.T) {
	p := newBuilder(7, 2).putUint(9).putString("ab").bytes()

	// header(8) + uint(4) + len(4) + "ab\0" padded to 4
	require.Len(t, p, 20)
	object, opcode, size, err := parseHeader(p)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), object)
	assert.Equal(t, uint16(2), opcode)
	assert.Equal(t, 20, size)
	assert.Equal(t, uint32(3), order.Uint32(p[12:]), "string length counts the NUL")
	assert.Equal(t, []byte{'a', 'b', 0, 0}, p[16:20])
}

func TestBuilderEmptyString(t *testing.T) {
	p := newBuilder(1, 0).putString("").bytes()
	require.Len(t, p, 16)
	assert.Equal(t, uint32(1), order.Uint32(p[8:]))
}

func TestReaderArguments(t *testing.T) {
	p := newBuilder(3, 1).
		putUint(42).
		putInt(-5).
		putString("zwp_input_method_v1").
		putArray([]byte{1, 2, 3}).
		bytes()

	r := newReader(Message{Args: p[headerSize:]}, nil)
	assert.Equal(t, uint32(42), r.readUint())
	assert.Equal(t, int32(-5), r.readInt())
	assert.Equal(t, "zwp_input_method_v1", r.readString())
	assert.Equal(t, []byte{1, 2, 3}, r.readArray())
	assert.NoError(t, r.Err())
}

func TestReaderShort(t *testing.T) {
	r := newReader(Message{Args: []byte{1, 0}}, nil)
	assert.Zero(t, r.readUint())
	assert.ErrorIs(t, r.Err(), ErrShortMessage)
	assert.Empty(t, r.readString(), "errors stick")
}

func TestReaderFD(t *testing.T) {
	r := newReader(Message{}, nil)
	assert.Equal(t, -1, r.readFD())
	assert.ErrorIs(t, r.Err(), ErrMissingFD)

	r = newReader(Message{}, func() (int, error) { return 11, nil })
	assert.Equal(t, 11, r.readFD())
	assert.NoError(t, r.Err())
}

func TestParseHeaderInvalid(t *testing.T) {
	_, _, _, err := parseHeader([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortMessage)

	p := newBuilder(1, 0).bytes()
	order.PutUint32(p[4:], 6<<16)
	_, _, _, err = parseHeader(p)
	assert.ErrorIs(t, err, ErrMessageSize)
}
