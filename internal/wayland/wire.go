package wayland

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const headerSize = 8

// maxMessageSize bounds one message, header included.
const maxMessageSize = 4096

var (
	ErrShortMessage = errors.New("wayland: message truncated")
	ErrMissingFD    = errors.New("wayland: file descriptor missing")
	ErrMessageSize  = errors.New("wayland: invalid message size")
)

var order = binary.NativeEndian

// Message is one decoded wire message without its header.
type Message struct {
	Object uint32
	Opcode uint16
	Args   []byte
}

// builder encodes a request or event.
type builder struct {
	buf []byte
}

func newBuilder(object uint32, opcode uint16) *builder {
	b := &builder{buf: make([]byte, headerSize, 64)}
	order.PutUint32(b.buf[0:], object)
	order.PutUint16(b.buf[4:], opcode)
	return b
}

func (b *builder) putUint(v uint32) *builder {
	b.buf = order.AppendUint32(b.buf, v)
	return b
}

func (b *builder) putInt(v int32) *builder {
	return b.putUint(uint32(v))
}

// putString encodes a non-null string: length with NUL, bytes, NUL, padding.
func (b *builder) putString(s string) *builder {
	b.putUint(uint32(len(s) + 1))
	b.buf = append(b.buf, s...)
	b.buf = append(b.buf, 0)
	b.pad()
	return b
}

func (b *builder) putArray(p []byte) *builder {
	b.putUint(uint32(len(p)))
	b.buf = append(b.buf, p...)
	b.pad()
	return b
}

func (b *builder) pad() {
	for len(b.buf)%4 != 0 {
		b.buf = append(b.buf, 0)
	}
}

// bytes finalizes the size field and returns the encoded message.
func (b *builder) bytes() []byte {
	order.PutUint16(b.buf[6:], uint16(len(b.buf)))
	return b.buf
}

// parseHeader returns the object, opcode and total size of the message at
// the start of p.
func parseHeader(p []byte) (object uint32, opcode uint16, size int, err error) {
	if len(p) < headerSize {
		return 0, 0, 0, ErrShortMessage
	}
	object = order.Uint32(p[0:])
	word := order.Uint32(p[4:])
	opcode = uint16(word & 0xffff)
	size = int(word >> 16)
	if size < headerSize || size%4 != 0 || size > maxMessageSize {
		return 0, 0, 0, fmt.Errorf("%w: %d", ErrMessageSize, size)
	}
	return object, opcode, size, nil
}

// reader decodes message arguments. The first failure sticks and later
// calls return zero values.
type reader struct {
	data []byte
	off  int
	fds  func() (int, error)
	err  error
}

func newReader(m Message, fds func() (int, error)) *reader {
	return &reader{data: m.Args, fds: fds}
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = ErrShortMessage
		return nil
	}
	p := r.data[r.off : r.off+n]
	r.off += n
	return p
}

func (r *reader) readUint() uint32 {
	p := r.take(4)
	if p == nil {
		return 0
	}
	return order.Uint32(p)
}

func (r *reader) readInt() int32 {
	return int32(r.readUint())
}

func (r *reader) readString() string {
	n := int(r.readUint())
	if n == 0 {
		return ""
	}
	p := r.take(padded(n))
	if p == nil {
		return ""
	}
	return string(p[:n-1])
}

func (r *reader) readArray() []byte {
	n := int(r.readUint())
	p := r.take(padded(n))
	if p == nil {
		return nil
	}
	return p[:n]
}

func (r *reader) readFD() int {
	if r.err != nil {
		return -1
	}
	if r.fds == nil {
		r.err = ErrMissingFD
		return -1
	}
	fd, err := r.fds()
	if err != nil {
		r.err = err
		return -1
	}
	return fd
}

func (r *reader) Err() error {
	return r.err
}

func padded(n int) int {
	return (n + 3) &^ 3
}
