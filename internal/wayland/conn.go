package wayland

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/sys/unix"
)

// maxFDs is the most descriptors accepted in one read.
const maxFDs = 28

var ErrNoRuntimeDir = errors.New("wayland: XDG_RUNTIME_DIR not set")

// Conn frames Wayland messages over a Unix socket and queues the file
// descriptors that arrive alongside them.
type Conn struct {
	uc  *net.UnixConn
	in  []byte
	fds []int
	buf []byte
	oob []byte
}

// NewConn wraps an established socket.
func NewConn(uc *net.UnixConn) *Conn {
	return &Conn{
		uc:  uc,
		buf: make([]byte, maxMessageSize),
		oob: make([]byte, unix.CmsgSpace(maxFDs*4)),
	}
}

// SocketPath resolves a display name the way libwayland does: absolute names
// are used as is, others are relative to $XDG_RUNTIME_DIR. An empty name
// falls back to $WAYLAND_DISPLAY, then "wayland-0".
func SocketPath(name string) (string, error) {
	if name == "" {
		name = os.Getenv("WAYLAND_DISPLAY")
	}
	if name == "" {
		name = "wayland-0"
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		return "", ErrNoRuntimeDir
	}
	return filepath.Join(dir, name), nil
}

// Dial connects to the compositor. An inherited $WAYLAND_SOCKET descriptor
// takes precedence over the display name.
func Dial(name string) (*Conn, error) {
	if v := os.Getenv("WAYLAND_SOCKET"); v != "" {
		fd, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("wayland: parse WAYLAND_SOCKET: %w", err)
		}
		os.Unsetenv("WAYLAND_SOCKET")
		return fileConn(os.NewFile(uintptr(fd), "wayland-socket"))
	}

	path, err := SocketPath(name)
	if err != nil {
		return nil, err
	}
	uc, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("wayland: connect %s: %w", path, err)
	}
	return NewConn(uc), nil
}

func fileConn(f *os.File) (*Conn, error) {
	defer f.Close()
	c, err := net.FileConn(f)
	if err != nil {
		return nil, fmt.Errorf("wayland: inherited socket: %w", err)
	}
	uc, ok := c.(*net.UnixConn)
	if !ok {
		c.Close()
		return nil, fmt.Errorf("wayland: inherited socket is %T, not a unix socket", c)
	}
	return NewConn(uc), nil
}

// Pair returns two connected Conns, for in-process peers.
func Pair() (*Conn, *Conn, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("wayland: socketpair: %w", err)
	}
	a, err := fileConn(os.NewFile(uintptr(fds[0]), "wayland-pair-a"))
	if err != nil {
		unix.Close(fds[1])
		return nil, nil, err
	}
	b, err := fileConn(os.NewFile(uintptr(fds[1]), "wayland-pair-b"))
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, b, nil
}

// ReadMessage blocks until one complete message is buffered.
func (c *Conn) ReadMessage() (Message, error) {
	for {
		if len(c.in) >= headerSize {
			object, opcode, size, err := parseHeader(c.in)
			if err != nil {
				return Message{}, err
			}
			if len(c.in) >= size {
				m := Message{
					Object: object,
					Opcode: opcode,
					Args:   bytes.Clone(c.in[headerSize:size]),
				}
				c.in = c.in[size:]
				return m, nil
			}
		}
		if err := c.fill(); err != nil {
			return Message{}, err
		}
	}
}

func (c *Conn) fill() error {
	n, oobn, _, _, err := c.uc.ReadMsgUnix(c.buf, c.oob)
	if oobn > 0 {
		if perr := c.parseRights(c.oob[:oobn]); perr != nil && err == nil {
			err = perr
		}
	}
	c.in = append(c.in, c.buf[:n]...)
	if err != nil {
		return fmt.Errorf("wayland: read: %w", err)
	}
	if n == 0 {
		return io.EOF
	}
	return nil
}

func (c *Conn) parseRights(oob []byte) error {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return fmt.Errorf("wayland: control message: %w", err)
	}
	for i := range msgs {
		fds, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			continue
		}
		c.fds = append(c.fds, fds...)
	}
	return nil
}

// TakeFD pops the oldest received descriptor. The caller owns it.
func (c *Conn) TakeFD() (int, error) {
	if len(c.fds) == 0 {
		return -1, ErrMissingFD
	}
	fd := c.fds[0]
	c.fds = c.fds[1:]
	return fd, nil
}

// WriteMessage sends one encoded message with optional descriptors.
func (c *Conn) WriteMessage(p []byte, fds ...int) error {
	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	n, _, err := c.uc.WriteMsgUnix(p, oob, nil)
	if err != nil {
		return fmt.Errorf("wayland: write: %w", err)
	}
	if n != len(p) {
		return fmt.Errorf("wayland: write: %w", io.ErrShortWrite)
	}
	return nil
}

// Close closes the socket. It may be called from any goroutine to unblock
// ReadMessage.
func (c *Conn) Close() error {
	return c.uc.Close()
}

// DiscardFDs closes descriptors that were received but never taken. It must
// be called from the reading goroutine.
func (c *Conn) DiscardFDs() {
	for _, fd := range c.fds {
		unix.Close(fd)
	}
	c.fds = nil
}
