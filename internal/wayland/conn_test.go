package wayland

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func testPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()
	a, b, err := Pair()
	require.NoError(t, err)
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})
	return a, b
}

func TestConnMessages(t *testing.T) {
	a, b := testPair(t)

	require.NoError(t, a.WriteMessage(newBuilder(5, 3).putUint(1).bytes()))
	require.NoError(t, a.WriteMessage(newBuilder(6, 4).putString("x").bytes()))

	m, err := b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, uint32(5), m.Object)
	assert.Equal(t, uint16(3), m.Opcode)
	assert.Len(t, m.Args, 4)

	m, err = b.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, uint32(6), m.Object)
	assert.Equal(t, "x", newReader(m, nil).readString())
}

func TestConnFDPassing(t *testing.T) {
	a, b := testPair(t)

	fd, err := unix.MemfdCreate("test", unix.MFD_CLOEXEC)
	require.NoError(t, err)
	defer unix.Close(fd)
	_, err = unix.Write(fd, []byte("payload"))
	require.NoError(t, err)

	require.NoError(t, a.WriteMessage(newBuilder(9, 0).putUint(1).putUint(7).bytes(), fd))

	_, err = b.ReadMessage()
	require.NoError(t, err)
	got, err := b.TakeFD()
	require.NoError(t, err)
	defer unix.Close(got)

	buf := make([]byte, 7)
	n, err := unix.Pread(got, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))

	_, err = b.TakeFD()
	assert.ErrorIs(t, err, ErrMissingFD)
}

func TestConnEOF(t *testing.T) {
	a, b := testPair(t)
	require.NoError(t, a.Close())
	_, err := b.ReadMessage()
	assert.Error(t, err)
}

func TestSocketPath(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("WAYLAND_DISPLAY", "")

	p, err := SocketPath("")
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/wayland-0", p)

	p, err = SocketPath("wayland-1")
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/wayland-1", p)

	p, err = SocketPath("/tmp/custom")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", p)

	t.Setenv("WAYLAND_DISPLAY", "wayland-5")
	p, err = SocketPath("")
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000/wayland-5", p)

	t.Setenv("XDG_RUNTIME_DIR", "")
	_, err = SocketPath("wayland-1")
	assert.ErrorIs(t, err, ErrNoRuntimeDir)
}
