package wayland

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"composeim/internal/keysym"
	"composeim/internal/session"
)

// testCodec maps a few evdev codes and keeps the last keymap text.
type testCodec struct {
	keymap string
}

func (c *testCodec) LoadKeymap(format uint32, fd int, size uint32) error {
	buf := make([]byte, size)
	n, err := unix.Pread(fd, buf, 0)
	if err != nil {
		return err
	}
	c.keymap = string(buf[:n])
	return nil
}

func (c *testCodec) Decode(key uint32) keysym.Sym {
	switch key {
	case 127:
		return keysym.MultiKey
	case 40:
		return keysym.Quotedbl
	case 30:
		return keysym.A
	}
	return keysym.NoSymbol
}

func (c *testCodec) UpdateModifiers(depressed, latched, locked, group uint32) {}

func (c *testCodec) ToUTF8(sym keysym.Sym) (string, bool) { return keysym.ToUTF8(sym) }

// compositor plays the server side of a Pair.
type compositor struct {
	t    *testing.T
	conn *Conn
	errc chan error
}

func (s *compositor) send(b *builder, fds ...int) {
	s.t.Helper()
	require.NoError(s.t, s.conn.WriteMessage(b.bytes(), fds...))
}

// expect reads the next request and checks its address.
func (s *compositor) expect(object uint32, opcode uint16) *reader {
	s.t.Helper()
	type result struct {
		m   Message
		err error
	}
	ch := make(chan result, 1)
	go func() {
		m, err := s.conn.ReadMessage()
		ch <- result{m, err}
	}()
	select {
	case res := <-ch:
		require.NoError(s.t, res.err)
		require.Equal(s.t, object, res.m.Object, "request object")
		require.Equal(s.t, opcode, res.m.Opcode, "request opcode")
		return newReader(res.m, nil)
	case err := <-s.errc:
		s.t.Fatalf("client exited: %v", err)
	case <-time.After(5 * time.Second):
		s.t.Fatal("timed out waiting for request")
	}
	return nil
}

func (s *compositor) wait() error {
	s.t.Helper()
	select {
	case err := <-s.errc:
		return err
	case <-time.After(5 * time.Second):
		s.t.Fatal("client did not exit")
		return nil
	}
}

func startClient(t *testing.T, sess *session.Session) (*compositor, context.CancelFunc) {
	t.Helper()
	clientConn, serverConn := testPair(t)
	c := NewClient(clientConn, Config{
		Activation: sess.ActivationHandler(),
		Keyboard:   sess.KeyboardHandler(),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	errc := make(chan error, 1)
	go func() { errc <- c.Run(ctx) }()
	return &compositor{t: t, conn: serverConn, errc: errc}, cancel
}

// handshake answers registry discovery and returns the bound input method id.
func (s *compositor) handshake(globals map[string]uint32) uint32 {
	s.t.Helper()
	registryID := s.expect(displayID, displayGetRegistry).readUint()
	cb := s.expect(displayID, displaySync).readUint()

	name := uint32(1)
	for iface, version := range globals {
		s.send(newBuilder(registryID, registryEventGlobal).putUint(name).putString(iface).putUint(version))
		name++
	}
	s.send(newBuilder(cb, callbackEventDone).putUint(0))
	s.send(newBuilder(displayID, displayEventDeleteID).putUint(cb))

	if _, ok := globals[InputMethodInterface]; !ok {
		return 0
	}
	r := s.expect(registryID, registryBind)
	r.readUint()
	assert.Equal(s.t, InputMethodInterface, r.readString())
	assert.Equal(s.t, uint32(1), r.readUint())
	return r.readUint()
}

func TestClientComposeFlow(t *testing.T) {
	codec := &testCodec{}
	sess := session.New(session.Config{
		Codec:  codec,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	srv, cancel := startClient(t, sess)

	im := srv.handshake(map[string]uint32{
		"wl_seat":            7,
		InputMethodInterface: 1,
	})

	const ctxID = serverIDBase
	srv.send(newBuilder(im, inputMethodEventActivate).putUint(ctxID))
	kb := srv.expect(ctxID, contextGrabKeyboard).readUint()

	fd, err := unix.MemfdCreate("keymap", unix.MFD_CLOEXEC)
	require.NoError(t, err)
	defer unix.Close(fd)
	_, err = unix.Write(fd, []byte("xkb_keymap {}"))
	require.NoError(t, err)
	srv.send(newBuilder(kb, keyboardEventKeymap).putUint(1).putUint(13), fd)

	held := make([]byte, 8)
	order.PutUint32(held[0:], 28)
	order.PutUint32(held[4:], 42)
	srv.send(newBuilder(kb, keyboardEventEnter).putUint(9).putUint(0).putArray(held))

	srv.send(newBuilder(kb, keyboardEventModifiers).putUint(10).putUint(1).putUint(2).putUint(4).putUint(0))
	r := srv.expect(ctxID, contextModifiers)
	assert.Equal(t, []uint32{10, 1, 2, 4, 0},
		[]uint32{r.readUint(), r.readUint(), r.readUint(), r.readUint(), r.readUint()})

	for i, key := range []uint32{127, 40, 30} {
		srv.send(newBuilder(kb, keyboardEventKey).putUint(uint32(20+i)).putUint(500).putUint(key).putUint(0))
	}

	r = srv.expect(ctxID, contextPreeditString)
	assert.Equal(t, uint32(21), r.readUint())
	assert.Equal(t, "\"", r.readString())

	r = srv.expect(ctxID, contextPreeditString)
	assert.Equal(t, uint32(22), r.readUint())
	assert.Equal(t, "", r.readString())

	r = srv.expect(ctxID, contextCommitString)
	assert.Equal(t, uint32(22), r.readUint())
	assert.Equal(t, "Ä", r.readString())

	// Unmapped key passes through with its serial.
	srv.send(newBuilder(kb, keyboardEventKey).putUint(30).putUint(600).putUint(28).putUint(1))
	r = srv.expect(ctxID, contextKey)
	assert.Equal(t, []uint32{30, 600, 28, 1},
		[]uint32{r.readUint(), r.readUint(), r.readUint(), r.readUint()})

	// After commit_state, text requests carry the state serial.
	srv.send(newBuilder(ctxID, contextEventCommitState).putUint(77))
	srv.send(newBuilder(kb, keyboardEventKey).putUint(31).putUint(700).putUint(30).putUint(0))
	r = srv.expect(ctxID, contextCommitString)
	assert.Equal(t, uint32(77), r.readUint())
	assert.Equal(t, "A", r.readString())

	srv.send(newBuilder(im, inputMethodEventDeactivate).putUint(ctxID))
	srv.expect(ctxID, contextDestroy)

	cancel()
	assert.ErrorIs(t, srv.wait(), context.Canceled)

	assert.Equal(t, "xkb_keymap {}", codec.keymap)
	stats := sess.Stats()
	assert.Equal(t, uint64(1), stats.Activations)
	assert.Equal(t, uint64(1), stats.Deactivations)
	assert.Equal(t, uint64(1), stats.Composed)
	assert.Nil(t, sess.Active())
}

func TestClientStaleKeyboard(t *testing.T) {
	sess := session.New(session.Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	srv, cancel := startClient(t, sess)
	im := srv.handshake(map[string]uint32{InputMethodInterface: 1})

	srv.send(newBuilder(im, inputMethodEventActivate).putUint(serverIDBase))
	oldKB := srv.expect(serverIDBase, contextGrabKeyboard).readUint()
	srv.send(newBuilder(im, inputMethodEventActivate).putUint(serverIDBase + 1))
	srv.expect(serverIDBase, contextDestroy)
	newKB := srv.expect(serverIDBase+1, contextGrabKeyboard).readUint()

	// A key on the old grab is dropped; one on the new grab passes through.
	srv.send(newBuilder(oldKB, keyboardEventKey).putUint(1).putUint(1).putUint(28).putUint(1))
	srv.send(newBuilder(newKB, keyboardEventKey).putUint(2).putUint(2).putUint(28).putUint(1))
	r := srv.expect(serverIDBase+1, contextKey)
	assert.Equal(t, uint32(2), r.readUint())

	cancel()
	assert.ErrorIs(t, srv.wait(), context.Canceled)
	assert.Equal(t, uint64(1), sess.Stats().Stray)
}

func TestClientNoInputMethod(t *testing.T) {
	sess := session.New(session.Config{})
	srv, _ := startClient(t, sess)
	srv.handshake(map[string]uint32{"wl_seat": 7})
	assert.ErrorIs(t, srv.wait(), ErrNoInputMethod)
}

func TestClientProtocolError(t *testing.T) {
	sess := session.New(session.Config{})
	srv, _ := startClient(t, sess)
	srv.expect(displayID, displayGetRegistry)
	srv.expect(displayID, displaySync)
	srv.send(newBuilder(displayID, displayEventError).putUint(2).putUint(1).putString("invalid method"))

	err := srv.wait()
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, uint32(2), perr.Object)
	assert.Equal(t, "invalid method", perr.Message)
}
