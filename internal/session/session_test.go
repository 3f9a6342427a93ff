package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"composeim/internal/compose"
	"composeim/internal/keysym"
)

// fakeContext records outbound requests as strings.
type fakeContext struct {
	calls      []string
	grabbed    bool
	destroyed  bool
	failWith   error
	destroyErr error
}

func (f *fakeContext) record(format string, args ...any) error {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.failWith
}

func (f *fakeContext) CommitString(serial uint32, text string) error {
	return f.record("commit %d %q", serial, text)
}

func (f *fakeContext) PreeditString(serial uint32, text, commit string) error {
	return f.record("preedit %d %q", serial, text)
}

func (f *fakeContext) ForwardKey(serial, time, key uint32, state compose.KeyState) error {
	return f.record("key %d %d %d %s", serial, time, key, state)
}

func (f *fakeContext) Modifiers(serial, depressed, latched, locked, group uint32) error {
	return f.record("modifiers %d %d %d %d %d", serial, depressed, latched, locked, group)
}

func (f *fakeContext) GrabKeyboard() error {
	f.grabbed = true
	return nil
}

func (f *fakeContext) Destroy() error {
	f.destroyed = true
	return f.destroyErr
}

// fakeCodec maps evdev codes to keysyms.
type fakeCodec struct {
	keys    map[uint32]keysym.Sym
	mods    [4]uint32
	keymaps int
}

func (c *fakeCodec) LoadKeymap(format uint32, fd int, size uint32) error {
	c.keymaps++
	return nil
}

func (c *fakeCodec) Decode(key uint32) keysym.Sym { return c.keys[key] }

func (c *fakeCodec) UpdateModifiers(depressed, latched, locked, group uint32) {
	c.mods = [4]uint32{depressed, latched, locked, group}
}

func (c *fakeCodec) ToUTF8(sym keysym.Sym) (string, bool) { return keysym.ToUTF8(sym) }

type fakeRecorder struct{ events []ComposeEvent }

func (r *fakeRecorder) RecordCompose(ev ComposeEvent) error {
	r.events = append(r.events, ev)
	return nil
}

const (
	keyCompose = 127
	keyQuote   = 40
	keyA       = 30
	keyS       = 31
	keyZ       = 44
	keyX       = 45
	keyShift   = 42
	keyEnter   = 28
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestSession(t *testing.T) (*Session, *fakeCodec, *fakeRecorder) {
	t.Helper()
	codec := &fakeCodec{keys: map[uint32]keysym.Sym{
		keyCompose: keysym.MultiKey,
		keyQuote:   keysym.Quotedbl,
		keyA:       keysym.A,
		keyS:       keysym.LowerS,
		keyZ:       keysym.LowerZ,
		keyX:       keysym.LowerX,
		keyShift:   keysym.ShiftL,
		keyEnter:   keysym.Return,
	}}
	rec := &fakeRecorder{}
	s := New(Config{
		Codec:    codec,
		Recorder: rec,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return epoch },
	})
	return s, codec, rec
}

// tapKeys sends a release of each key, with serials counting up from 1.
func tapKeys(t *testing.T, s *Session, ctx Context, keys ...uint32) {
	t.Helper()
	for i, k := range keys {
		require.NoError(t, s.Key(ctx, uint32(i+1), 1000, k, compose.Released))
	}
}

func TestSessionActivateGrabsKeyboard(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := &fakeContext{}

	require.NoError(t, s.ActivationHandler().Activate(ctx))
	assert.True(t, ctx.grabbed)
	require.NotNil(t, s.Active())
	assert.Equal(t, uint64(1), s.Active().ID())
	assert.Equal(t, compose.Normal, s.EngineState())
}

func TestSessionActivateReplacesPrevious(t *testing.T) {
	s, _, _ := newTestSession(t)
	first, second := &fakeContext{}, &fakeContext{}

	require.NoError(t, s.Activate(first))
	tapKeys(t, s, first, keyCompose, keyQuote)
	require.Equal(t, compose.Composing, s.EngineState())

	require.NoError(t, s.Activate(second))
	assert.True(t, first.destroyed)
	assert.False(t, second.destroyed)
	assert.Equal(t, compose.Normal, s.EngineState())
	assert.Equal(t, 0, s.Pending().Len())
	assert.Equal(t, uint64(2), s.Active().ID())
}

func TestSessionActivateCountsDestroyError(t *testing.T) {
	s, _, _ := newTestSession(t)
	first := &fakeContext{destroyErr: errors.New("gone")}
	second := &fakeContext{}

	require.NoError(t, s.Activate(first))
	require.NoError(t, s.Activate(second), "replacing still activates the new context")
	assert.True(t, first.destroyed)
	assert.Same(t, second, s.Active().Context())
	assert.Equal(t, uint64(1), s.Stats().Errors)
}

func TestSessionUmlaut(t *testing.T) {
	s, _, rec := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	tapKeys(t, s, ctx, keyCompose, keyQuote, keyA)

	assert.Equal(t, []string{
		`preedit 2 "\""`,
		`preedit 3 ""`,
		`commit 3 "Ä"`,
	}, ctx.calls)
	assert.Equal(t, compose.Normal, s.EngineState())
	assert.False(t, s.Active().PreeditShown())

	require.Len(t, rec.events, 1)
	assert.Equal(t, ComposeEvent{
		Sequence: compose.Seq(keysym.Quotedbl, keysym.A),
		Text:     "Ä",
		Outcome:  compose.OutcomeMatched,
		At:       epoch,
	}, rec.events[0])
}

func TestSessionSharpS(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	tapKeys(t, s, ctx, keyCompose, keyS, keyS)
	assert.Equal(t, `commit 3 "ß"`, ctx.calls[len(ctx.calls)-1])
}

func TestSessionUnmatchedCommitsLiteral(t *testing.T) {
	s, _, rec := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	tapKeys(t, s, ctx, keyCompose, keyZ, keyX)

	assert.Equal(t, []string{
		`preedit 2 ""`,
		`commit 2 "z"`,
		`commit 3 "x"`,
	}, ctx.calls)
	assert.Equal(t, uint64(1), s.Stats().Unmatched)
	require.Len(t, rec.events, 1)
	assert.Equal(t, compose.OutcomeUnmatched, rec.events[0].Outcome)
}

func TestSessionPressIgnored(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	require.NoError(t, s.Key(ctx, 7, 10, keyA, compose.Pressed))
	assert.Empty(t, ctx.calls)

	require.NoError(t, s.Key(ctx, 8, 11, keyA, compose.Released))
	assert.Equal(t, []string{`commit 8 "A"`}, ctx.calls)
}

func TestSessionPassThrough(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	require.NoError(t, s.Key(ctx, 4, 99, keyEnter, compose.Pressed))
	require.NoError(t, s.Key(ctx, 5, 100, 200, compose.Released))

	assert.Equal(t, []string{
		"key 4 99 28 pressed",
		"key 5 100 200 released",
	}, ctx.calls, "unknown keys decode to NoSymbol and pass through")
	assert.Equal(t, uint64(2), s.Stats().Forwards)
}

func TestSessionShiftWhileComposing(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))
	tapKeys(t, s, ctx, keyCompose, keyQuote)
	ctx.calls = nil

	require.NoError(t, s.Key(ctx, 10, 1, keyShift, compose.Pressed))
	require.NoError(t, s.Key(ctx, 11, 2, keyShift, compose.Released))

	assert.Equal(t, []string{
		"key 10 1 42 pressed",
		"key 11 2 42 released",
	}, ctx.calls)
	assert.Equal(t, 1, s.Pending().Len())
	assert.Equal(t, compose.Composing, s.EngineState())
}

func TestSessionDeactivateMidCompose(t *testing.T) {
	s, _, rec := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))
	tapKeys(t, s, ctx, keyCompose, keyQuote)
	ctx.calls = nil

	require.NoError(t, s.Deactivate(ctx))
	assert.True(t, ctx.destroyed)
	assert.Nil(t, s.Active())
	assert.Empty(t, ctx.calls, "no partial commit on teardown")
	assert.Empty(t, rec.events)

	next := &fakeContext{}
	require.NoError(t, s.Activate(next))
	assert.Equal(t, compose.Normal, s.EngineState())
	assert.Equal(t, 0, s.Pending().Len())

	tapKeys(t, s, next, keyA)
	assert.Equal(t, []string{`commit 1 "A"`}, next.calls)
}

func TestSessionDeactivateWithoutActivation(t *testing.T) {
	s, _, _ := newTestSession(t)
	require.NoError(t, s.Deactivate(&fakeContext{}))
	assert.Nil(t, s.Active())
	assert.Equal(t, uint64(0), s.Stats().Deactivations)
}

func TestSessionDeactivateOtherContext(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx, other := &fakeContext{}, &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	require.NoError(t, s.Deactivate(other))
	assert.Same(t, ctx, s.Active().Context())
	assert.False(t, ctx.destroyed)
	assert.Equal(t, uint64(1), s.Stats().Stray)
}

func TestSessionStrayEvents(t *testing.T) {
	s, codec, _ := newTestSession(t)
	ctx := &fakeContext{}

	require.NoError(t, s.Key(ctx, 1, 1, keyA, compose.Released))
	s.Reset(ctx)
	s.CommitState(ctx, 9)
	require.NoError(t, s.Keymap(ctx, 1, 3, 10))
	require.NoError(t, s.Modifiers(ctx, 1, 1, 0, 2, 0))

	assert.Empty(t, ctx.calls)
	assert.Zero(t, codec.keymaps)
	assert.Equal(t, [4]uint32{1, 0, 2, 0}, codec.mods, "modifiers reach the codec regardless")
	assert.Equal(t, uint64(5), s.Stats().Stray)
}

func TestSessionReset(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))
	tapKeys(t, s, ctx, keyCompose, keyQuote)
	ctx.calls = nil

	s.Reset(ctx)
	assert.Equal(t, compose.Normal, s.EngineState())
	assert.Same(t, ctx, s.Active().Context(), "reset keeps the activation")
	assert.False(t, ctx.destroyed)

	s.Reset(ctx)
	assert.Equal(t, compose.Normal, s.EngineState())
	assert.Empty(t, ctx.calls, "reset emits nothing")
	assert.Equal(t, uint64(2), s.Stats().Resets)
}

func TestSessionModifiers(t *testing.T) {
	s, codec, _ := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	require.NoError(t, s.KeyboardHandler().Modifiers(ctx, 12, 1, 2, 4, 1))
	assert.Equal(t, [4]uint32{1, 2, 4, 1}, codec.mods)
	assert.Equal(t, []string{"modifiers 12 1 2 4 1"}, ctx.calls)
	assert.Equal(t, uint32(12), s.Active().Serial())
}

func TestSessionCommitStateSerial(t *testing.T) {
	s, _, _ := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	s.CommitState(ctx, 42)
	assert.Equal(t, uint32(42), s.Active().StateSerial())

	require.NoError(t, s.Key(ctx, 7, 1, keyA, compose.Released))
	require.NoError(t, s.Key(ctx, 8, 2, keyEnter, compose.Released))
	assert.Equal(t, []string{
		`commit 42 "A"`,
		"key 8 2 28 released",
	}, ctx.calls, "text carries the commit_state serial, keys their own")
	assert.Equal(t, uint32(8), s.Active().Serial())

	ctx.calls = nil
	tapKeys(t, s, ctx, keyCompose, keyQuote, keyA)
	assert.Equal(t, []string{
		`preedit 42 "\""`,
		`preedit 42 ""`,
		`commit 42 "Ä"`,
	}, ctx.calls)
}

func TestSessionStateSerialPerActivation(t *testing.T) {
	s, _, _ := newTestSession(t)
	first, second := &fakeContext{}, &fakeContext{}
	require.NoError(t, s.Activate(first))
	s.CommitState(first, 42)

	require.NoError(t, s.Activate(second))
	require.NoError(t, s.Key(second, 9, 1, keyA, compose.Released))
	assert.Equal(t, []string{`commit 9 "A"`}, second.calls, "a fresh activation falls back to the key serial")
}

func TestSessionKeymap(t *testing.T) {
	s, codec, _ := newTestSession(t)
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	require.NoError(t, s.Keymap(ctx, 1, 5, 4096))
	assert.Equal(t, 1, codec.keymaps)
}

func TestSessionTransportError(t *testing.T) {
	s, _, _ := newTestSession(t)
	boom := errors.New("broken pipe")
	ctx := &fakeContext{failWith: boom}
	require.NoError(t, s.Activate(ctx))

	err := s.Key(ctx, 1, 1, keyA, compose.Released)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(1), s.Stats().Errors)
}

func TestSessionHandleKeySym(t *testing.T) {
	s := New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx := &fakeContext{}
	require.NoError(t, s.Activate(ctx))

	for i, sym := range []keysym.Sym{keysym.MultiKey, keysym.Apostrophe, keysym.LowerA} {
		require.NoError(t, s.HandleKey(ctx, KeyEvent{Serial: uint32(i), Sym: sym, State: compose.Released}))
	}
	assert.Equal(t, `commit 2 "á"`, ctx.calls[len(ctx.calls)-1])
}

func TestPlainCodec(t *testing.T) {
	var c PlainCodec
	assert.ErrorIs(t, c.LoadKeymap(1, 0, 0), ErrNoKeymap)
	assert.Equal(t, keysym.NoSymbol, c.Decode(30))
	text, ok := c.ToUTF8(keysym.EuroSign)
	assert.True(t, ok)
	assert.Equal(t, "€", text)
}
