// Package xkb decodes Wayland keymaps with libxkbcommon, loaded at runtime
// through purego so the binary builds without cgo headers.
package xkb

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sys/unix"

	"composeim/internal/keysym"
)

// KeymapFormatTextV1 is wl_keyboard.keymap_format.xkb_v1.
const KeymapFormatTextV1 = 1

// evdev codes are offset by 8 in XKB keycode space.
const evdevOffset = 8

var (
	ErrKeymapFormat  = errors.New("xkb: unsupported keymap format")
	ErrKeymapCompile = errors.New("xkb: keymap compilation failed")
	ErrClosed        = errors.New("xkb: codec closed")
)

// Codec holds one xkb context and the keymap and state most recently
// delivered by the compositor. Methods must be called from one goroutine.
type Codec struct {
	lib    *lib
	log    *slog.Logger
	ctx    uintptr
	keymap uintptr
	state  uintptr
}

// New loads libxkbcommon and creates a context.
func New(logger *slog.Logger) (*Codec, error) {
	l, err := load()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx := l.contextNew(0)
	if ctx == 0 {
		return nil, fmt.Errorf("%w: xkb_context_new failed", ErrUnavailable)
	}
	return &Codec{lib: l, log: logger, ctx: ctx}, nil
}

// LoadKeymap maps fd, compiles the keymap text and swaps in a fresh state.
// fd remains owned by the caller.
func (c *Codec) LoadKeymap(format uint32, fd int, size uint32) error {
	if c.ctx == 0 {
		return ErrClosed
	}
	if format != KeymapFormatTextV1 {
		return fmt.Errorf("%w: %d", ErrKeymapFormat, format)
	}
	if size == 0 {
		return fmt.Errorf("%w: empty keymap", ErrKeymapCompile)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return fmt.Errorf("xkb: mmap keymap: %w", err)
	}
	text := string(bytes.TrimRight(data, "\x00"))
	if err := unix.Munmap(data); err != nil {
		c.log.Warn("munmap keymap", "error", err)
	}

	return c.compile(text)
}

func (c *Codec) compile(text string) error {
	keymap := c.lib.keymapNewFromString(c.ctx, text, KeymapFormatTextV1, 0)
	if keymap == 0 {
		return ErrKeymapCompile
	}
	state := c.lib.stateNew(keymap)
	if state == 0 {
		c.lib.keymapUnref(keymap)
		return fmt.Errorf("%w: xkb_state_new failed", ErrKeymapCompile)
	}

	c.release()
	c.keymap, c.state = keymap, state
	return nil
}

// Loaded reports whether a keymap is installed.
func (c *Codec) Loaded() bool {
	return c.state != 0
}

// Decode returns the keysym for an evdev key code, or NoSymbol before any
// keymap is loaded.
func (c *Codec) Decode(key uint32) keysym.Sym {
	if c.state == 0 {
		return keysym.NoSymbol
	}
	return keysym.Sym(c.lib.stateKeyGetOneSym(c.state, key+evdevOffset))
}

// UpdateModifiers applies a wl_keyboard.modifiers event.
func (c *Codec) UpdateModifiers(depressed, latched, locked, group uint32) {
	if c.state == 0 {
		return
	}
	c.lib.stateUpdateMask(c.state, depressed, latched, locked, 0, 0, group)
}

// ToUTF8 renders sym as text. Control characters are not text.
func (c *Codec) ToUTF8(sym keysym.Sym) (string, bool) {
	if sym == keysym.NoSymbol {
		return "", false
	}
	r := rune(c.lib.keysymToUTF32(uint32(sym)))
	if r == 0 || !utf8.ValidRune(r) || unicode.IsControl(r) {
		return "", false
	}
	return string(r), true
}

func (c *Codec) release() {
	if c.state != 0 {
		c.lib.stateUnref(c.state)
		c.state = 0
	}
	if c.keymap != 0 {
		c.lib.keymapUnref(c.keymap)
		c.keymap = 0
	}
}

// Close releases the keymap, state and context.
func (c *Codec) Close() error {
	c.release()
	if c.ctx != 0 {
		c.lib.contextUnref(c.ctx)
		c.ctx = 0
	}
	return nil
}
