package session

import (
	"errors"

	"composeim/internal/keysym"
)

// ErrNoKeymap is returned by codecs that cannot load compositor keymaps.
var ErrNoKeymap = errors.New("session: keymap loading not supported")

// PlainCodec decodes keys without a keymap. Decode always yields
// keysym.NoSymbol, so every hardware key passes through unchanged. It suits
// bindings that deliver keysyms directly.
type PlainCodec struct{}

// LoadKeymap implements Codec.
func (PlainCodec) LoadKeymap(uint32, int, uint32) error { return ErrNoKeymap }

// Decode implements Codec.
func (PlainCodec) Decode(uint32) keysym.Sym { return keysym.NoSymbol }

// UpdateModifiers implements Codec.
func (PlainCodec) UpdateModifiers(uint32, uint32, uint32, uint32) {}

// ToUTF8 implements Codec.
func (PlainCodec) ToUTF8(sym keysym.Sym) (string, bool) { return keysym.ToUTF8(sym) }
