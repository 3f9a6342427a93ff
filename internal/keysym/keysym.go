// Package keysym defines X keyboard symbols and their UTF-8 rendering.
//
// A Sym identifies a logical key independently of the physical layout. Syms
// are produced by the keymap (see package xkb) and consumed by the compose
// engine. The values follow xkbcommon-keysyms.h.
package keysym

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Sym is an X keysym.
type Sym uint32

// NoSymbol marks an unused slot or a key the keymap could not resolve.
const NoSymbol Sym = 0

// Keysyms referenced by the compose table and the engine.
const (
	Space      Sym = 0x0020
	Quotedbl   Sym = 0x0022
	Apostrophe Sym = 0x0027
	A          Sym = 0x0041
	C          Sym = 0x0043
	O          Sym = 0x004f
	R          Sym = 0x0052
	U          Sym = 0x0055
	LowerA     Sym = 0x0061
	LowerO     Sym = 0x006f
	LowerS     Sym = 0x0073
	LowerU     Sym = 0x0075
	LowerX     Sym = 0x0078
	LowerZ     Sym = 0x007a

	BackSpace Sym = 0xff08
	Tab       Sym = 0xff09
	Return    Sym = 0xff0d
	Escape    Sym = 0xff1b
	MultiKey  Sym = 0xff20
	Left      Sym = 0xff51
	Up        Sym = 0xff52
	Right     Sym = 0xff53
	Down      Sym = 0xff54
	Delete    Sym = 0xffff

	ShiftL   Sym = 0xffe1
	ShiftR   Sym = 0xffe2
	ControlL Sym = 0xffe3
	ControlR Sym = 0xffe4
	AltL     Sym = 0xffe9
	AltR     Sym = 0xffea

	EuroSign Sym = 0x20ac
)

// Unicode keysyms are 0x01000000 plus the code point.
const (
	unicodeOffset Sym = 0x01000000
	unicodeMin    Sym = 0x01000100
	unicodeMax    Sym = 0x0110ffff
)

// keypad syms that xkbcommon renders as text.
var keypad = map[Sym]rune{
	0xff80: ' ', // KP_Space
	0xffaa: '*', // KP_Multiply
	0xffab: '+', // KP_Add
	0xffac: ',', // KP_Separator
	0xffad: '-', // KP_Subtract
	0xffae: '.', // KP_Decimal
	0xffaf: '/', // KP_Divide
	0xffbd: '=', // KP_Equal
}

// Rune returns the code point a keysym produces, or 0 if it produces none.
func Rune(sym Sym) rune {
	switch {
	case sym >= 0x20 && sym <= 0x7e:
		return rune(sym)
	case sym >= 0xa0 && sym <= 0xff:
		return rune(sym)
	case sym >= unicodeMin && sym <= unicodeMax:
		return rune(sym - unicodeOffset)
	case sym >= 0xffb0 && sym <= 0xffb9: // KP_0 .. KP_9
		return rune('0' + sym - 0xffb0)
	case sym == EuroSign:
		return '€'
	}
	if r, ok := keypad[sym]; ok {
		return r
	}
	return 0
}

// ToUTF8 returns the text a keysym types. Keysyms without a printable
// rendering (modifiers, cursor keys, control characters such as Return)
// report false.
func ToUTF8(sym Sym) (string, bool) {
	r := Rune(sym)
	if r == 0 || !utf8.ValidRune(r) || unicode.IsControl(r) {
		return "", false
	}
	return string(r), true
}

var names = map[Sym]string{
	Space:      "space",
	Quotedbl:   "quotedbl",
	Apostrophe: "apostrophe",
	BackSpace:  "BackSpace",
	Tab:        "Tab",
	Return:     "Return",
	Escape:     "Escape",
	MultiKey:   "Multi_key",
	Left:       "Left",
	Up:         "Up",
	Right:      "Right",
	Down:       "Down",
	Delete:     "Delete",
	ShiftL:     "Shift_L",
	ShiftR:     "Shift_R",
	ControlL:   "Control_L",
	ControlR:   "Control_R",
	AltL:       "Alt_L",
	AltR:       "Alt_R",
	EuroSign:   "EuroSign",
}

// Name returns a keysym name suitable for logs. Letters and digits are named
// by themselves, unnamed syms are rendered in hex.
func Name(sym Sym) string {
	if n, ok := names[sym]; ok {
		return n
	}
	if (sym >= '0' && sym <= '9') || (sym >= 'A' && sym <= 'Z') || (sym >= 'a' && sym <= 'z') {
		return string(rune(sym))
	}
	if sym >= unicodeMin && sym <= unicodeMax {
		return fmt.Sprintf("U%04X", uint32(sym-unicodeOffset))
	}
	return fmt.Sprintf("0x%04x", uint32(sym))
}

// String implements fmt.Stringer.
func (s Sym) String() string {
	return Name(s)
}
