package session

import (
	"time"

	"composeim/internal/compose"
	"composeim/internal/keysym"
)

// Context is the outbound side of one activation, supplied by the binding.
// Every request carries the serial of the event that caused it.
type Context interface {
	// CommitString finalizes text into the client document.
	CommitString(serial uint32, text string) error
	// PreeditString replaces the pre-edit text. An empty text clears it.
	PreeditString(serial uint32, text, commit string) error
	// ForwardKey sends a raw key event back to the client.
	ForwardKey(serial, time, key uint32, state compose.KeyState) error
	// Modifiers relays the keyboard modifier state to the client.
	Modifiers(serial, depressed, latched, locked, group uint32) error
	// GrabKeyboard claims the keyboard for this activation.
	GrabKeyboard() error
	// Destroy releases the activation on the transport side.
	Destroy() error
}

// Codec turns hardware key codes into keysyms.
type Codec interface {
	compose.Translator

	// LoadKeymap installs a keymap delivered as a file descriptor.
	LoadKeymap(format uint32, fd int, size uint32) error
	// Decode resolves an evdev key code under the current modifiers.
	Decode(key uint32) keysym.Sym
	// UpdateModifiers records a new modifier state.
	UpdateModifiers(depressed, latched, locked, group uint32)
}

// ComposeEvent is one finished compose run.
type ComposeEvent struct {
	Sequence compose.Sequence
	Text     string
	Outcome  compose.Outcome
	At       time.Time
}

// Recorder receives finished compose runs.
type Recorder interface {
	RecordCompose(ev ComposeEvent) error
}

// ActivationHandler receives activation lifecycle events.
type ActivationHandler interface {
	Activate(ctx Context) error
	Deactivate(ctx Context) error
	Reset(ctx Context)
	SurroundingText(ctx Context, text string, cursor, anchor uint32)
	CommitState(ctx Context, serial uint32)
}

// KeyboardHandler receives keyboard events for the grabbed keyboard.
type KeyboardHandler interface {
	Keymap(ctx Context, format uint32, fd int, size uint32) error
	Key(ctx Context, serial, time, key uint32, state compose.KeyState) error
	Modifiers(ctx Context, serial, depressed, latched, locked, group uint32) error
}
