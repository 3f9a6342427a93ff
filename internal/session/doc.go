// Package session bridges the compose engine to an input-method transport.
//
// A binding (Wayland or IBus) constructs one Session and delivers events to
// the two handler objects it exposes:
//
//	ActivationHandler  activate, deactivate, reset, surrounding text, commit state
//	KeyboardHandler    keymap, key, modifiers
//
// Each activation is represented by an ActivationContext wrapping the
// binding's Context. Events carrying a Context other than the current one are
// stray and are dropped.
//
// A Session is not safe for concurrent use. Bindings dispatch events from a
// single goroutine or serialize them.
package session
