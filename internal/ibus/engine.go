package ibus

import (
	"unicode/utf8"

	"github.com/godbus/dbus/v5"

	"composeim/internal/compose"
	"composeim/internal/keysym"
	"composeim/internal/session"
)

// Engine is one org.freedesktop.IBus.Engine object. It is also the session
// context while it has focus: requests become IBus signals, and forwarded
// keys are reported back to IBus as unhandled.
type Engine struct {
	svc  *Service
	path dbus.ObjectPath

	forwarded bool
}

var _ session.Context = (*Engine)(nil)

// ProcessKeyEvent feeds one key to the session. It returns true when the
// key was consumed.
func (e *Engine) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	e.svc.mu.Lock()
	defer e.svc.mu.Unlock()

	if !e.active() || state&shortcutMask != 0 {
		return false, nil
	}

	edge := compose.Pressed
	if state&ReleaseMask != 0 {
		edge = compose.Released
	}

	e.forwarded = false
	err := e.svc.sess.HandleKey(e, session.KeyEvent{
		Key:   keycode,
		Sym:   keysym.Sym(keyval),
		State: edge,
	})
	if err != nil {
		e.svc.log.Warn("process key", "keyval", keysym.Sym(keyval), "error", err)
		return false, nil
	}
	return !e.forwarded, nil
}

// FocusIn activates this engine.
func (e *Engine) FocusIn() *dbus.Error {
	e.svc.mu.Lock()
	defer e.svc.mu.Unlock()

	if err := e.svc.sess.Activate(e); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// FocusOut deactivates this engine, dropping any compose run.
func (e *Engine) FocusOut() *dbus.Error {
	e.svc.mu.Lock()
	defer e.svc.mu.Unlock()

	if err := e.svc.sess.Deactivate(e); err != nil {
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Reset abandons the compose run, hiding its pre-edit if one is shown.
func (e *Engine) Reset() *dbus.Error {
	e.svc.mu.Lock()
	defer e.svc.mu.Unlock()

	shown := e.active() && e.svc.sess.Active().PreeditShown()
	e.svc.sess.Reset(e)
	if shown {
		e.hidePreedit()
	}
	return nil
}

// Enable is a no-op.
func (e *Engine) Enable() *dbus.Error { return nil }

// Disable behaves like FocusOut.
func (e *Engine) Disable() *dbus.Error { return e.FocusOut() }

// SetSurroundingText forwards the text to the session log.
func (e *Engine) SetSurroundingText(text dbus.Variant, cursorPos, anchorPos uint32) *dbus.Error {
	e.svc.mu.Lock()
	defer e.svc.mu.Unlock()

	if s, ok := TextString(text); ok {
		e.svc.sess.SurroundingText(e, s, cursorPos, anchorPos)
	}
	return nil
}

func (e *Engine) SetCapabilities(caps uint32) *dbus.Error {
	e.svc.log.Debug("capabilities", "path", e.path, "caps", caps)
	return nil
}

func (e *Engine) SetContentType(purpose, hints uint32) *dbus.Error {
	e.svc.log.Debug("content type", "path", e.path, "purpose", purpose, "hints", hints)
	return nil
}

func (e *Engine) SetCursorLocation(x, y, w, h int32) *dbus.Error { return nil }

func (e *Engine) PropertyActivate(name string, state uint32) *dbus.Error { return nil }

func (e *Engine) PageUp() *dbus.Error { return nil }

func (e *Engine) PageDown() *dbus.Error { return nil }

func (e *Engine) CursorUp() *dbus.Error { return nil }

func (e *Engine) CursorDown() *dbus.Error { return nil }

func (e *Engine) CandidateClicked(index, button, state uint32) *dbus.Error { return nil }

// Destroy hides the pre-edit when the session drops this activation.
func (e *Engine) Destroy() error {
	e.hidePreedit()
	return nil
}

func (e *Engine) active() bool {
	ac := e.svc.sess.Active()
	return ac != nil && ac.Context() == e
}

func (e *Engine) emit(signal string, values ...interface{}) error {
	return e.svc.bus.Emit(e.path, EngineInterface+"."+signal, values...)
}

func (e *Engine) hidePreedit() {
	if err := e.emit("HidePreeditText"); err != nil {
		e.svc.log.Warn("hide preedit", "error", err)
	}
}

// CommitString emits CommitText.
func (e *Engine) CommitString(serial uint32, text string) error {
	return e.emit("CommitText", NewText(text))
}

// PreeditString emits UpdatePreeditText with the cursor after the text.
func (e *Engine) PreeditString(serial uint32, text, commit string) error {
	cursor := uint32(utf8.RuneCountInString(text))
	return e.emit("UpdatePreeditText", NewText(text), cursor, text != "")
}

// ForwardKey marks the current key as unhandled so IBus delivers it.
func (e *Engine) ForwardKey(serial, time, key uint32, state compose.KeyState) error {
	e.forwarded = true
	return nil
}

// Modifiers is tracked by IBus itself.
func (e *Engine) Modifiers(serial, depressed, latched, locked, group uint32) error {
	return nil
}

// GrabKeyboard is implicit in IBus focus.
func (e *Engine) GrabKeyboard() error { return nil }
