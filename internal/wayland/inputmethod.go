package wayland

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"composeim/internal/compose"
	"composeim/internal/session"
)

var ErrContextDestroyed = errors.New("wayland: input method context destroyed")

// inputMethod is the bound zwp_input_method_v1 global.
type inputMethod struct {
	c    *Client
	id   uint32
	name uint32
}

func (im *inputMethod) dispatch(opcode uint16, r *reader) error {
	switch opcode {
	case inputMethodEventActivate:
		id := r.readUint()
		if r.Err() != nil {
			return nil
		}
		ctx := &inputContext{c: im.c, id: id}
		im.c.objects[id] = ctx
		im.c.log.Debug("activate", "context", id)
		return im.c.activation.Activate(ctx)

	case inputMethodEventDeactivate:
		id := r.readUint()
		if r.Err() != nil {
			return nil
		}
		ctx, ok := im.c.objects[id].(*inputContext)
		if !ok {
			im.c.log.Debug("deactivate for unknown context", "context", id)
			return nil
		}
		return im.c.activation.Deactivate(ctx)
	}
	return nil
}

// inputContext is one zwp_input_method_context_v1. It implements
// session.Context.
type inputContext struct {
	c         *Client
	id        uint32
	destroyed bool
}

var _ session.Context = (*inputContext)(nil)

func (ic *inputContext) request(b *builder) error {
	if ic.destroyed {
		return ErrContextDestroyed
	}
	return ic.c.send(b)
}

func (ic *inputContext) CommitString(serial uint32, text string) error {
	return ic.request(newBuilder(ic.id, contextCommitString).putUint(serial).putString(text))
}

func (ic *inputContext) PreeditString(serial uint32, text, commit string) error {
	return ic.request(newBuilder(ic.id, contextPreeditString).putUint(serial).putString(text).putString(commit))
}

func (ic *inputContext) ForwardKey(serial, time, key uint32, state compose.KeyState) error {
	return ic.request(newBuilder(ic.id, contextKey).putUint(serial).putUint(time).putUint(key).putUint(uint32(state)))
}

func (ic *inputContext) Modifiers(serial, depressed, latched, locked, group uint32) error {
	return ic.request(newBuilder(ic.id, contextModifiers).
		putUint(serial).
		putUint(depressed).
		putUint(latched).
		putUint(locked).
		putUint(group))
}

// GrabKeyboard creates a wl_keyboard whose events are scoped to ic.
func (ic *inputContext) GrabKeyboard() error {
	if ic.destroyed {
		return ErrContextDestroyed
	}
	kb := &keyboard{c: ic.c, id: ic.c.newID(), ctx: ic}
	ic.c.objects[kb.id] = kb
	return ic.request(newBuilder(ic.id, contextGrabKeyboard).putUint(kb.id))
}

// Destroy sends the destructor and forgets the id. The grabbed keyboard
// stays registered so that late events are still decoded, descriptors
// included, and reach the session as stray.
func (ic *inputContext) Destroy() error {
	if ic.destroyed {
		return nil
	}
	err := ic.c.send(newBuilder(ic.id, contextDestroy))
	ic.destroyed = true
	delete(ic.c.objects, ic.id)
	return err
}

func (ic *inputContext) dispatch(opcode uint16, r *reader) error {
	h := ic.c.activation
	switch opcode {
	case contextEventSurroundingText:
		text, cursor, anchor := r.readString(), r.readUint(), r.readUint()
		if r.Err() == nil {
			h.SurroundingText(ic, text, cursor, anchor)
		}
	case contextEventReset:
		h.Reset(ic)
	case contextEventContentType:
		hint, purpose := r.readUint(), r.readUint()
		ic.c.log.Debug("content type", "context", ic.id, "hint", hint, "purpose", purpose)
	case contextEventInvokeButton:
		button, index := r.readUint(), r.readUint()
		ic.c.log.Debug("invoke button", "context", ic.id, "button", button, "index", index)
	case contextEventCommitState:
		serial := r.readUint()
		if r.Err() == nil {
			h.CommitState(ic, serial)
		}
	case contextEventPreferredLanguage:
		lang := r.readString()
		ic.c.log.Debug("preferred language", "context", ic.id, "language", lang)
	}
	return nil
}

// keyboard is the wl_keyboard created by grab_keyboard.
type keyboard struct {
	c   *Client
	id  uint32
	ctx *inputContext
}

func (kb *keyboard) dispatch(opcode uint16, r *reader) error {
	h := kb.c.keyboard
	switch opcode {
	case keyboardEventKeymap:
		format, fd, size := r.readUint(), r.readFD(), r.readUint()
		if fd < 0 {
			return nil
		}
		defer unix.Close(fd)
		if r.Err() != nil {
			return nil
		}
		if err := h.Keymap(kb.ctx, format, fd, size); err != nil {
			kb.c.log.Warn("keymap rejected", "error", err)
		}
	case keyboardEventEnter:
		// Keys held at grab time are reported once and never released to us.
		serial, _, keys := r.readUint(), r.readUint(), r.readArray()
		if r.Err() != nil {
			return nil
		}
		kb.c.log.Debug("keyboard enter", "serial", serial, "held", len(keys)/4)
	case keyboardEventLeave:
		kb.c.log.Debug("keyboard leave", "serial", r.readUint())
	case keyboardEventKey:
		serial, time, key, state := r.readUint(), r.readUint(), r.readUint(), r.readUint()
		if r.Err() != nil {
			return nil
		}
		if err := h.Key(kb.ctx, serial, time, key, compose.KeyState(state)); err != nil {
			return fmt.Errorf("wayland: key: %w", err)
		}
	case keyboardEventModifiers:
		serial, depressed, latched, locked, group := r.readUint(), r.readUint(), r.readUint(), r.readUint(), r.readUint()
		if r.Err() != nil {
			return nil
		}
		if err := h.Modifiers(kb.ctx, serial, depressed, latched, locked, group); err != nil {
			return fmt.Errorf("wayland: modifiers: %w", err)
		}
	case keyboardEventRepeatInfo:
		rate, delay := r.readInt(), r.readInt()
		kb.c.log.Debug("repeat info", "rate", rate, "delay", delay)
	}
	return nil
}
