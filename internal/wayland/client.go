package wayland

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"composeim/internal/session"
)

var ErrNoInputMethod = errors.New("wayland: compositor does not offer " + InputMethodInterface)

// ProtocolError is a fatal wl_display.error event.
type ProtocolError struct {
	Object  uint32
	Code    uint32
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland: protocol error on object %d (code %d): %s", e.Object, e.Code, e.Message)
}

// object receives events addressed to one id.
type object interface {
	dispatch(opcode uint16, r *reader) error
}

// Transport is the message stream a Client runs over. *Conn implements it.
type Transport interface {
	ReadMessage() (Message, error)
	TakeFD() (int, error)
	WriteMessage(p []byte, fds ...int) error
	Close() error
}

// Config wires a Client to its session.
type Config struct {
	Activation session.ActivationHandler
	Keyboard   session.KeyboardHandler
	Logger     *slog.Logger
}

// Client owns the object map of one connection.
type Client struct {
	t   Transport
	log *slog.Logger

	activation session.ActivationHandler
	keyboard   session.KeyboardHandler

	objects map[uint32]object
	nextID  uint32

	registry *registry
	im       *inputMethod
	stray    uint64
}

// NewClient prepares a client; no request is sent until Run.
func NewClient(t Transport, cfg Config) *Client {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &Client{
		t:          t,
		log:        cfg.Logger,
		activation: cfg.Activation,
		keyboard:   cfg.Keyboard,
		objects:    make(map[uint32]object),
		nextID:     displayID + 1,
	}
	c.objects[displayID] = &display{c: c}
	return c
}

// Run binds the input method and dispatches events until ctx is cancelled
// or the connection fails.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { c.t.Close() })
	defer stop()
	if conn, ok := c.t.(*Conn); ok {
		defer conn.DiscardFDs()
	}

	err := c.bind()
	for err == nil {
		err = c.dispatchOne()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// bind discovers the input-method global and binds it.
func (c *Client) bind() error {
	c.registry = &registry{c: c, id: c.newID()}
	c.objects[c.registry.id] = c.registry
	if err := c.send(newBuilder(displayID, displayGetRegistry).putUint(c.registry.id)); err != nil {
		return err
	}
	if err := c.roundtrip(); err != nil {
		return err
	}

	g, ok := c.registry.globals[InputMethodInterface]
	if !ok {
		return ErrNoInputMethod
	}
	c.im = &inputMethod{c: c, id: c.newID(), name: g.name}
	c.objects[c.im.id] = c.im
	version := min(g.version, inputMethodVersion)
	c.log.Info("binding input method", "global", g.name, "version", version)
	return c.send(newBuilder(c.registry.id, registryBind).
		putUint(g.name).
		putString(InputMethodInterface).
		putUint(version).
		putUint(c.im.id))
}

// roundtrip blocks until the compositor has processed every request sent
// so far, dispatching events in the meantime.
func (c *Client) roundtrip() error {
	cb := &callback{id: c.newID()}
	c.objects[cb.id] = cb
	if err := c.send(newBuilder(displayID, displaySync).putUint(cb.id)); err != nil {
		return err
	}
	for !cb.done {
		if err := c.dispatchOne(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) dispatchOne() error {
	m, err := c.t.ReadMessage()
	if err != nil {
		return err
	}
	return c.dispatch(m)
}

func (c *Client) dispatch(m Message) error {
	obj, ok := c.objects[m.Object]
	if !ok {
		// Events racing a destroy request.
		c.stray++
		c.log.Debug("event for unknown object", "object", m.Object, "opcode", m.Opcode)
		return nil
	}
	r := newReader(m, c.t.TakeFD)
	if err := obj.dispatch(m.Opcode, r); err != nil {
		return err
	}
	if err := r.Err(); err != nil {
		return fmt.Errorf("wayland: decode event %d on object %d: %w", m.Opcode, m.Object, err)
	}
	return nil
}

func (c *Client) newID() uint32 {
	id := c.nextID
	c.nextID++
	return id
}

func (c *Client) send(b *builder) error {
	return c.t.WriteMessage(b.bytes())
}

type display struct {
	c *Client
}

func (d *display) dispatch(opcode uint16, r *reader) error {
	switch opcode {
	case displayEventError:
		e := &ProtocolError{Object: r.readUint(), Code: r.readUint(), Message: r.readString()}
		if err := r.Err(); err != nil {
			return err
		}
		return e
	case displayEventDeleteID:
		id := r.readUint()
		delete(d.c.objects, id)
	}
	return nil
}

type global struct {
	name    uint32
	version uint32
}

type registry struct {
	c       *Client
	id      uint32
	globals map[string]global
}

func (g *registry) dispatch(opcode uint16, r *reader) error {
	switch opcode {
	case registryEventGlobal:
		name, iface, version := r.readUint(), r.readString(), r.readUint()
		if r.Err() != nil {
			return nil
		}
		if g.globals == nil {
			g.globals = make(map[string]global)
		}
		g.globals[iface] = global{name: name, version: version}
	case registryEventGlobalRemove:
		name := r.readUint()
		if im := g.c.im; im != nil && im.name == name {
			g.c.log.Warn("input method global removed", "global", name)
		}
	}
	return nil
}

type callback struct {
	id   uint32
	done bool
}

func (cb *callback) dispatch(opcode uint16, r *reader) error {
	if opcode == callbackEventDone {
		r.readUint()
		cb.done = true
	}
	return nil
}
