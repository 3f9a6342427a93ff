package session

import (
	"fmt"
	"log/slog"
	"time"

	"composeim/internal/compose"
	"composeim/internal/keysym"
)

// Config configures a Session. Zero fields select defaults.
type Config struct {
	// Table is the compose table. Defaults to compose.DefaultTable.
	Table *compose.Table
	// Codec decodes hardware keys. Defaults to PlainCodec.
	Codec Codec
	// Recorder receives finished compose runs. Optional.
	Recorder Recorder
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// Now is the clock used for recorded events.
	Now func() time.Time
}

// KeyEvent is a key event with its keysym already resolved.
type KeyEvent struct {
	Serial uint32
	Time   uint32
	Key    uint32
	Sym    keysym.Sym
	State  compose.KeyState
}

// Session owns the compose engine and the current activation.
type Session struct {
	log      *slog.Logger
	codec    Codec
	recorder Recorder
	now      func() time.Time
	engine   *compose.Engine

	active *ActivationContext
	nextID uint64
	stats  Stats
}

// New creates a Session with no activation.
func New(cfg Config) *Session {
	if cfg.Codec == nil {
		cfg.Codec = PlainCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		log:      cfg.Logger,
		codec:    cfg.Codec,
		recorder: cfg.Recorder,
		now:      cfg.Now,
		engine:   compose.NewEngine(cfg.Table, cfg.Codec),
	}
}

// ActivationHandler returns the handler for lifecycle events.
func (s *Session) ActivationHandler() ActivationHandler { return s }

// KeyboardHandler returns the handler for keyboard events.
func (s *Session) KeyboardHandler() KeyboardHandler { return s }

// Active returns the current activation, or nil.
func (s *Session) Active() *ActivationContext { return s.active }

// EngineState returns the compose engine mode.
func (s *Session) EngineState() compose.State { return s.engine.State() }

// Pending returns the keys of the compose run in progress.
func (s *Session) Pending() compose.Sequence { return s.engine.Sequence() }

// Stats returns a snapshot of the event counters.
func (s *Session) Stats() Stats { return s.stats }

// Activate replaces any current activation with a fresh one for ctx and
// grabs the keyboard.
func (s *Session) Activate(ctx Context) error {
	if s.active != nil {
		id := s.active.id
		s.log.Debug("replacing activation", "id", id)
		if err := s.teardown(); err != nil {
			s.stats.Errors++
			s.log.Warn("destroy replaced context", "id", id, "error", err)
		}
	}

	s.nextID++
	s.active = &ActivationContext{id: s.nextID, ctx: ctx}
	s.engine.Reset()
	s.stats.Activations++
	s.log.Info("activated", "id", s.active.id)

	if err := ctx.GrabKeyboard(); err != nil {
		s.stats.Errors++
		return fmt.Errorf("session: grab keyboard: %w", err)
	}
	return nil
}

// Deactivate destroys the current activation. Events for any other context
// are ignored. Pending compose state is discarded without emission.
func (s *Session) Deactivate(ctx Context) error {
	if s.active == nil || s.active.ctx != ctx {
		s.stray("deactivate")
		return nil
	}
	id := s.active.id
	err := s.teardown()
	s.stats.Deactivations++
	s.log.Info("deactivated", "id", id)
	if err != nil {
		s.stats.Errors++
		return fmt.Errorf("session: destroy context: %w", err)
	}
	return nil
}

func (s *Session) teardown() error {
	ac := s.active
	s.active = nil
	s.engine.Reset()
	return ac.ctx.Destroy()
}

// Reset returns the engine to Normal without leaving the activation.
func (s *Session) Reset(ctx Context) {
	ac, ok := s.current(ctx, "reset")
	if !ok {
		return
	}
	s.engine.Reset()
	ac.preedit = false
	s.stats.Resets++
	s.log.Debug("reset", "id", ac.id)
}

// SurroundingText is logged only.
func (s *Session) SurroundingText(ctx Context, text string, cursor, anchor uint32) {
	if _, ok := s.current(ctx, "surrounding_text"); !ok {
		return
	}
	s.log.Debug("surrounding text", "len", len(text), "cursor", cursor, "anchor", anchor)
}

// CommitState records the serial to attach to later commit and pre-edit
// requests.
func (s *Session) CommitState(ctx Context, serial uint32) {
	ac, ok := s.current(ctx, "commit_state")
	if !ok {
		return
	}
	ac.stateSerial = serial
	ac.hasState = true
}

// Keymap hands the keymap to the codec. The caller keeps ownership of fd.
func (s *Session) Keymap(ctx Context, format uint32, fd int, size uint32) error {
	if _, ok := s.current(ctx, "keymap"); !ok {
		return nil
	}
	if err := s.codec.LoadKeymap(format, fd, size); err != nil {
		s.stats.Errors++
		return fmt.Errorf("session: load keymap: %w", err)
	}
	s.log.Debug("keymap loaded", "format", format, "size", size)
	return nil
}

// Modifiers updates the codec, then relays the state to the current
// activation in the order depressed, latched, locked, group.
func (s *Session) Modifiers(ctx Context, serial, depressed, latched, locked, group uint32) error {
	s.codec.UpdateModifiers(depressed, latched, locked, group)

	ac, ok := s.current(ctx, "modifiers")
	if !ok {
		return nil
	}
	ac.serial = serial
	if err := ac.ctx.Modifiers(serial, depressed, latched, locked, group); err != nil {
		s.stats.Errors++
		return fmt.Errorf("session: modifiers: %w", err)
	}
	return nil
}

// Key decodes a hardware key and feeds it to the engine.
func (s *Session) Key(ctx Context, serial, msec, key uint32, state compose.KeyState) error {
	return s.HandleKey(ctx, KeyEvent{
		Serial: serial,
		Time:   msec,
		Key:    key,
		Sym:    s.codec.Decode(key),
		State:  state,
	})
}

// HandleKey feeds a resolved key event to the engine and issues the
// resulting requests on ctx.
func (s *Session) HandleKey(ctx Context, ev KeyEvent) error {
	ac, ok := s.current(ctx, "key")
	if !ok {
		return nil
	}
	ac.serial = ev.Serial
	s.stats.Keys++

	d := s.engine.HandleKey(ev.Sym, ev.State)
	s.log.Debug("key", "serial", ev.Serial, "sym", ev.Sym, "state", ev.State, "action", d.Action)

	if d.Outcome != compose.OutcomeNone {
		s.finished(d)
	}
	if err := s.apply(ac, ev, d); err != nil {
		s.stats.Errors++
		return err
	}
	return nil
}

func (s *Session) apply(ac *ActivationContext, ev KeyEvent, d compose.Decision) error {
	switch d.Action {
	case compose.Ignore:
		return nil

	case compose.PassThrough, compose.ForwardModifier:
		s.stats.Forwards++
		if err := ac.ctx.ForwardKey(ac.serial, ev.Time, ev.Key, ev.State); err != nil {
			return fmt.Errorf("session: forward key: %w", err)
		}
		return nil

	case compose.Preedit:
		s.stats.Preedits++
		ac.preedit = d.Text != ""
		if err := ac.ctx.PreeditString(ac.StateSerial(), d.Text, d.Text); err != nil {
			return fmt.Errorf("session: preedit: %w", err)
		}
		return nil

	case compose.Commit:
		if ac.preedit || d.ClearPreedit {
			ac.preedit = false
			if err := ac.ctx.PreeditString(ac.StateSerial(), "", ""); err != nil {
				return fmt.Errorf("session: clear preedit: %w", err)
			}
		}
		if d.Text == "" {
			return nil
		}
		s.stats.Commits++
		if err := ac.ctx.CommitString(ac.StateSerial(), d.Text); err != nil {
			return fmt.Errorf("session: commit: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("session: unknown action %v", d.Action)
	}
}

func (s *Session) finished(d compose.Decision) {
	switch d.Outcome {
	case compose.OutcomeMatched:
		s.stats.Composed++
	case compose.OutcomeUnmatched:
		s.stats.Unmatched++
	case compose.OutcomeOverflow:
		s.stats.Overflows++
	}
	s.log.Debug("compose finished", "sequence", d.Sequence.String(), "outcome", d.Outcome, "text", d.Text)

	if s.recorder == nil {
		return
	}
	ev := ComposeEvent{Sequence: d.Sequence, Text: d.Text, Outcome: d.Outcome, At: s.now()}
	if err := s.recorder.RecordCompose(ev); err != nil {
		s.log.Warn("record compose", "error", err)
	}
}

func (s *Session) current(ctx Context, event string) (*ActivationContext, bool) {
	if s.active == nil || s.active.ctx != ctx {
		s.stray(event)
		return nil, false
	}
	return s.active, true
}

func (s *Session) stray(event string) {
	s.stats.Stray++
	s.log.Debug("stray event", "event", event, "active", s.active != nil)
}
