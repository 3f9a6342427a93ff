package compose

import (
	"slices"

	"composeim/internal/keysym"
)

// State is the engine mode.
type State int

const (
	// Normal passes keys through or commits them one by one.
	Normal State = iota
	// Composing accumulates released keys into the sequence.
	Composing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Normal:
		return "normal"
	case Composing:
		return "composing"
	default:
		return "unknown"
	}
}

// KeyState is the edge of a key event. The values match wl_keyboard.key_state.
type KeyState uint32

const (
	Released KeyState = 0
	Pressed  KeyState = 1
)

// String returns the edge name.
func (k KeyState) String() string {
	if k == Pressed {
		return "pressed"
	}
	return "released"
}

// Action is what the caller must do with a key event.
type Action int

const (
	// Ignore swallows the event.
	Ignore Action = iota
	// PassThrough forwards the original hardware event.
	PassThrough
	// Commit finalizes Decision.Text into the document.
	Commit
	// Preedit shows Decision.Text as uncommitted text.
	Preedit
	// ForwardModifier forwards a modifier key raw while composing.
	ForwardModifier
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case Ignore:
		return "ignore"
	case PassThrough:
		return "pass-through"
	case Commit:
		return "commit"
	case Preedit:
		return "preedit"
	case ForwardModifier:
		return "forward-modifier"
	default:
		return "unknown"
	}
}

// Outcome describes how a compose run ended. It is set only on the decision
// that leaves Composing.
type Outcome int

const (
	OutcomeNone Outcome = iota
	// OutcomeMatched committed a table entry.
	OutcomeMatched
	// OutcomeUnmatched committed the literal keys.
	OutcomeUnmatched
	// OutcomeOverflow hit the sequence capacity.
	OutcomeOverflow
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeMatched:
		return "matched"
	case OutcomeUnmatched:
		return "unmatched"
	case OutcomeOverflow:
		return "overflow"
	default:
		return "unknown"
	}
}

// Decision is the engine's answer to one key event.
type Decision struct {
	Action Action
	Text   string

	// ClearPreedit asks for the pre-edit to be cleared before a commit.
	ClearPreedit bool

	Outcome  Outcome
	Sequence Sequence
}

// Translator renders keysyms as text. ok is false for keys that type
// nothing.
type Translator interface {
	ToUTF8(sym keysym.Sym) (text string, ok bool)
}

// TranslatorFunc adapts a function to Translator.
type TranslatorFunc func(sym keysym.Sym) (string, bool)

// ToUTF8 implements Translator.
func (f TranslatorFunc) ToUTF8(sym keysym.Sym) (string, bool) {
	return f(sym)
}

// ComposeExceptions are forwarded raw while composing so that shifted keys
// can be part of a sequence.
var ComposeExceptions = []keysym.Sym{
	keysym.ShiftL,
	keysym.ShiftR,
}

// Engine is the compose state machine. It is not safe for concurrent use.
type Engine struct {
	table      *Table
	translator Translator
	state      State
	seq        Sequence
}

// NewEngine returns an engine in Normal state. A nil table selects
// DefaultTable, a nil translator selects keysym.ToUTF8.
func NewEngine(table *Table, translator Translator) *Engine {
	if table == nil {
		table = DefaultTable()
	}
	if translator == nil {
		translator = TranslatorFunc(keysym.ToUTF8)
	}
	return &Engine{table: table, translator: translator}
}

// State returns the current mode.
func (e *Engine) State() State {
	return e.state
}

// Sequence returns the keys accumulated in the current compose run.
func (e *Engine) Sequence() Sequence {
	return e.seq
}

// Reset drops any compose run and returns to Normal.
func (e *Engine) Reset() {
	e.state = Normal
	e.seq = Sequence{}
}

// HandleKey consumes one key event.
func (e *Engine) HandleKey(sym keysym.Sym, edge KeyState) Decision {
	if e.state == Composing {
		return e.compose(sym, edge)
	}

	if sym == keysym.MultiKey && edge == Released {
		e.state = Composing
		e.seq = Sequence{}
		return Decision{Action: Ignore}
	}

	text, ok := e.translator.ToUTF8(sym)
	if !ok {
		return Decision{Action: PassThrough}
	}
	if edge == Pressed {
		return Decision{Action: Ignore}
	}
	return Decision{Action: Commit, Text: text}
}

func (e *Engine) compose(sym keysym.Sym, edge KeyState) Decision {
	if slices.Contains(ComposeExceptions, sym) {
		return Decision{Action: ForwardModifier}
	}
	if edge == Pressed {
		return Decision{Action: Ignore}
	}

	seq, ok := e.seq.append(sym)
	if !ok {
		// The overflowing key is dropped.
		return e.finish(literal(e.translator, e.seq), OutcomeOverflow)
	}
	e.seq = seq

	entry, match := e.table.Lookup(seq)
	switch match {
	case Complete:
		return e.finish(entry.Text, OutcomeMatched)
	case Pending:
		return Decision{Action: Preedit, Text: literal(e.translator, seq), Sequence: seq}
	default:
		return e.finish(literal(e.translator, seq), OutcomeUnmatched)
	}
}

func (e *Engine) finish(text string, outcome Outcome) Decision {
	d := Decision{
		Action:       Commit,
		Text:         text,
		ClearPreedit: true,
		Outcome:      outcome,
		Sequence:     e.seq,
	}
	e.Reset()
	return d
}
