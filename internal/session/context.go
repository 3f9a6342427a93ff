package session

// ActivationContext is the state of one activation: the binding's handle,
// the latest serials, and whether a pre-edit is on screen.
type ActivationContext struct {
	id      uint64
	ctx     Context
	serial  uint32
	preedit bool

	// stateSerial is the last commit_state serial. Text requests carry it
	// once one has arrived.
	stateSerial uint32
	hasState    bool
}

// ID is a per-session activation counter, starting at 1.
func (a *ActivationContext) ID() uint64 { return a.id }

// Context returns the binding handle.
func (a *ActivationContext) Context() Context { return a.ctx }

// Serial returns the serial of the latest keyboard event, attached to
// forwarded keys and modifiers.
func (a *ActivationContext) Serial() uint32 { return a.serial }

// StateSerial returns the serial attached to commit and pre-edit requests:
// the last commit_state serial, or the keyboard serial before any arrived.
func (a *ActivationContext) StateSerial() uint32 {
	if a.hasState {
		return a.stateSerial
	}
	return a.serial
}

// PreeditShown reports whether a non-empty pre-edit was sent and not cleared.
func (a *ActivationContext) PreeditShown() bool { return a.preedit }
