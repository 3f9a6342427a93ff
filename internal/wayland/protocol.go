package wayland

// Interface names as advertised by wl_registry.global.
const (
	InputMethodInterface = "zwp_input_method_v1"
	inputMethodVersion   = 1
)

const displayID = 1

// serverIDBase is the first id the compositor allocates for new_id events.
const serverIDBase = 0xff000000

// wl_display
const (
	displaySync        = 0
	displayGetRegistry = 1

	displayEventError    = 0
	displayEventDeleteID = 1
)

// wl_registry
const (
	registryBind = 0

	registryEventGlobal       = 0
	registryEventGlobalRemove = 1
)

// wl_callback
const callbackEventDone = 0

// zwp_input_method_v1
const (
	inputMethodEventActivate   = 0
	inputMethodEventDeactivate = 1
)

// zwp_input_method_context_v1
const (
	contextDestroy               = 0
	contextCommitString          = 1
	contextPreeditString         = 2
	contextPreeditStyling        = 3
	contextPreeditCursor         = 4
	contextDeleteSurroundingText = 5
	contextCursorPosition        = 6
	contextModifiersMap          = 7
	contextKeysym                = 8
	contextGrabKeyboard          = 9
	contextKey                   = 10
	contextModifiers             = 11
	contextLanguage              = 12
	contextTextDirection         = 13

	contextEventSurroundingText   = 0
	contextEventReset             = 1
	contextEventContentType       = 2
	contextEventInvokeButton      = 3
	contextEventCommitState       = 4
	contextEventPreferredLanguage = 5
)

// wl_keyboard
const (
	keyboardEventKeymap     = 0
	keyboardEventEnter      = 1
	keyboardEventLeave      = 2
	keyboardEventKey        = 3
	keyboardEventModifiers  = 4
	keyboardEventRepeatInfo = 5
)
