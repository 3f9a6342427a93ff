package xkb

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// ErrUnavailable wraps failures to load libxkbcommon.
var ErrUnavailable = errors.New("xkb: libxkbcommon unavailable")

var libNames = []string{"libxkbcommon.so.0", "libxkbcommon.so"}

type lib struct {
	handle uintptr

	contextNew          func(flags uint32) uintptr
	contextUnref        func(ctx uintptr)
	keymapNewFromString func(ctx uintptr, text string, format, flags uint32) uintptr
	keymapUnref         func(keymap uintptr)
	stateNew            func(keymap uintptr) uintptr
	stateUnref          func(state uintptr)
	stateKeyGetOneSym   func(state uintptr, key uint32) uint32
	stateUpdateMask     func(state uintptr, depressed, latched, locked, depressedLayout, latchedLayout, lockedLayout uint32) uint32
	keysymToUTF32       func(sym uint32) uint32
}

var (
	loadOnce sync.Once
	loaded   *lib
	loadErr  error
)

// load opens libxkbcommon once per process.
func load() (*lib, error) {
	loadOnce.Do(func() {
		loaded, loadErr = open()
	})
	return loaded, loadErr
}

func open() (*lib, error) {
	var (
		handle uintptr
		err    error
	)
	for _, name := range libNames {
		handle, err = purego.Dlopen(name, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	l := &lib{handle: handle}
	purego.RegisterLibFunc(&l.contextNew, handle, "xkb_context_new")
	purego.RegisterLibFunc(&l.contextUnref, handle, "xkb_context_unref")
	purego.RegisterLibFunc(&l.keymapNewFromString, handle, "xkb_keymap_new_from_string")
	purego.RegisterLibFunc(&l.keymapUnref, handle, "xkb_keymap_unref")
	purego.RegisterLibFunc(&l.stateNew, handle, "xkb_state_new")
	purego.RegisterLibFunc(&l.stateUnref, handle, "xkb_state_unref")
	purego.RegisterLibFunc(&l.stateKeyGetOneSym, handle, "xkb_state_key_get_one_sym")
	purego.RegisterLibFunc(&l.stateUpdateMask, handle, "xkb_state_update_mask")
	purego.RegisterLibFunc(&l.keysymToUTF32, handle, "xkb_keysym_to_utf32")
	return l, nil
}

// Available reports whether libxkbcommon can be loaded.
func Available() bool {
	_, err := load()
	return err == nil
}
