// composeim is a compose-key input method. It speaks zwp_input_method_v1 to
// Wayland compositors, or registers as an IBus engine, and turns
// Multi_key sequences into committed text.
//
// Usage:
//
//	composeim run                 # Wayland input method
//	composeim ibus install        # write the IBus component file
//	composeim ibus run            # IBus engine (started by ibus-daemon)
//	composeim stats               # compose usage
//	composeim table               # built-in compose table
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
