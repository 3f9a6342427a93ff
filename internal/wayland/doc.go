// Package wayland is a minimal Wayland client for the zwp_input_method_v1
// protocol.
//
// It speaks the wire format directly: there is no generated binding for the
// input-method interfaces, and the client needs only five of them
// (wl_display, wl_registry, wl_callback, zwp_input_method_v1 with its
// context, and wl_keyboard). Events are dispatched from the goroutine
// calling Client.Run; inbound events reach a session through its
// ActivationHandler and KeyboardHandler.
package wayland
