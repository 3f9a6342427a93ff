// Package compose implements the compose-key sequence engine.
//
// A compose run starts when Multi_key is released. Each further key release
// is appended to a bounded Sequence and looked up in a sorted Table:
//
//	Multi_key  "  A
//	    │      │  │
//	    │      │  └─ [" A] complete  → preedit "", commit "Ä"
//	    │      └──── ["]   pending   → preedit "\""
//	    └─────────── enter Composing
//
// A sequence that cannot extend any entry is committed as the literal text of
// its keys. Shift keys are forwarded untouched while composing so shifted
// variants can be typed.
//
// The Engine is a plain state machine: it never blocks and holds no
// references to the protocol. Callers translate each Decision into protocol
// requests (see package session).
package compose
