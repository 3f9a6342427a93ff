package session

// Stats counts session events since construction.
type Stats struct {
	Activations   uint64 `json:"activations"`
	Deactivations uint64 `json:"deactivations"`
	Resets        uint64 `json:"resets"`
	Keys          uint64 `json:"keys"`
	Commits       uint64 `json:"commits"`
	Preedits      uint64 `json:"preedits"`
	Forwards      uint64 `json:"forwards"`
	Composed      uint64 `json:"composed"`
	Unmatched     uint64 `json:"unmatched"`
	Overflows     uint64 `json:"overflows"`
	Stray         uint64 `json:"stray"`
	Errors        uint64 `json:"errors"`
}
