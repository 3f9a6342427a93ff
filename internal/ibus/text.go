package ibus

import "github.com/godbus/dbus/v5"

// Text is the IBusText serializable: (sa{sv}sv).
type Text struct {
	Name        string
	Attachments map[string]dbus.Variant
	Text        string
	Attrs       dbus.Variant
}

// AttrList is the IBusAttrList serializable: (sa{sv}av).
type AttrList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Attributes  []dbus.Variant
}

// NewText wraps s as a variant holding an IBusText with no attributes.
func NewText(s string) dbus.Variant {
	return dbus.MakeVariant(Text{
		Name:        "IBusText",
		Attachments: map[string]dbus.Variant{},
		Text:        s,
		Attrs: dbus.MakeVariant(AttrList{
			Name:        "IBusAttrList",
			Attachments: map[string]dbus.Variant{},
			Attributes:  []dbus.Variant{},
		}),
	})
}

// TextString extracts the string from an IBusText variant, either built
// locally or as decoded from the bus.
func TextString(v dbus.Variant) (string, bool) {
	switch t := v.Value().(type) {
	case Text:
		return t.Text, t.Name == "IBusText"
	case []interface{}:
		if len(t) < 3 {
			return "", false
		}
		if name, _ := t[0].(string); name != "IBusText" {
			return "", false
		}
		s, ok := t[2].(string)
		return s, ok
	default:
		return "", false
	}
}
