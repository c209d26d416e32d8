package types

// Event is the wire form of a contract event: a dotted type name plus string
// attributes. Addresses are bech32 and integers decimal.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns the named attribute.
func (e *Event) Attr(key string) (string, bool) {
	if e == nil || e.Attributes == nil {
		return "", false
	}
	v, ok := e.Attributes[key]
	return v, ok
}
