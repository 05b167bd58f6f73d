package model

// Well-known property names the pipeline cares about.
const (
	PropVersion = "VERSION"
	PropProdID  = "PRODID"
	PropUID     = "UID"
	PropDTStamp = "DTSTAMP"
	PropDTStart = "DTSTART"
	PropDTEnd   = "DTEND"
	PropSummary = "SUMMARY"
)

// Property is a single name/value pair attached to a calendar or an event.
// Names are case-sensitive and may repeat on the same entity.
type Property struct {
	Name   string              `json:"name"`
	Value  string              `json:"value"`
	Params map[string][]string `json:"params,omitempty"`

	// NoValue marks a property that carried no value at all. Value is empty
	// in that case and is read as absent rather than as "". iCalendar text
	// always carries a value, possibly empty, so decoded properties never set
	// it.
	NoValue bool `json:"no_value,omitempty"`
}

// Clone returns a copy of p that shares no maps or slices with it.
func (p Property) Clone() Property {
	out := p
	if len(p.Params) == 0 {
		out.Params = nil
		return out
	}
	out.Params = make(map[string][]string, len(p.Params))
	for k, vs := range p.Params {
		out.Params[k] = append([]string(nil), vs...)
	}
	return out
}

// Event is one VEVENT, represented only by its ordered property list.
type Event struct {
	Properties []Property `json:"properties"`
}

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	props := make([]Property, len(e.Properties))
	for i, p := range e.Properties {
		props[i] = p.Clone()
	}
	return Event{Properties: props}
}

// Calendar is one decoded VCALENDAR: its top-level properties and its events,
// both in document order.
type Calendar struct {
	Properties []Property `json:"properties"`
	Events     []Event    `json:"events"`
}

// Index is a read-only name lookup over a property list, built once per
// entity and discarded after use. When a name repeats, the last occurrence
// wins.
type Index map[string]Property

// NewIndex builds an Index over props.
func NewIndex(props []Property) Index {
	ix := make(Index, len(props))
	for _, p := range props {
		ix[p.Name] = p
	}
	return ix
}

// Has reports whether a property called name exists, with or without a value.
func (ix Index) Has(name string) bool {
	_, ok := ix[name]
	return ok
}

// Value returns the value of the property called name. ok is false when the
// property is missing or carries no value.
func (ix Index) Value(name string) (value string, ok bool) {
	p, found := ix[name]
	if !found || p.NoValue {
		return "", false
	}
	return p.Value, true
}
