package ics

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	ical "github.com/arran4/golang-ical"

	"icalfilter/internal/model"
)

// ErrNoCalendar is returned when a document contains no VCALENDAR at all.
var ErrNoCalendar = errors.New("no calendar found")

// DecodeError reports a malformed document. Index is the position of the
// offending VCALENDAR block, or -1 when the document structure itself is
// broken.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return "decode calendar document: " + e.Err.Error()
	}
	return fmt.Sprintf("decode calendar %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode parses every VCALENDAR in body. The whole document fails if any
// calendar in it fails to parse.
//
// Only VEVENT components are carried into the model; VTIMEZONE, VTODO and
// other components are not part of the filtered output.
func Decode(body []byte) ([]model.Calendar, error) {
	blocks, err := splitCalendars(body)
	if err != nil {
		return nil, &DecodeError{Index: -1, Err: err}
	}
	if len(blocks) == 0 {
		return nil, &DecodeError{Index: -1, Err: ErrNoCalendar}
	}

	cals := make([]model.Calendar, 0, len(blocks))
	for i, block := range blocks {
		parsed, err := ical.ParseCalendar(bytes.NewReader(block))
		if err != nil {
			return nil, &DecodeError{Index: i, Err: err}
		}
		cals = append(cals, fromICal(parsed))
	}
	return cals, nil
}

func fromICal(cal *ical.Calendar) model.Calendar {
	out := model.Calendar{
		Properties: make([]model.Property, 0, len(cal.CalendarProperties)),
	}
	for _, p := range cal.CalendarProperties {
		out.Properties = append(out.Properties, fromBase(p.BaseProperty))
	}

	for _, comp := range cal.Components {
		ve, ok := comp.(*ical.VEvent)
		if !ok {
			continue
		}
		ev := model.Event{Properties: make([]model.Property, 0, len(ve.Properties))}
		for _, p := range ve.Properties {
			ev.Properties = append(ev.Properties, fromBase(p.BaseProperty))
		}
		out.Events = append(out.Events, ev)
	}
	return out
}

// fromBase converts a parsed property. A content line always has a value
// part, so the result is never NoValue; "SUMMARY:" decodes to "".
func fromBase(bp ical.BaseProperty) model.Property {
	return model.Property{
		Name:   bp.IANAToken,
		Value:  bp.Value,
		Params: bp.ICalParameters,
	}.Clone()
}

// Encode serializes cal as a VCALENDAR document. Lines end in CRLF and are
// folded at 75 octets. Parameter values containing a comma, semicolon, colon,
// double quote or backslash are written as quoted strings.
func Encode(cal model.Calendar) []byte {
	var b bytes.Buffer
	writeLine(&b, "BEGIN:"+string(ical.ComponentVCalendar))
	for _, p := range cal.Properties {
		writeLine(&b, contentLine(p))
	}
	for _, ev := range cal.Events {
		writeLine(&b, "BEGIN:"+string(ical.ComponentVEvent))
		for _, p := range ev.Properties {
			writeLine(&b, contentLine(p))
		}
		writeLine(&b, "END:"+string(ical.ComponentVEvent))
	}
	writeLine(&b, "END:"+string(ical.ComponentVCalendar))
	return b.Bytes()
}

const maxLineOctets = 75

// writeLine folds line and appends it to b. Folds never split a UTF-8
// sequence.
func writeLine(b *bytes.Buffer, line string) {
	limit := maxLineOctets
	for len(line) > limit {
		cut := limit
		for !utf8.RuneStart(line[cut]) {
			cut--
		}
		b.WriteString(line[:cut])
		b.WriteString("\r\n ")
		line = line[cut:]
		limit = maxLineOctets - 1
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}

func contentLine(p model.Property) string {
	var b strings.Builder
	b.WriteString(p.Name)

	keys := make([]string, 0, len(p.Params))
	for k := range p.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte(';')
		b.WriteString(k)
		b.WriteByte('=')
		for i, v := range p.Params[k] {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(paramValue(v))
		}
	}

	b.WriteByte(':')
	b.WriteString(propertyValue(p))
	return b.String()
}

var quotedParamEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func paramValue(v string) string {
	if !strings.ContainsAny(v, ",;:\"\\") {
		return v
	}
	return `"` + quotedParamEscaper.Replace(v) + `"`
}

// propertyValue escapes TEXT values the way the decoder unescapes them.
// Other value types are written verbatim.
func propertyValue(p model.Property) string {
	bp := ical.BaseProperty{IANAToken: p.Name, ICalParameters: p.Params}
	if bp.GetValueType() == ical.ValueDataTypeText {
		return ical.ToText(p.Value)
	}
	return p.Value
}
