package filter

import "icalfilter/internal/model"

func prop(name, value string) model.Property {
	return model.Property{Name: name, Value: value}
}

func event(props ...model.Property) model.Event {
	return model.Event{Properties: props}
}

// meeting builds a valid event with the given identity and key fields.
func meeting(uid, start, end, summary string) model.Event {
	return event(
		prop(model.PropUID, uid),
		prop(model.PropDTStamp, "20240101T000000Z"),
		prop(model.PropDTStart, start),
		prop(model.PropDTEnd, end),
		prop(model.PropSummary, summary),
	)
}

func calendar(events ...model.Event) model.Calendar {
	return model.Calendar{
		Properties: []model.Property{
			prop(model.PropVersion, "2.0"),
			prop(model.PropProdID, "X"),
		},
		Events: events,
	}
}

func summaries(cal model.Calendar) []string {
	out := make([]string, 0, len(cal.Events))
	for _, ev := range cal.Events {
		v, _ := model.NewIndex(ev.Properties).Value(model.PropSummary)
		out = append(out, v)
	}
	return out
}

func kinds(diags []Diagnostic) []DiagnosticKind {
	out := make([]DiagnosticKind, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Kind)
	}
	return out
}
