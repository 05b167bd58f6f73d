package filter

import "icalfilter/internal/model"

// Recompose builds the minimal output calendar: VERSION and PRODID as the
// only top-level properties, followed by every event that carries both UID
// and DTSTAMP. Each kept event is a copy with its full property list in the
// original order. Events missing either field are dropped and reported; the
// Event field of those diagnostics is the position in events.
func Recompose(version, prodID string, events []model.Event) (model.Calendar, []Diagnostic) {
	out := model.Calendar{
		Properties: []model.Property{
			{Name: model.PropVersion, Value: version},
			{Name: model.PropProdID, Value: prodID},
		},
		Events: make([]model.Event, 0, len(events)),
	}

	var diags []Diagnostic
	for i, ev := range events {
		ix := model.NewIndex(ev.Properties)
		if !ix.Has(model.PropUID) {
			diags = append(diags, Diagnostic{Kind: KindMissingUID, Calendar: -1, Event: i, Field: model.PropUID, Message: "no UID found on event"})
			continue
		}
		if !ix.Has(model.PropDTStamp) {
			diags = append(diags, Diagnostic{Kind: KindMissingDTStamp, Calendar: -1, Event: i, Field: model.PropDTStamp, Message: "no DTSTAMP found on event"})
			continue
		}
		out.Events = append(out.Events, ev.Clone())
	}

	return out, diags
}
