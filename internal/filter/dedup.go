package filter

import "icalfilter/internal/model"

// keyPart is one component of a Key. A missing property, a property without
// a value and a property with an empty value are three distinct parts.
type keyPart struct {
	present  bool
	hasValue bool
	value    string
}

func partOf(ix model.Index, name string) keyPart {
	v, ok := ix.Value(name)
	return keyPart{present: ix.Has(name), hasValue: ok, value: v}
}

// Key identifies duplicate events by DTSTART, DTEND and SUMMARY.
type Key struct {
	Start   keyPart
	End     keyPart
	Summary keyPart
}

// KeyOf computes the dedup key of ev.
func KeyOf(ev model.Event) Key {
	ix := model.NewIndex(ev.Properties)
	return Key{
		Start:   partOf(ix, model.PropDTStart),
		End:     partOf(ix, model.PropDTEnd),
		Summary: partOf(ix, model.PropSummary),
	}
}

// Dedup keeps the first event for every Key and drops later ones, preserving
// order. dropped holds the positions in events of the removed entries. With
// enabled false, events is returned unchanged.
func Dedup(events []model.Event, enabled bool) (kept []model.Event, dropped []int) {
	if !enabled {
		return events, nil
	}

	seen := make(map[Key]struct{}, len(events))
	kept = make([]model.Event, 0, len(events))
	for i, ev := range events {
		k := KeyOf(ev)
		if _, dup := seen[k]; dup {
			dropped = append(dropped, i)
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, ev)
	}
	return kept, dropped
}
