package filter

import "icalfilter/internal/model"

// Verdict is the outcome of evaluating one event against the rules. When
// Keep is false, Property and Pattern name the first match found.
type Verdict struct {
	Keep     bool
	Property int
	Field    string
	Pattern  string
}

// Evaluate checks ev against rules. The event is rejected as soon as one of
// its properties has a name with patterns and one of those patterns matches
// its value. A property without a value is matched as "".
func Evaluate(ev model.Event, rules Rules) Verdict {
	if len(rules) == 0 {
		return Verdict{Keep: true, Property: -1}
	}

	for i, p := range ev.Properties {
		patterns, ok := rules[p.Name]
		if !ok {
			continue
		}
		value := p.Value
		if p.NoValue {
			value = ""
		}
		for _, re := range patterns {
			if re.MatchString(value) {
				return Verdict{Keep: false, Property: i, Field: p.Name, Pattern: re.String()}
			}
		}
	}

	return Verdict{Keep: true, Property: -1}
}

// Accepts reports whether ev survives rules.
func Accepts(ev model.Event, rules Rules) bool {
	return Evaluate(ev, rules).Keep
}
