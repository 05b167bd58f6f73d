package filter

import (
	"errors"

	"icalfilter/internal/model"
)

// Options selects what the pipeline removes.
type Options struct {
	// Blacklist holds FIELD=PATTERN rule strings.
	Blacklist []string
	// Dedup drops later events sharing DTSTART, DTEND and SUMMARY.
	Dedup bool
}

// Outcome is the result for one input calendar. Exactly one of Calendar and
// Err is meaningful.
type Outcome struct {
	Calendar model.Calendar
	Err      error
}

// Result holds one Outcome per input calendar, in input order, and every
// diagnostic produced along the way.
type Result struct {
	Outcomes    []Outcome
	Diagnostics []Diagnostic
}

// Calendars returns the successfully processed calendars.
func (r Result) Calendars() []model.Calendar {
	out := make([]model.Calendar, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		if o.Err == nil {
			out = append(out, o.Calendar)
		}
	}
	return out
}

// Err joins the per-calendar failures, or returns nil if there were none.
func (r Result) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Run processes every calendar independently with the same options. Rules
// are compiled once; rule diagnostics are reported once.
func Run(cals []model.Calendar, opts Options) Result {
	rules, diags := CompileRules(opts.Blacklist)
	res := Result{
		Outcomes:    make([]Outcome, 0, len(cals)),
		Diagnostics: diags,
	}

	for i, cal := range cals {
		out, cdiags, err := process(cal, rules, opts.Dedup)
		for _, d := range cdiags {
			d.Calendar = i
			res.Diagnostics = append(res.Diagnostics, d)
		}
		if err != nil {
			res.Outcomes = append(res.Outcomes, Outcome{Err: &CalendarError{Index: i, Err: err}})
			continue
		}
		res.Outcomes = append(res.Outcomes, Outcome{Calendar: out})
	}

	return res
}

// Process runs the pipeline over a single calendar. It fails with
// ErrMissingVersion or ErrMissingProdID when the calendar identity is
// incomplete; every other problem is returned as a diagnostic.
func Process(cal model.Calendar, opts Options) (model.Calendar, []Diagnostic, error) {
	rules, diags := CompileRules(opts.Blacklist)
	out, cdiags, err := process(cal, rules, opts.Dedup)
	for _, d := range cdiags {
		d.Calendar = 0
		diags = append(diags, d)
	}
	return out, diags, err
}

func process(cal model.Calendar, rules Rules, dedup bool) (model.Calendar, []Diagnostic, error) {
	ix := model.NewIndex(cal.Properties)
	version, ok := ix.Value(model.PropVersion)
	if !ok || version == "" {
		return model.Calendar{}, nil, ErrMissingVersion
	}
	prodID, ok := ix.Value(model.PropProdID)
	if !ok || prodID == "" {
		return model.Calendar{}, nil, ErrMissingProdID
	}

	var diags []Diagnostic

	// origin[i] is the input position of kept[i].
	kept := make([]model.Event, 0, len(cal.Events))
	origin := make([]int, 0, len(cal.Events))
	for i, ev := range cal.Events {
		v := Evaluate(ev, rules)
		if !v.Keep {
			diags = append(diags, Diagnostic{
				Kind:    KindRejected,
				Event:   i,
				Field:   v.Field,
				Rule:    v.Field + "=" + v.Pattern,
				Message: "event matched blacklist",
			})
			continue
		}
		kept = append(kept, ev)
		origin = append(origin, i)
	}

	unique, dropped := Dedup(kept, dedup)
	if len(dropped) > 0 {
		isDropped := make(map[int]bool, len(dropped))
		for _, pos := range dropped {
			isDropped[pos] = true
			diags = append(diags, Diagnostic{Kind: KindDuplicate, Event: origin[pos], Message: "duplicate of an earlier event"})
		}
		remaining := make([]int, 0, len(unique))
		for pos, o := range origin {
			if !isDropped[pos] {
				remaining = append(remaining, o)
			}
		}
		origin = remaining
	}

	out, rdiags := Recompose(version, prodID, unique)
	for _, d := range rdiags {
		d.Event = origin[d.Event]
		diags = append(diags, d)
	}

	return out, diags, nil
}
