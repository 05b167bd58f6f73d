package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"icalfilter/internal/config"
	"icalfilter/internal/filter"
	"icalfilter/internal/ics"
	appLog "icalfilter/internal/log"
	"icalfilter/internal/model"
)

const (
	ContentTypeICS  = "text/calendar;charset=UTF-8"
	ContentTypeJSON = "application/json; charset=utf-8"
)

// ErrNoOutput is returned when every calendar in the document failed.
var ErrNoOutput = errors.New("no calendar could be produced")

// Fetcher retrieves the raw source document.
type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// Result is the outcome of one cycle.
type Result struct {
	Calendars   []model.Calendar
	Diagnostics []filter.Diagnostic
	// Failed joins the errors of calendars that produced no output while
	// others did.
	Failed error

	Body        []byte
	ContentType string

	// Events is the number of events across all output calendars.
	Events  int
	Elapsed time.Duration
}

// Run performs one fetch, decode, filter and encode cycle for cfg. Fetch
// and decode failures are fatal, as is a document where no calendar
// survives; problems with single calendars, rules or events are logged and
// reported in the Result.
func Run(ctx context.Context, f Fetcher, cfg *config.Config) (*Result, error) {
	started := time.Now()

	body, err := f.Fetch(ctx, cfg.Source)
	if err != nil {
		return nil, err
	}

	cals, err := ics.Decode(body)
	if err != nil {
		return nil, err
	}

	if cfg.Dedup {
		appLog.Debug("deduplicating events")
	}
	res := filter.Run(cals, filter.Options{Blacklist: cfg.Blacklist, Dedup: cfg.Dedup})
	LogDiagnostics(res.Diagnostics)

	out := &Result{
		Calendars:   res.Calendars(),
		Diagnostics: res.Diagnostics,
		Failed:      res.Err(),
	}
	if out.Failed != nil {
		appLog.Error("calendar skipped", out.Failed, "source", ics.RedactURL(cfg.Source))
	}
	if len(out.Calendars) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrNoOutput, out.Failed)
	}

	out.Body, out.ContentType, err = Render(out.Calendars, cfg.Format)
	if err != nil {
		return nil, err
	}
	for _, c := range out.Calendars {
		out.Events += len(c.Events)
	}
	out.Elapsed = time.Since(started)

	appLog.Info("calendar filtered",
		"source", ics.RedactURL(cfg.Source),
		"calendars", len(out.Calendars),
		"events", out.Events,
		"diagnostics", len(out.Diagnostics),
		"elapsed", out.Elapsed,
	)
	return out, nil
}

// Render encodes cals in the given format. ICS output places the calendars
// one after another in a single document.
func Render(cals []model.Calendar, format string) ([]byte, string, error) {
	switch format {
	case config.FormatICS, "":
		var buf bytes.Buffer
		for _, c := range cals {
			buf.Write(ics.Encode(c))
		}
		return buf.Bytes(), ContentTypeICS, nil
	case config.FormatJSON:
		data, err := json.MarshalIndent(cals, "", "  ")
		if err != nil {
			return nil, "", err
		}
		return append(data, '\n'), ContentTypeJSON, nil
	default:
		return nil, "", fmt.Errorf("unknown output format %q", format)
	}
}

// LogDiagnostics writes input problems at WARN and intentional drops at
// DEBUG.
func LogDiagnostics(diags []filter.Diagnostic) {
	for _, d := range diags {
		kv := append(d.Attrs(), "detail", d.Message)
		if d.Warning() {
			appLog.Warn("pipeline diagnostic", kv...)
		} else {
			appLog.Debug("event dropped", kv...)
		}
	}
}
