package filter

import (
	"errors"
	"fmt"
)

var (
	ErrMissingVersion = errors.New("no VERSION found on calendar")
	ErrMissingProdID  = errors.New("no PRODID found on calendar")
)

// CalendarError is a fatal failure of one calendar. Other calendars of the
// same document are unaffected.
type CalendarError struct {
	Index int
	Err   error
}

func (e *CalendarError) Error() string {
	return fmt.Sprintf("calendar %d: %v", e.Index, e.Err)
}

func (e *CalendarError) Unwrap() error { return e.Err }
