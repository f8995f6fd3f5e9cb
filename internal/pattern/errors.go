package pattern

import (
	"errors"
	"fmt"

	"shiftcal/internal/model"
)

var (
	// ErrInvalidDateRange is returned for dates outside [MinDate, MaxDate].
	ErrInvalidDateRange = errors.New("date outside supported range")
	// ErrInvalidPatternConfig marks a malformed shift type or team assignment.
	ErrInvalidPatternConfig = errors.New("invalid shift pattern config")
	// ErrNotFound is returned when no working day exists within the scan horizon.
	ErrNotFound = errors.New("no upcoming shift within horizon")
)

// Supported operating window, inclusive on both ends.
var (
	MinDate = model.NewDate(2020, 1, 1)
	MaxDate = model.NewDate(2030, 12, 31)
)

// CheckDate rejects dates outside the operating window.
func CheckDate(d model.Date) error {
	if d.Before(MinDate) || d.After(MaxDate) {
		return fmt.Errorf("%w: %s not in [%s, %s]", ErrInvalidDateRange, d, MinDate, MaxDate)
	}
	return nil
}
