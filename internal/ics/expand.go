package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "shiftcal/internal/log"
)

const defaultMaxOccurrencesPerEvent = 1000

// ExpandConfig bounds recurrence expansion.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the inclusive window recurring events are
	// expanded in. Non-recurring events are always kept.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single RRULE. Zero means
	// defaultMaxOccurrencesPerEvent.
	MaxOccurrencesPerEvent int
}

// Occurrence is one concrete instance of a parsed event.
type Occurrence struct {
	Event ParsedEvent
	Start time.Time
	End   time.Time
	// Recurring is true for instances produced from an RRULE.
	Recurring bool
}

// ExpandOccurrences flattens events into concrete instances:
//
//   - Single non-recurring events pass through unchanged
//   - RRULE-based events are expanded within the configured range
//   - EXDATE removes instances
//   - RECURRENCE-ID overrides replace the matching instance
//
// Events whose RRULE cannot be parsed are returned as EventErrors.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) ([]Occurrence, []*EventError, error) {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return nil, nil, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil && ev.UID != "" {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		}
	}

	var (
		out    []Occurrence
		issues []*EventError
	)
	for i, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil && ev.UID != "" {
			// Emitted through its base event; an orphan override (base event
			// absent) is kept as a plain single event.
			if hasBase(events, ev.UID) {
				continue
			}
		}
		if ev.RawRRule == "" {
			out = append(out, Occurrence{Event: ev, Start: ev.Start, End: ev.End})
			continue
		}

		occ, hitCap, err := expandRecurring(ev, overridesByUID[ev.UID], cfg)
		if err != nil {
			issues = append(issues, &EventError{Index: i, UID: ev.UID, Err: err})
			continue
		}
		if hitCap {
			appLog.Error("expand: truncated occurrences due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		out = append(out, occ...)
	}
	return out, issues, nil
}

func hasBase(events []ParsedEvent, uid string) bool {
	for _, ev := range events {
		if ev.UID == uid && !ev.IsOverride {
			return true
		}
	}
	return false
}

func expandRecurring(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool, error) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, fmt.Errorf("RRULE %q: %w", ev.RawRRule, err)
	}
	// Anchor the rule at the event's own DTSTART.
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	times := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(times) > cfg.MaxOccurrencesPerEvent {
		times = times[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]Occurrence, 0, len(times))
	for _, start := range times {
		occ := Occurrence{Event: ev, Start: start, End: start.Add(dur), Recurring: true}
		if o, ok := findOverride(overrides, start); ok {
			occ.Event = o
			occ.Start = o.Start
			occ.End = o.End
		}
		out = append(out, occ)
	}
	return out, hitCap, nil
}

// findOverride finds an override whose RECURRENCE-ID equals start.
func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}
