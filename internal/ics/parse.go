package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "shiftcal/internal/log"
)

var (
	// ErrICSParse marks a document whose overall structure is unusable.
	ErrICSParse = errors.New("malformed ICS document")
	// ErrMissingDTStart is the per-event failure for a VEVENT without DTSTART.
	ErrMissingDTStart = errors.New("VEVENT missing DTSTART")
)

// ParsedEvent is the normalized representation of a VEVENT. Recurrence
// expansion operates on this type.
type ParsedEvent struct {
	UID string

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present)
	IsOverride bool       // true if this VEVENT overrides a recurring instance
}

// EventError describes a VEVENT that was skipped.
type EventError struct {
	Index int
	UID   string
	Err   error
}

func (e *EventError) Error() string {
	if e.UID != "" {
		return fmt.Sprintf("vevent %d (%s): %v", e.Index, e.UID, e.Err)
	}
	return fmt.Sprintf("vevent %d: %v", e.Index, e.Err)
}

func (e *EventError) Unwrap() error { return e.Err }

// ParseEvents parses an ICS payload. Floating and date-only values are
// interpreted in loc (nil means UTC).
//
//   - TEXT values come back unescaped and unfolded by the decoder.
//   - A VEVENT that cannot be normalized is skipped and reported in the
//     returned EventError slice; the remaining events are still parsed.
//   - The error return is reserved for documents that are not a VCALENDAR
//     at all and wraps ErrICSParse.
func ParseEvents(body []byte, loc *time.Location) ([]ParsedEvent, []*EventError, error) {
	if loc == nil {
		loc = time.UTC
	}
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil, fmt.Errorf("%w: empty body", ErrICSParse)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(body), []byte("BEGIN:VCALENDAR")) {
		return nil, nil, fmt.Errorf("%w: missing BEGIN:VCALENDAR", ErrICSParse)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrICSParse, err)
	}

	var (
		events []ParsedEvent
		issues []*EventError
	)
	for i, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, loc)
		if perr != nil {
			issue := &EventError{Index: i, UID: ev.UID, Err: perr}
			appLog.Debug("ics vevent skipped", "index", i, "uid", ev.UID, "reason", perr.Error())
			issues = append(issues, issue)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events), "skipped", len(issues))
	return events, issues, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || strings.TrimSpace(dtStart.Value) == "" {
		return out, ErrMissingDTStart
	}
	start, allDay, err := parseDateTime(dtStart.Value, dtStart.ICalParameters, loc)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = allDay

	// Without DTEND a timed event has zero duration and an all-day event
	// covers one day.
	out.End = start
	if allDay {
		out.End = start.AddDate(0, 0, 1)
	}
	if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil && strings.TrimSpace(dtEnd.Value) != "" {
		end, _, err := parseDateTime(dtEnd.Value, dtEnd.ICalParameters, loc)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		if end.Before(start) {
			return out, errors.New("DTEND before DTSTART")
		}
		out.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = strings.TrimSpace(p.Value)
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := parseDateTime(part, p.ICalParameters, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, _, err := parseDateTime(p.Value, p.ICalParameters, loc); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// parseDateTime normalizes the permitted DATE / DATE-TIME forms:
//
//	20240103T220000Z          UTC
//	TZID=Europe/Berlin:...    zoned local time
//	20240103T220000           floating, interpreted in loc
//	VALUE=DATE:20240103       all-day, midnight in loc
func parseDateTime(v string, params map[string][]string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	dateOnly := !strings.Contains(v, "T")
	if vs := params["VALUE"]; len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		dateOnly = true
	}
	if dateOnly {
		t, err := time.ParseInLocation("20060102", v, loc)
		return t, true, err
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}

	zone := loc
	if tzs := params["TZID"]; len(tzs) > 0 && tzs[0] != "" {
		if z, err := time.LoadLocation(strings.Trim(tzs[0], `"`)); err == nil {
			zone = z
		} else {
			appLog.Debug("unknown TZID; using fallback zone", "tzid", tzs[0], "fallback", loc.String())
		}
	}
	t, err := time.ParseInLocation("20060102T150405", v, zone)
	return t, false, err
}
