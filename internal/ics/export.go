package ics

import (
	"fmt"
	"math"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"shiftcal/internal/model"
)

const (
	DefaultProductID    = "-//shiftcal//Shift Calendar//EN"
	DefaultCalendarName = "Shifts"
	DefaultUIDDomain    = "shiftcal.local"

	crlf = "\r\n"
)

// ExportOptions controls calendar-level properties of an export.
type ExportOptions struct {
	ProductID    string
	CalendarName string
	UIDDomain    string
	// Location is the timezone the records' wall-clock times belong to.
	// Nil means UTC.
	Location *time.Location
	// Now supplies DTSTAMP; nil means time.Now.
	Now func() time.Time
}

func (o ExportOptions) withDefaults() ExportOptions {
	if o.ProductID == "" {
		o.ProductID = DefaultProductID
	}
	if o.CalendarName == "" {
		o.CalendarName = DefaultCalendarName
	}
	if o.UIDDomain == "" {
		o.UIDDomain = DefaultUIDDomain
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ExportShiftsToICS renders records as a VCALENDAR document with CRLF line
// endings. Lines are not folded.
func ExportShiftsToICS(records []model.ShiftRecord, opts ExportOptions) string {
	opts = opts.withDefaults()
	stamp := opts.Now()

	cal := ical.NewCalendarFor("shiftcal")
	cal.SetProductId(opts.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(plainText(opts.CalendarName))
	cal.SetXWRTimezone(opts.Location.String())

	for i, rec := range records {
		start, end := ShiftInterval(rec, opts.Location)

		ev := cal.AddEvent(EventUID(rec, i, opts.UIDDomain))
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(plainText(Summary(rec)))
		if rec.Notes != "" {
			ev.SetDescription(plainText(rec.Notes))
		}
		if rec.Location != "" {
			ev.SetLocation(plainText(rec.Location))
		}
		ev.SetStatus(ical.ObjectStatusConfirmed)
		ev.SetTimeTransparency(ical.TransparencyOpaque)
	}

	return cal.Serialize(ical.WithLineLength(math.MaxInt32), ical.WithNewLine(crlf))
}

var newlineNormalizer = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// plainText collapses CR and CRLF to LF so every line break is emitted as
// the \n escape.
func plainText(s string) string {
	return newlineNormalizer.Replace(s)
}

// ShiftInterval returns the start and end instants of rec in loc. End times
// at or before the start roll over to the next calendar day.
func ShiftInterval(rec model.ShiftRecord, loc *time.Location) (time.Time, time.Time) {
	start := rec.Date.At(rec.StartTime, loc)
	endDate := rec.Date
	if rec.Window().Overnight() {
		endDate = endDate.AddDays(1)
	}
	return start, endDate.At(rec.EndTime, loc)
}

// EventUID is stable for a given record id and export position.
func EventUID(rec model.ShiftRecord, index int, domain string) string {
	id := rec.ID
	if id == "" {
		id = rec.Team + "-" + rec.Date.UTC().Format("20060102")
	}
	return fmt.Sprintf("shift-%s-%d@%s", id, index, domain)
}

// Summary is the SUMMARY text of rec: "Shift N" or "Shift N (Team A)".
func Summary(rec model.ShiftRecord) string {
	code := rec.Code
	if code == "" {
		code = "?"
	}
	if rec.Team == "" {
		return "Shift " + code
	}
	return fmt.Sprintf("Shift %s (%s)", code, rec.Team)
}

// codeFromSummary recovers the shift code from a Summary-formatted string.
// Foreign summaries are returned unchanged.
func codeFromSummary(summary string) string {
	s := strings.TrimSpace(summary)
	rest, ok := strings.CutPrefix(s, "Shift ")
	if !ok {
		return s
	}
	if i := strings.Index(rest, " ("); i != -1 && strings.HasSuffix(rest, ")") {
		rest = rest[:i]
	}
	if rest == "" || strings.ContainsAny(rest, " ") {
		return s
	}
	return rest
}
