package ics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	appLog "shiftcal/internal/log"
	"shiftcal/internal/model"
)

// ShiftStore is the persistence collaborator the importer writes to.
type ShiftStore interface {
	// HasShift reports whether team already has a record at date with the
	// same start and end time.
	HasShift(ctx context.Context, team string, date model.Date, start, end model.Clock) (bool, error)
	InsertShift(ctx context.Context, rec model.ShiftRecord) error
}

// ImportResult summarizes one import call. Duplicates count as skipped,
// malformed events and failed inserts as errored.
type ImportResult struct {
	Imported int     `json:"imported_count"`
	Skipped  int     `json:"skipped_count"`
	Errored  int     `json:"errored_count"`
	Errors   []error `json:"-"`
}

// Total is the number of events the source offered.
func (r ImportResult) Total() int {
	return r.Imported + r.Skipped + r.Errored
}

// ParseOptions configures ParseICS.
type ParseOptions struct {
	// Location turns instants into wall-clock dates/times and interprets
	// floating values. Nil means UTC.
	Location *time.Location
	// Team is stamped on every record.
	Team string
	// Expand bounds recurring events.
	Expand ExpandConfig
}

// ParseResult is the outcome of ParseICS.
type ParseResult struct {
	Records []model.ShiftRecord
	Errors  []*EventError
}

// ParseICS converts an ICS document into shift records. Individual broken
// events are reported in ParseResult.Errors; only a structurally unusable
// document returns an error (wrapping ErrICSParse).
func ParseICS(body []byte, opts ParseOptions) (ParseResult, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	events, issues, err := ParseEvents(body, loc)
	if err != nil {
		return ParseResult{}, err
	}

	occs, expandIssues, err := ExpandOccurrences(events, opts.Expand)
	if err != nil {
		return ParseResult{}, err
	}
	issues = append(issues, expandIssues...)

	records := make([]model.ShiftRecord, 0, len(occs))
	for _, occ := range occs {
		records = append(records, toRecord(occ, loc, opts.Team))
	}
	return ParseResult{Records: records, Errors: issues}, nil
}

func toRecord(occ Occurrence, loc *time.Location, team string) model.ShiftRecord {
	start := occ.Start.In(loc)
	end := occ.End.In(loc)

	id := occ.Event.UID
	switch {
	case id == "":
		// Name-based UUID: stable across re-imports of the same event.
		name := occ.Event.Summary + "|" + occ.Start.UTC().Format(time.RFC3339)
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
	case occ.Recurring:
		id = id + "-" + start.Format("20060102T1504")
	}

	return model.ShiftRecord{
		ID:        id,
		Date:      model.DateOf(start),
		StartTime: model.ClockOf(start),
		EndTime:   model.ClockOf(end),
		Team:      team,
		Code:      codeFromSummary(occ.Event.Summary),
		Location:  occ.Event.Location,
		Notes:     occ.Event.Description,
	}
}

// ImporterOptions configures an Importer.
type ImporterOptions struct {
	Location *time.Location
	// HorizonDays / BackfillDays bound recurring-event expansion around now.
	HorizonDays  int
	BackfillDays int
	Now          func() time.Time
}

// Importer parses calendars and inserts the resulting records one by one.
// There is no transaction around an import: records inserted before a
// failure or cancellation stay in the store.
type Importer struct {
	store   ShiftStore
	fetcher *Fetcher
	opts    ImporterOptions
}

func NewImporter(store ShiftStore, fetcher *Fetcher, opts ImporterOptions) *Importer {
	if fetcher == nil {
		fetcher = NewFetcher(nil, "")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = 365
	}
	if opts.BackfillDays < 0 {
		opts.BackfillDays = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Importer{store: store, fetcher: fetcher, opts: opts}
}

// ImportFromURL fetches url once and imports it into team. A fetch failure
// returns an error wrapping ErrNetworkFetch and imports nothing.
func (im *Importer) ImportFromURL(ctx context.Context, url, team string) (ImportResult, error) {
	body, err := im.fetcher.Fetch(ctx, url)
	if err != nil {
		return ImportResult{}, err
	}
	res, err := im.Import(ctx, body, team)
	appLog.Info("ics url import finished",
		"url", appLog.RedactURL(url),
		"team", team,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"errored", res.Errored,
	)
	return res, err
}

// ImportFile imports a local .ics file into team.
func (im *Importer) ImportFile(ctx context.Context, path, team string) (ImportResult, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return ImportResult{}, err
	}
	return im.Import(ctx, body, team)
}

// Import parses body and inserts every record that team does not already
// have at the same (date, start, end). A canceled ctx stops the loop and
// returns the partial result with ctx.Err().
func (im *Importer) Import(ctx context.Context, body []byte, team string) (ImportResult, error) {
	now := im.opts.Now()
	parsed, err := ParseICS(body, ParseOptions{
		Location: im.opts.Location,
		Team:     team,
		Expand: ExpandConfig{
			RangeStart: now.AddDate(0, 0, -im.opts.BackfillDays),
			RangeEnd:   now.AddDate(0, 0, im.opts.HorizonDays),
		},
	})
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	for _, issue := range parsed.Errors {
		res.Errored++
		res.Errors = append(res.Errors, issue)
	}

	for _, rec := range parsed.Records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		exists, err := im.store.HasShift(ctx, team, rec.Date, rec.StartTime, rec.EndTime)
		if err != nil {
			res.Errored++
			res.Errors = append(res.Errors, fmt.Errorf("lookup %s %s-%s: %w", rec.Date, rec.StartTime, rec.EndTime, err))
			continue
		}
		if exists {
			res.Skipped++
			continue
		}
		if err := im.store.InsertShift(ctx, rec); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return res, err
			}
			res.Errored++
			res.Errors = append(res.Errors, fmt.Errorf("insert %s %s-%s: %w", rec.Date, rec.StartTime, rec.EndTime, err))
			continue
		}
		res.Imported++
	}

	return res, nil
}
