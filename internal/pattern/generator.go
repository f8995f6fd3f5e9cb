package pattern

import (
	"fmt"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"shiftcal/internal/model"
)

// MonthDays enumerates every civil date of (year, month).
func MonthDays(year int, month time.Month) ([]model.Date, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("%w: month %d", ErrInvalidDateRange, month)
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)

	r, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.DAILY,
		Dtstart: first,
		Until:   last,
	})
	if err != nil {
		return nil, err
	}

	occ := r.All()
	days := make([]model.Date, 0, len(occ))
	for _, t := range occ {
		days = append(days, model.DateOf(t))
	}
	return days, nil
}

// GenerateMonthShifts resolves every day of (year, month) for team. Keys are
// "2006-01-02" date strings. today marks the IsToday flag; callers reduce
// their clock to a date in the display timezone first.
func GenerateMonthShifts(year int, month time.Month, st model.ShiftTypeDefinition, team model.TeamAssignment, today model.Date) (map[string]model.ShiftDay, error) {
	return generateMonthShifts(Direct, year, month, st, team, today)
}

func generateMonthShifts(r Resolver, year int, month time.Month, st model.ShiftTypeDefinition, team model.TeamAssignment, today model.Date) (map[string]model.ShiftDay, error) {
	days, err := MonthDays(year, month)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.ShiftDay, len(days))
	for _, d := range days {
		res, err := r.Resolve(d, st, team.AnchorDate)
		if err != nil {
			return nil, err
		}
		out[d.String()] = model.ShiftDay{
			Date:      d,
			Code:      res.Code,
			Window:    res.Window,
			CycleDay:  res.CycleDay,
			IsToday:   d == today,
			IsWeekend: d.IsWeekend(),
		}
	}
	return out, nil
}

// SortedDays returns the schedule's days in calendar order.
func SortedDays(schedule map[string]model.ShiftDay) []model.ShiftDay {
	days := make([]model.ShiftDay, 0, len(schedule))
	for _, d := range schedule {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool {
		return days[i].Date.Before(days[j].Date)
	})
	return days
}

// MaterializeRecords turns the working days of a generated schedule into
// concrete shift records for team, in date order.
func MaterializeRecords(schedule map[string]model.ShiftDay, team model.TeamAssignment) []model.ShiftRecord {
	days := SortedDays(schedule)
	records := make([]model.ShiftRecord, 0, len(days))
	for _, d := range days {
		if d.Window == nil {
			continue
		}
		records = append(records, model.ShiftRecord{
			ID:        fmt.Sprintf("%s-%s", team.Team, d.Date.UTC().Format("20060102")),
			Date:      d.Date,
			StartTime: d.Window.Start,
			EndTime:   d.Window.End,
			Team:      team.Team,
			Code:      d.Code,
		})
	}
	return records
}
