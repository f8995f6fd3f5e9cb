package pattern

import (
	"errors"
	"fmt"

	"shiftcal/internal/model"
)

// NextShift is the first working day after a reference date.
type NextShift struct {
	Date      model.Date
	Shift     Resolution
	DaysUntil int
}

// CalculateMonthStatistics aggregates work days and hours of a generated
// schedule. CurrentCycleDay and the next-shift fields are computed for today,
// independent of which month the schedule covers.
func CalculateMonthStatistics(schedule map[string]model.ShiftDay, st model.ShiftTypeDefinition, team model.TeamAssignment, today model.Date) (model.MonthStatistics, error) {
	return calculateMonthStatistics(Direct, schedule, st, team, today)
}

func calculateMonthStatistics(r Resolver, schedule map[string]model.ShiftDay, st model.ShiftTypeDefinition, team model.TeamAssignment, today model.Date) (model.MonthStatistics, error) {
	var stats model.MonthStatistics

	for _, day := range schedule {
		if day.Window == nil {
			continue
		}
		stats.TotalWorkDays++
		stats.TotalWorkHours += day.Window.Duration().Hours()
	}
	if stats.TotalWorkDays > 0 {
		stats.AverageHoursPerWorkday = stats.TotalWorkHours / float64(stats.TotalWorkDays)
	}

	current, err := r.Resolve(today, st, team.AnchorDate)
	if err != nil {
		return model.MonthStatistics{}, err
	}
	stats.CurrentCycleDay = current.CycleDay

	next, err := getNextShift(r, today, st, team, 0)
	switch {
	case err == nil:
		stats.NextShiftDate = &next.Date
		stats.DaysUntilNextShift = &next.DaysUntil
	case errors.Is(err, ErrNotFound):
	default:
		return model.MonthStatistics{}, err
	}

	return stats, nil
}

// GetNextShift scans forward from the day after after, one day at a time, and
// returns the first working day. horizonDays <= 0 means 2 × cycle length.
// The scan never passes MaxDate.
func GetNextShift(after model.Date, st model.ShiftTypeDefinition, team model.TeamAssignment, horizonDays int) (NextShift, error) {
	return getNextShift(Direct, after, st, team, horizonDays)
}

func getNextShift(r Resolver, after model.Date, st model.ShiftTypeDefinition, team model.TeamAssignment, horizonDays int) (NextShift, error) {
	if err := CheckDate(after); err != nil {
		return NextShift{}, err
	}
	if horizonDays <= 0 {
		horizonDays = 2 * st.CycleLength
	}

	for i := 1; i <= horizonDays; i++ {
		d := after.AddDays(i)
		if d.After(MaxDate) {
			break
		}
		res, err := r.Resolve(d, st, team.AnchorDate)
		if err != nil {
			return NextShift{}, err
		}
		if res.Window != nil {
			return NextShift{Date: d, Shift: res, DaysUntil: i}, nil
		}
	}
	return NextShift{}, fmt.Errorf("%w: team %q after %s (%d days)", ErrNotFound, team.Team, after, horizonDays)
}
