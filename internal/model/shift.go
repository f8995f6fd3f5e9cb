// Package model holds the plain data exchanged between the shift store,
// the pattern calculator and the ICS codec.
package model

// FreeDayCode is the conventional pattern code for a day off.
const FreeDayCode = "L"

// ShiftTypeDefinition describes a repeating rotation of shift codes.
type ShiftTypeDefinition struct {
	ID          string                `yaml:"id" json:"id" validate:"required"`
	Name        string                `yaml:"name" json:"name"`
	CycleLength int                   `yaml:"cycle_length" json:"cycle_length" validate:"gte=1"`
	Pattern     []string              `yaml:"pattern" json:"pattern" validate:"required,dive,required"`
	Times       map[string]TimeWindow `yaml:"times" json:"times"`
}

// Window returns the time window of code. Free days have none.
func (d ShiftTypeDefinition) Window(code string) (TimeWindow, bool) {
	if code == "" || code == FreeDayCode {
		return TimeWindow{}, false
	}
	w, ok := d.Times[code]
	return w, ok
}

// IsFree reports whether code denotes a non-working day.
func (d ShiftTypeDefinition) IsFree(code string) bool {
	_, ok := d.Window(code)
	return !ok
}

// TeamAssignment binds a team to a shift type and the anchor of its cycle.
type TeamAssignment struct {
	Team        string `yaml:"team" json:"team" validate:"required"`
	CompanyID   string `yaml:"company_id" json:"company_id"`
	ShiftTypeID string `yaml:"shift_type_id" json:"shift_type_id" validate:"required"`
	AnchorDate  Date   `yaml:"anchor_date" json:"anchor_date"`
	Color       string `yaml:"color" json:"color,omitempty"`
}

// ShiftDay is a resolved calendar day. It is computed and never persisted.
type ShiftDay struct {
	Date Date   `json:"date"`
	Code string `json:"code"`
	// Window is nil on free days.
	Window *TimeWindow `json:"time_window,omitempty"`
	// CycleDay is zero-based; DisplayCycleDay gives the 1-based position.
	CycleDay  int  `json:"cycle_day"`
	IsToday   bool `json:"is_today"`
	IsWeekend bool `json:"is_weekend"`
}

// DisplayCycleDay returns the 1-based cycle position shown to users.
func (d ShiftDay) DisplayCycleDay() int {
	return d.CycleDay + 1
}

// ShiftRecord is a concrete, persisted shift owned by the shift store.
type ShiftRecord struct {
	ID        string `json:"id"`
	Date      Date   `json:"date"`
	StartTime Clock  `json:"start_time"`
	EndTime   Clock  `json:"end_time"`
	Team      string `json:"team"`
	Code      string `json:"code"`
	Location  string `json:"location,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// Window returns the record's start/end as a TimeWindow.
func (r ShiftRecord) Window() TimeWindow {
	return TimeWindow{Start: r.StartTime, End: r.EndTime}
}

// MonthStatistics summarizes a generated month.
type MonthStatistics struct {
	TotalWorkDays          int     `json:"total_work_days"`
	TotalWorkHours         float64 `json:"total_work_hours"`
	AverageHoursPerWorkday float64 `json:"average_hours_per_workday"`
	// CurrentCycleDay is the zero-based cycle position of today.
	CurrentCycleDay    int   `json:"current_cycle_day"`
	NextShiftDate      *Date `json:"next_shift_date,omitempty"`
	DaysUntilNextShift *int  `json:"days_until_next_shift,omitempty"`
}
