package pattern

import (
	"time"

	"shiftcal/internal/model"
)

// Calculator looks up a team's rotation in a repository and runs the pure
// resolver, generator and aggregator against it.
type Calculator struct {
	repo     ShiftScheduleRepository
	resolver Resolver
	now      func() time.Time
	loc      *time.Location
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithResolver swaps the resolver, e.g. for a CachedResolver.
func WithResolver(r Resolver) CalculatorOption {
	return func(c *Calculator) { c.resolver = r }
}

// WithClock injects the source of "now".
func WithClock(now func() time.Time) CalculatorOption {
	return func(c *Calculator) { c.now = now }
}

// WithLocation sets the timezone used to decide which date "today" is.
func WithLocation(loc *time.Location) CalculatorOption {
	return func(c *Calculator) { c.loc = loc }
}

func NewCalculator(repo ShiftScheduleRepository, opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		repo:     repo,
		resolver: Direct,
		now:      time.Now,
		loc:      time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Today returns the current date in the calculator's timezone.
func (c *Calculator) Today() model.Date {
	return model.DateOf(c.now().In(c.loc))
}

func (c *Calculator) lookup(team string) (model.TeamAssignment, model.ShiftTypeDefinition, error) {
	t, err := c.repo.Team(team)
	if err != nil {
		return model.TeamAssignment{}, model.ShiftTypeDefinition{}, err
	}
	st, err := c.repo.ShiftType(t.ShiftTypeID)
	if err != nil {
		return model.TeamAssignment{}, model.ShiftTypeDefinition{}, err
	}
	return t, st, nil
}

// Resolve returns the shift for team on date.
func (c *Calculator) Resolve(team string, date model.Date) (Resolution, error) {
	t, st, err := c.lookup(team)
	if err != nil {
		return Resolution{}, err
	}
	return c.resolver.Resolve(date, st, t.AnchorDate)
}

// Month generates the schedule for team in (year, month).
func (c *Calculator) Month(team string, year int, month time.Month) (map[string]model.ShiftDay, error) {
	t, st, err := c.lookup(team)
	if err != nil {
		return nil, err
	}
	return generateMonthShifts(c.resolver, year, month, st, t, c.Today())
}

// Statistics generates the month and aggregates it.
func (c *Calculator) Statistics(team string, year int, month time.Month) (model.MonthStatistics, error) {
	t, st, err := c.lookup(team)
	if err != nil {
		return model.MonthStatistics{}, err
	}
	today := c.Today()
	schedule, err := generateMonthShifts(c.resolver, year, month, st, t, today)
	if err != nil {
		return model.MonthStatistics{}, err
	}
	return calculateMonthStatistics(c.resolver, schedule, st, t, today)
}

// NextShift finds team's next working day after after.
func (c *Calculator) NextShift(team string, after model.Date, horizonDays int) (NextShift, error) {
	t, st, err := c.lookup(team)
	if err != nil {
		return NextShift{}, err
	}
	return getNextShift(c.resolver, after, st, t, horizonDays)
}

// Records materializes team's working days of (year, month) as shift records.
func (c *Calculator) Records(team string, year int, month time.Month) ([]model.ShiftRecord, error) {
	t, _, err := c.lookup(team)
	if err != nil {
		return nil, err
	}
	schedule, err := c.Month(team, year, month)
	if err != nil {
		return nil, err
	}
	return MaterializeRecords(schedule, t), nil
}

// Teams lists the configured team assignments.
func (c *Calculator) Teams() []model.TeamAssignment {
	return c.repo.Teams()
}

// Team returns a single team assignment.
func (c *Calculator) Team(team string) (model.TeamAssignment, error) {
	return c.repo.Team(team)
}

// Location is the timezone shift wall-clock times belong to.
func (c *Calculator) Location() *time.Location {
	return c.loc
}
