package pattern

import (
	"errors"
	"fmt"

	"shiftcal/internal/model"
)

var (
	ErrUnknownTeam      = errors.New("unknown team")
	ErrUnknownShiftType = errors.New("unknown shift type")
)

// ShiftScheduleRepository supplies shift types and team assignments.
type ShiftScheduleRepository interface {
	ShiftType(id string) (model.ShiftTypeDefinition, error)
	Team(team string) (model.TeamAssignment, error)
	Teams() []model.TeamAssignment
}

// StaticRepository is an immutable repository built from configuration.
type StaticRepository struct {
	types map[string]model.ShiftTypeDefinition
	teams map[string]model.TeamAssignment
	order []string
}

// NewStaticRepository validates every definition and assignment up front,
// so a malformed pattern fails here rather than on first use.
func NewStaticRepository(types []model.ShiftTypeDefinition, teams []model.TeamAssignment) (*StaticRepository, error) {
	r := &StaticRepository{
		types: make(map[string]model.ShiftTypeDefinition, len(types)),
		teams: make(map[string]model.TeamAssignment, len(teams)),
	}

	for _, st := range types {
		if err := ValidateShiftType(st); err != nil {
			return nil, err
		}
		if _, dup := r.types[st.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate shift type %q", ErrInvalidPatternConfig, st.ID)
		}
		r.types[st.ID] = st
	}

	for _, t := range teams {
		if err := ValidateTeam(t, r.types); err != nil {
			return nil, err
		}
		if _, dup := r.teams[t.Team]; dup {
			return nil, fmt.Errorf("%w: duplicate team %q", ErrInvalidPatternConfig, t.Team)
		}
		r.teams[t.Team] = t
		r.order = append(r.order, t.Team)
	}

	return r, nil
}

func (r *StaticRepository) ShiftType(id string) (model.ShiftTypeDefinition, error) {
	st, ok := r.types[id]
	if !ok {
		return model.ShiftTypeDefinition{}, fmt.Errorf("%w: %q", ErrUnknownShiftType, id)
	}
	return st, nil
}

func (r *StaticRepository) Team(team string) (model.TeamAssignment, error) {
	t, ok := r.teams[team]
	if !ok {
		return model.TeamAssignment{}, fmt.Errorf("%w: %q", ErrUnknownTeam, team)
	}
	return t, nil
}

// Teams returns assignments in configuration order.
func (r *StaticRepository) Teams() []model.TeamAssignment {
	out := make([]model.TeamAssignment, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.teams[name])
	}
	return out
}
