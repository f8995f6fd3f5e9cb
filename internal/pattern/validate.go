package pattern

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"shiftcal/internal/model"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
	translator   ut.Translator
)

func initValidator() {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		english := en.New()
		uni := ut.New(english, english)
		translator, _ = uni.GetTranslator("en")
		if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
			translator = nil
		}
	})
}

// ValidateShiftType checks a shift type at configuration load time.
func ValidateShiftType(st model.ShiftTypeDefinition) error {
	if err := validateStruct(st); err != nil {
		return fmt.Errorf("%w: shift type %q: %s", ErrInvalidPatternConfig, st.ID, err)
	}
	if len(st.Pattern) != st.CycleLength {
		return fmt.Errorf("%w: shift type %q: pattern has %d entries, cycle length is %d",
			ErrInvalidPatternConfig, st.ID, len(st.Pattern), st.CycleLength)
	}
	return nil
}

// ValidateTeam checks a team assignment against the known shift types.
func ValidateTeam(t model.TeamAssignment, types map[string]model.ShiftTypeDefinition) error {
	if err := validateStruct(t); err != nil {
		return fmt.Errorf("%w: team %q: %s", ErrInvalidPatternConfig, t.Team, err)
	}
	if t.AnchorDate.IsZero() {
		return fmt.Errorf("%w: team %q: anchor date is required", ErrInvalidPatternConfig, t.Team)
	}
	if _, ok := types[t.ShiftTypeID]; !ok {
		return fmt.Errorf("%w: team %q: unknown shift type %q", ErrInvalidPatternConfig, t.Team, t.ShiftTypeID)
	}
	return nil
}

// validateStruct runs struct tag validation and returns the first failure
// as a translated message.
func validateStruct(v any) error {
	initValidator()
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && translator != nil {
		return errors.New(verrs[0].Translate(translator))
	}
	return err
}
