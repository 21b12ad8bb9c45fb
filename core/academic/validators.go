package academic

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	sessionNameTag   = "sessionname"
	sessionNameText  = "invalid session name"
	sessionNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9 /-]*$`)

	// a session/semester cannot begin more than maxDateOffset away from today, either side
	maxDateOffset = 10 // years

	dateLayout = "2006-01-02"

	NowFunc = time.Now // mockable
)

func init() {
	_ = core.Validate.RegisterValidation(sessionNameTag, sessionNameValidation)
	core.RegisterCustomTranslation(sessionNameTag, sessionNameText)
}

// sessionNameValidation only allows plain academic-period names,
// e.g. "2024-2025", "Updated 2024-2025", "2024/2025".
func sessionNameValidation(fl validator.FieldLevel) bool {
	return sessionNameRegex.MatchString(fl.Field().String())
}

// parseDate parses a "YYYY-MM-DD" date and checks it is not too far from present.
func parseDate(field, val string) (time.Time, error) {
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, core.NewValidationError(
			ErrInvalidDate,
			core.FieldError{Field: field, Error: ErrInvalidDate.Error()},
		)
	}
	now := NowFunc().UTC()
	if t.Before(now.AddDate(-maxDateOffset, 0, -1)) || t.After(now.AddDate(maxDateOffset, 0, 0)) {
		return time.Time{}, core.NewValidationError(
			ErrDateTooFar,
			core.FieldError{Field: field, Error: ErrDateTooFar.Error()},
		)
	}
	return t, nil
}
