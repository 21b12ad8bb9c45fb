package academic

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

// Semester names
const (
	SemesterFirst  = "First"
	SemesterSecond = "Second"
)

type Session struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	IsCurrent         bool      `json:"is_current"`
	NextSessionBegins time.Time `json:"next_session_begins"`
	CreatedAt         time.Time `json:"created_at"` // UTC
	UpdatedAt         time.Time `json:"updated_at"` // UTC
}

type Semester struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	IsCurrent          bool      `json:"is_current"`
	SessionID          string    `json:"session_id"`
	NextSemesterBegins time.Time `json:"next_semester_begins"`
	CreatedAt          time.Time `json:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updated_at"` // UTC
}

// NewSession contains information needed to create a new Session.
type NewSession struct {
	Name              string `json:"name" validate:"required,max=200,sessionname"`
	IsCurrent         bool   `json:"is_current"`
	NextSessionBegins string `json:"next_session_begins" validate:"required"`

	nextBegins time.Time
}

func (ns *NewSession) Validate(ctx context.Context, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	begins, err := parseDate("next_session_begins", ns.NextSessionBegins)
	if err != nil {
		return err
	}
	ns.nextBegins = begins
	return svc.checkSessionUniqueness(ctx, ns.Name)
}

// UpdateSession defines what information may be provided to modify an existing Session.
type UpdateSession struct {
	Name              string `json:"name" validate:"omitempty,max=200,sessionname"`
	IsCurrent         *bool  `json:"is_current"`
	NextSessionBegins string `json:"next_session_begins"`

	nextBegins time.Time
}

func (us *UpdateSession) Validate(ctx context.Context, orig Session, svc *Service) error {
	name := core.CleanString(us.Name)
	if name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}

	if err := core.Validate.Struct(us); err != nil {
		return err
	}

	if us.NextSessionBegins != "" {
		begins, err := parseDate("next_session_begins", us.NextSessionBegins)
		if err != nil {
			return err
		}
		us.nextBegins = begins
	} else {
		us.nextBegins = orig.NextSessionBegins
	}

	// a session may only become current when no other session is
	if us.IsCurrent != nil && *us.IsCurrent && !orig.IsCurrent {
		cur, err := svc.repo.GetCurrentSession(ctx)
		if err != nil && errors.Cause(err) != ErrSessionNotFound {
			return err
		}
		if err == nil && cur.ID != orig.ID {
			return core.NewValidationError(
				ErrCurrentSessionSet,
				core.FieldError{Field: "is_current", Error: ErrCurrentSessionSet.Error()},
			)
		}
	}
	return svc.checkSessionUniqueness(ctx, us.Name, orig)
}

// NewSemester contains information needed to create a new Semester.
type NewSemester struct {
	Name               string `json:"name" validate:"required,oneof=First Second"`
	IsCurrent          bool   `json:"is_current"`
	SessionID          string `json:"session_id" validate:"required"`
	NextSemesterBegins string `json:"next_semester_begins" validate:"required"`

	nextBegins time.Time
}

func (ns *NewSemester) Validate(ctx context.Context, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)

	if err := core.Validate.Struct(ns); err != nil {
		return err
	}
	begins, err := parseDate("next_semester_begins", ns.NextSemesterBegins)
	if err != nil {
		return err
	}
	ns.nextBegins = begins

	// the referenced session must exist
	if _, err := svc.repo.GetSession(ctx, ns.SessionID); err != nil {
		if errors.Cause(err) == ErrSessionNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "session_id", Error: ErrSessionNotFound.Error()})
		}
		return err
	}
	return nil
}

// UpdateSemester defines what information may be provided to modify an existing Semester.
type UpdateSemester struct {
	Name               string `json:"name" validate:"omitempty,oneof=First Second"`
	IsCurrent          *bool  `json:"is_current"`
	SessionID          string `json:"session_id"`
	NextSemesterBegins string `json:"next_semester_begins"`

	nextBegins time.Time
}

func (us *UpdateSemester) Validate(ctx context.Context, orig Semester, svc *Service) error {
	name := core.CleanString(us.Name)
	if name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if us.SessionID == "" {
		us.SessionID = orig.SessionID
	}

	if err := core.Validate.Struct(us); err != nil {
		return err
	}

	if us.NextSemesterBegins != "" {
		begins, err := parseDate("next_semester_begins", us.NextSemesterBegins)
		if err != nil {
			return err
		}
		us.nextBegins = begins
	} else {
		us.nextBegins = orig.NextSemesterBegins
	}

	if us.SessionID != orig.SessionID {
		if _, err := svc.repo.GetSession(ctx, us.SessionID); err != nil {
			if errors.Cause(err) == ErrSessionNotFound {
				return core.NewValidationError(err, core.FieldError{Field: "session_id", Error: ErrSessionNotFound.Error()})
			}
			return err
		}
	}

	// a semester may only become current when no other semester is
	if us.IsCurrent != nil && *us.IsCurrent && !orig.IsCurrent {
		cur, err := svc.repo.GetCurrentSemester(ctx)
		if err != nil && errors.Cause(err) != ErrSemesterNotFound {
			return err
		}
		if err == nil && cur.ID != orig.ID {
			return core.NewValidationError(
				ErrCurrentSemesterSet,
				core.FieldError{Field: "is_current", Error: ErrCurrentSemesterSet.Error()},
			)
		}
	}
	return nil
}
