package academic

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSemesterNotFound = errors.New("semester not found")
	ErrSessionExists    = errors.New("session with this name already exists")

	ErrInvalidDate = errors.New("enter a valid date")
	ErrDateTooFar  = errors.New("date too far from present")

	ErrCurrentSessionSet     = errors.New("current session is already set")
	ErrCurrentSemesterSet    = errors.New("current semester is already set")
	ErrCurrentSessionDelete  = errors.New("you cannot delete the current session")
	ErrCurrentSemesterDelete = errors.New("you cannot delete the current semester")
)

type (
	Repository interface {
		CheckSessionUniqueness(ctx context.Context, name string, excludedSessions ...Session) error
		// CreateSession inserts a session; when sess.IsCurrent it atomically
		// unsets any previously current session.
		CreateSession(ctx context.Context, sess Session) (Session, error)
		// QuerySessions returns all sessions, current first then newest.
		QuerySessions(ctx context.Context) ([]Session, error)
		GetSession(ctx context.Context, id string) (Session, error)
		GetCurrentSession(ctx context.Context) (Session, error)
		UpdateSession(ctx context.Context, sess Session) (Session, error)
		// DeleteSession deletes a session along with its semesters.
		DeleteSession(ctx context.Context, id string) error

		// CreateSemester inserts a semester; when sem.IsCurrent it atomically
		// unsets any previously current semester.
		CreateSemester(ctx context.Context, sem Semester) (Semester, error)
		// QuerySemesters returns all semesters, current first then newest.
		QuerySemesters(ctx context.Context) ([]Semester, error)
		GetSemester(ctx context.Context, id string) (Semester, error)
		GetCurrentSemester(ctx context.Context) (Semester, error)
		UpdateSemester(ctx context.Context, sem Semester) (Semester, error)
		DeleteSemester(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkSessionUniqueness(ctx context.Context, name string, exclSessions ...Session) error {
	if err := svc.repo.CheckSessionUniqueness(ctx, name, exclSessions...); err != nil {
		if err == ErrSessionExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) CreateSession(ctx context.Context, ns NewSession) (Session, error) {
	now := time.Now().UTC()
	sess := Session{
		Name:              ns.Name,
		IsCurrent:         ns.IsCurrent,
		NextSessionBegins: ns.nextBegins,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return svc.repo.CreateSession(ctx, sess)
}

func (svc *Service) QuerySessions(ctx context.Context) ([]Session, error) {
	return svc.repo.QuerySessions(ctx)
}

func (svc *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, id)
}

func (svc *Service) GetCurrentSession(ctx context.Context) (Session, error) {
	return svc.repo.GetCurrentSession(ctx)
}

func (svc *Service) UpdateSession(ctx context.Context, orig Session, us UpdateSession) (Session, error) {
	sess := Session{
		ID:                orig.ID,
		Name:              us.Name,
		IsCurrent:         orig.IsCurrent,
		NextSessionBegins: us.nextBegins,
		CreatedAt:         orig.CreatedAt,
		UpdatedAt:         time.Now().UTC(),
	}
	if us.IsCurrent != nil {
		sess.IsCurrent = *us.IsCurrent
	}
	return svc.repo.UpdateSession(ctx, sess)
}

func (svc *Service) DeleteSession(ctx context.Context, id string) error {
	sess, err := svc.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess.IsCurrent {
		return core.NewValidationError(ErrCurrentSessionDelete)
	}
	return svc.repo.DeleteSession(ctx, id)
}

func (svc *Service) CreateSemester(ctx context.Context, ns NewSemester) (Semester, error) {
	now := time.Now().UTC()
	sem := Semester{
		Name:               ns.Name,
		IsCurrent:          ns.IsCurrent,
		SessionID:          ns.SessionID,
		NextSemesterBegins: ns.nextBegins,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return svc.repo.CreateSemester(ctx, sem)
}

func (svc *Service) QuerySemesters(ctx context.Context) ([]Semester, error) {
	return svc.repo.QuerySemesters(ctx)
}

func (svc *Service) GetSemester(ctx context.Context, id string) (Semester, error) {
	return svc.repo.GetSemester(ctx, id)
}

func (svc *Service) GetCurrentSemester(ctx context.Context) (Semester, error) {
	return svc.repo.GetCurrentSemester(ctx)
}

func (svc *Service) UpdateSemester(ctx context.Context, orig Semester, us UpdateSemester) (Semester, error) {
	sem := Semester{
		ID:                 orig.ID,
		Name:               us.Name,
		IsCurrent:          orig.IsCurrent,
		SessionID:          us.SessionID,
		NextSemesterBegins: us.nextBegins,
		CreatedAt:          orig.CreatedAt,
		UpdatedAt:          time.Now().UTC(),
	}
	if us.IsCurrent != nil {
		sem.IsCurrent = *us.IsCurrent
	}
	return svc.repo.UpdateSemester(ctx, sem)
}

func (svc *Service) DeleteSemester(ctx context.Context, id string) error {
	sem, err := svc.repo.GetSemester(ctx, id)
	if err != nil {
		return err
	}
	if sem.IsCurrent {
		return core.NewValidationError(ErrCurrentSemesterDelete)
	}
	return svc.repo.DeleteSemester(ctx, id)
}
