package course

import (
	"context"
	"errors"
	"time"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrProgramNotFound = errors.New("program not found")
	ErrCourseNotFound  = errors.New("course not found")
	ErrStudentNotFound = errors.New("student not found")
	ErrCourseExists    = errors.New("course with this slug already exists")
	ErrAlreadyEnrolled = errors.New("you are already enrolled in this course")
)

type (
	Repository interface {
		CreateProgram(ctx context.Context, prog Program) (Program, error)
		QueryPrograms(ctx context.Context) ([]Program, error)
		GetProgram(ctx context.Context, id string) (Program, error)

		CheckCourseUniqueness(ctx context.Context, slug string, excludedCourses ...Course) error
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		QueryCourses(ctx context.Context) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		GetCourseBySlug(ctx context.Context, slug string) (Course, error)

		CreateStudent(ctx context.Context, std Student) (Student, error)
		GetStudentByUserID(ctx context.Context, userID string) (Student, error)

		CreateTakenCourse(ctx context.Context, tc TakenCourse) (TakenCourse, error)
		IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error)
		QueryStudentCourses(ctx context.Context, studentID string) ([]Course, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkCourseUniqueness(ctx context.Context, slug string, exclCourses ...Course) error {
	if err := svc.repo.CheckCourseUniqueness(ctx, slug, exclCourses...); err != nil {
		if err == ErrCourseExists {
			return core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) CreateProgram(ctx context.Context, np NewProgram) (Program, error) {
	now := time.Now().UTC()
	return svc.repo.CreateProgram(ctx, Program{Title: np.Title, CreatedAt: now, UpdatedAt: now})
}

func (svc *Service) QueryPrograms(ctx context.Context) ([]Program, error) {
	return svc.repo.QueryPrograms(ctx)
}

func (svc *Service) CreateCourse(ctx context.Context, nc NewCourse) (Course, error) {
	if _, err := svc.repo.GetProgram(ctx, nc.ProgramID); err != nil {
		if err == ErrProgramNotFound {
			return Course{}, core.NewValidationError(err, core.FieldError{Field: "program_id", Error: err.Error()})
		}
		return Course{}, err
	}

	now := time.Now().UTC()
	crs := Course{
		Title:     nc.Title,
		Slug:      nc.Slug,
		Code:      nc.Code,
		Credit:    nc.Credit,
		Semester:  nc.Semester,
		Level:     nc.Level,
		ProgramID: nc.ProgramID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *Service) QueryCourses(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryCourses(ctx)
}

func (svc *Service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *Service) GetCourseBySlug(ctx context.Context, slug string) (Course, error) {
	return svc.repo.GetCourseBySlug(ctx, core.CleanString(slug, true /* lower */))
}

func (svc *Service) RegisterStudent(ctx context.Context, ns NewStudent) (Student, error) {
	if _, err := svc.repo.GetProgram(ctx, ns.ProgramID); err != nil {
		if err == ErrProgramNotFound {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "program_id", Error: err.Error()})
		}
		return Student{}, err
	}
	std := Student{
		UserID:    ns.UserID,
		ProgramID: ns.ProgramID,
		Level:     ns.Level,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateStudent(ctx, std)
}

func (svc *Service) GetStudentByUserID(ctx context.Context, userID string) (Student, error) {
	return svc.repo.GetStudentByUserID(ctx, userID)
}

// Enroll records a TakenCourse for the student owning userID.
func (svc *Service) Enroll(ctx context.Context, userID, courseID string) (TakenCourse, error) {
	std, err := svc.repo.GetStudentByUserID(ctx, userID)
	if err != nil {
		return TakenCourse{}, err
	}
	if _, err := svc.repo.GetCourse(ctx, courseID); err != nil {
		return TakenCourse{}, err
	}

	enrolled, err := svc.repo.IsEnrolled(ctx, std.ID, courseID)
	if err != nil {
		return TakenCourse{}, err
	}
	if enrolled {
		return TakenCourse{}, core.NewValidationError(ErrAlreadyEnrolled)
	}

	tc := TakenCourse{StudentID: std.ID, CourseID: courseID, CreatedAt: time.Now().UTC()}
	return svc.repo.CreateTakenCourse(ctx, tc)
}

// IsUserEnrolled reports whether the user owning userID has taken the course.
// It satisfies quiz.EnrollmentChecker.
func (svc *Service) IsUserEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	std, err := svc.repo.GetStudentByUserID(ctx, userID)
	if err != nil {
		if err == ErrStudentNotFound {
			return false, nil
		}
		return false, err
	}
	return svc.repo.IsEnrolled(ctx, std.ID, courseID)
}

func (svc *Service) QueryStudentCourses(ctx context.Context, userID string) ([]Course, error) {
	std, err := svc.repo.GetStudentByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryStudentCourses(ctx, std.ID)
}
