package course

import (
	"context"
	"time"

	"github.com/trezcool/shule/core"
)

// Levels
const (
	LevelBachelor = "Bachelor"
	LevelMaster   = "Master"
)

type Program struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Course struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Code      string    `json:"code"`
	Credit    int       `json:"credit"`
	Semester  string    `json:"semester"`
	Level     string    `json:"level"`
	ProgramID string    `json:"program_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Student is the academic profile attached to a user account.
type Student struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ProgramID string    `json:"program_id"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

// TakenCourse records a student's enrollment in a course.
type TakenCourse struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	CourseID  string    `json:"course_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
}

type NewProgram struct {
	Title string `json:"title" validate:"required,max=150"`
}

func (np *NewProgram) Validate() error {
	np.Title = core.CleanString(np.Title)
	return core.Validate.Struct(np)
}

// NewCourse contains information needed to create a new Course.
type NewCourse struct {
	Title     string `json:"title" validate:"required,max=200"`
	Slug      string `json:"slug" validate:"required,max=200,slug"`
	Code      string `json:"code" validate:"required,max=20"`
	Credit    int    `json:"credit" validate:"min=0,max=10"`
	Semester  string `json:"semester" validate:"required,oneof=First Second"`
	Level     string `json:"level" validate:"required,oneof=Bachelor Master"`
	ProgramID string `json:"program_id" validate:"required"`
}

func (nc *NewCourse) Validate(ctx context.Context, svc *Service) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Slug = core.CleanString(nc.Slug, true /* lower */)
	nc.Code = core.CleanString(nc.Code)

	if err := core.Validate.Struct(nc); err != nil {
		return err
	}
	return svc.checkCourseUniqueness(ctx, nc.Slug)
}

// NewStudent registers a student profile for an existing user.
type NewStudent struct {
	UserID    string `json:"user_id" validate:"required"`
	ProgramID string `json:"program_id" validate:"required"`
	Level     string `json:"level" validate:"required,oneof=Bachelor Master"`
}

func (ns *NewStudent) Validate() error { return core.Validate.Struct(ns) }
