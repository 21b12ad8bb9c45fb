package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/course"
)

var (
	programColumns = []string{"id", "title", "created_at", "updated_at"}
	courseColumns  = []string{"id", "title", "slug", "code", "credit", "semester", "level", "program_id", "created_at", "updated_at"}
	studentColumns = []string{"id", "user_id", "program_id", "level", "created_at"}
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

type programRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r programRow) unpack() course.Program {
	return course.Program{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

type courseRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Slug      string    `db:"slug"`
	Code      string    `db:"code"`
	Credit    int       `db:"credit"`
	Semester  string    `db:"semester"`
	Level     string    `db:"level"`
	ProgramID string    `db:"program_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r courseRow) unpack() course.Course {
	return course.Course{
		ID:        r.ID,
		Title:     r.Title,
		Slug:      r.Slug,
		Code:      r.Code,
		Credit:    r.Credit,
		Semester:  r.Semester,
		Level:     r.Level,
		ProgramID: r.ProgramID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type studentRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	ProgramID string    `db:"program_id"`
	Level     string    `db:"level"`
	CreatedAt time.Time `db:"created_at"`
}

func (r studentRow) unpack() course.Student {
	return course.Student{ID: r.ID, UserID: r.UserID, ProgramID: r.ProgramID, Level: r.Level, CreatedAt: r.CreatedAt}
}

func (repo courseRepository) trapNoRowsErr(err, notFound error, msg string) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo courseRepository) CreateProgram(ctx context.Context, prog course.Program) (course.Program, error) {
	prog.ID = uuid.New().String()
	query, args, err := psql.Insert("program").
		Columns(programColumns...).
		Values(prog.ID, prog.Title, prog.CreatedAt.UTC(), prog.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return course.Program{}, errors.Wrap(err, "building program insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return course.Program{}, errors.Wrap(err, "inserting program")
	}
	return prog, nil
}

func (repo courseRepository) QueryPrograms(ctx context.Context) ([]course.Program, error) {
	query, args, err := psql.Select(programColumns...).From("program").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building programs query")
	}
	var rows []programRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying programs")
	}
	programs := make([]course.Program, 0, len(rows))
	for _, row := range rows {
		programs = append(programs, row.unpack())
	}
	return programs, nil
}

func (repo courseRepository) GetProgram(ctx context.Context, id string) (course.Program, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Program{}, course.ErrProgramNotFound
	}
	query, args, err := psql.Select(programColumns...).From("program").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return course.Program{}, errors.Wrap(err, "building program query")
	}
	var row programRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return course.Program{}, repo.trapNoRowsErr(err, course.ErrProgramNotFound, "finding program")
	}
	return row.unpack(), nil
}

func (repo courseRepository) CheckCourseUniqueness(ctx context.Context, slug string, excludedCourses ...course.Course) error {
	qb := psql.Select("COUNT(*)").From("course").Where(sq.Eq{"slug": slug})
	if len(excludedCourses) > 0 {
		ids := make([]string, 0, len(excludedCourses))
		for _, c := range excludedCourses {
			ids = append(ids, c.ID)
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building course uniqueness query")
	}

	var count int
	if err = sqlx.GetContext(ctx, repo.db, &count, query, args...); err != nil {
		return errors.Wrap(err, "checking course uniqueness")
	}
	if count > 0 {
		return course.ErrCourseExists
	}
	return nil
}

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	crs.ID = uuid.New().String()
	query, args, err := psql.Insert("course").
		Columns(courseColumns...).
		Values(crs.ID, crs.Title, crs.Slug, crs.Code, crs.Credit, crs.Semester, crs.Level, crs.ProgramID,
			crs.CreatedAt.UTC(), crs.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building course insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo courseRepository) QueryCourses(ctx context.Context) ([]course.Course, error) {
	query, args, err := psql.Select(courseColumns...).From("course").OrderBy("created_at DESC").ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building courses query")
	}
	var rows []courseRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.unpack())
	}
	return courses, nil
}

func (repo courseRepository) getCourse(ctx context.Context, cond interface{}) (course.Course, error) {
	query, args, err := psql.Select(courseColumns...).From("course").Where(cond).ToSql()
	if err != nil {
		return course.Course{}, errors.Wrap(err, "building course query")
	}
	var row courseRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrCourseNotFound, "finding course")
	}
	return row.unpack(), nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	if _, err := uuid.Parse(id); err != nil {
		return course.Course{}, course.ErrCourseNotFound
	}
	return repo.getCourse(ctx, sq.Eq{"id": id})
}

func (repo courseRepository) GetCourseBySlug(ctx context.Context, slug string) (course.Course, error) {
	return repo.getCourse(ctx, sq.Eq{"slug": slug})
}

func (repo courseRepository) CreateStudent(ctx context.Context, std course.Student) (course.Student, error) {
	std.ID = uuid.New().String()
	query, args, err := psql.Insert("student").
		Columns(studentColumns...).
		Values(std.ID, std.UserID, std.ProgramID, std.Level, std.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return course.Student{}, errors.Wrap(err, "building student insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return course.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo courseRepository) GetStudentByUserID(ctx context.Context, userID string) (course.Student, error) {
	query, args, err := psql.Select(studentColumns...).From("student").Where(sq.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return course.Student{}, errors.Wrap(err, "building student query")
	}
	var row studentRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return course.Student{}, repo.trapNoRowsErr(err, course.ErrStudentNotFound, "finding student")
	}
	return row.unpack(), nil
}

func (repo courseRepository) CreateTakenCourse(ctx context.Context, tc course.TakenCourse) (course.TakenCourse, error) {
	tc.ID = uuid.New().String()
	query, args, err := psql.Insert("taken_course").
		Columns("id", "student_id", "course_id", "created_at").
		Values(tc.ID, tc.StudentID, tc.CourseID, tc.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return course.TakenCourse{}, errors.Wrap(err, "building taken course insert")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return course.TakenCourse{}, errors.Wrap(err, "inserting taken course")
	}
	return tc, nil
}

func (repo courseRepository) IsEnrolled(ctx context.Context, studentID, courseID string) (bool, error) {
	query, args, err := psql.Select("COUNT(*)").From("taken_course").
		Where(sq.Eq{"student_id": studentID, "course_id": courseID}).
		ToSql()
	if err != nil {
		return false, errors.Wrap(err, "building enrollment query")
	}
	var count int
	if err = sqlx.GetContext(ctx, repo.db, &count, query, args...); err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return count > 0, nil
}

func (repo courseRepository) QueryStudentCourses(ctx context.Context, studentID string) ([]course.Course, error) {
	cols := make([]string, 0, len(courseColumns))
	for _, col := range courseColumns {
		cols = append(cols, "c."+col)
	}
	query, args, err := psql.Select(cols...).From("course c").
		Join("taken_course tc ON tc.course_id = c.id").
		Where(sq.Eq{"tc.student_id": studentID}).
		OrderBy("tc.created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building student courses query")
	}
	var rows []courseRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying student courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.unpack())
	}
	return courses, nil
}
