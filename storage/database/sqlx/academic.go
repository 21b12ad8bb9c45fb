package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/academic"
)

var (
	sessionColumns  = []string{"id", "name", "is_current", "next_session_begins", "created_at", "updated_at"}
	semesterColumns = []string{"id", "name", "is_current", "session_id", "next_semester_begins", "created_at", "updated_at"}
)

type academicRepository struct {
	db *sqlx.DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *sqlx.DB) *academicRepository {
	return &academicRepository{db: db}
}

type sessionRow struct {
	ID                string       `db:"id"`
	Name              string       `db:"name"`
	IsCurrent         bool         `db:"is_current"`
	NextSessionBegins sql.NullTime `db:"next_session_begins"`
	CreatedAt         sql.NullTime `db:"created_at"`
	UpdatedAt         sql.NullTime `db:"updated_at"`
}

func (r sessionRow) unpack() academic.Session {
	return academic.Session{
		ID:                r.ID,
		Name:              r.Name,
		IsCurrent:         r.IsCurrent,
		NextSessionBegins: r.NextSessionBegins.Time,
		CreatedAt:         r.CreatedAt.Time,
		UpdatedAt:         r.UpdatedAt.Time,
	}
}

type semesterRow struct {
	ID                 string       `db:"id"`
	Name               string       `db:"name"`
	IsCurrent          bool         `db:"is_current"`
	SessionID          string       `db:"session_id"`
	NextSemesterBegins sql.NullTime `db:"next_semester_begins"`
	CreatedAt          sql.NullTime `db:"created_at"`
	UpdatedAt          sql.NullTime `db:"updated_at"`
}

func (r semesterRow) unpack() academic.Semester {
	return academic.Semester{
		ID:                 r.ID,
		Name:               r.Name,
		IsCurrent:          r.IsCurrent,
		SessionID:          r.SessionID,
		NextSemesterBegins: r.NextSemesterBegins.Time,
		CreatedAt:          r.CreatedAt.Time,
		UpdatedAt:          r.UpdatedAt.Time,
	}
}

func (repo academicRepository) trapSessionNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return academic.ErrSessionNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo academicRepository) trapSemesterNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return academic.ErrSemesterNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo academicRepository) CheckSessionUniqueness(ctx context.Context, name string, excludedSessions ...academic.Session) error {
	qb := psql.Select("COUNT(*)").From("session").Where(sq.Eq{"name": name})
	if len(excludedSessions) > 0 {
		ids := make([]string, 0, len(excludedSessions))
		for _, s := range excludedSessions {
			ids = append(ids, s.ID)
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building session uniqueness query")
	}

	var count int
	if err = sqlx.GetContext(ctx, repo.db, &count, query, args...); err != nil {
		return errors.Wrap(err, "checking session uniqueness")
	}
	if count > 0 {
		return academic.ErrSessionExists
	}
	return nil
}

func (repo academicRepository) CreateSession(ctx context.Context, sess academic.Session) (academic.Session, error) {
	sess.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return academic.Session{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// an incoming current session dethrones the previous one
	if sess.IsCurrent {
		if _, err = tx.ExecContext(ctx, "UPDATE session SET is_current = FALSE WHERE is_current"); err != nil {
			return academic.Session{}, errors.Wrap(err, "unsetting current session")
		}
	}

	query, args, err := psql.Insert("session").
		Columns(sessionColumns...).
		Values(sess.ID, sess.Name, sess.IsCurrent,
			sql.NullTime{Time: sess.NextSessionBegins.UTC(), Valid: !sess.NextSessionBegins.IsZero()},
			sess.CreatedAt.UTC(), sess.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return academic.Session{}, errors.Wrap(err, "building session insert")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return academic.Session{}, errors.Wrap(err, "inserting session")
	}

	if err = tx.Commit(); err != nil {
		return academic.Session{}, errors.Wrap(err, "committing session insert")
	}
	return sess, nil
}

func (repo academicRepository) QuerySessions(ctx context.Context) ([]academic.Session, error) {
	query, args, err := psql.Select(sessionColumns...).From("session").
		OrderBy("is_current DESC", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building sessions query")
	}

	var rows []sessionRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying sessions")
	}
	sessions := make([]academic.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.unpack())
	}
	return sessions, nil
}

func (repo academicRepository) getSession(ctx context.Context, cond interface{}) (academic.Session, error) {
	query, args, err := psql.Select(sessionColumns...).From("session").Where(cond).ToSql()
	if err != nil {
		return academic.Session{}, errors.Wrap(err, "building session query")
	}
	var row sessionRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return academic.Session{}, repo.trapSessionNoRowsErr(err, "finding session")
	}
	return row.unpack(), nil
}

func (repo academicRepository) GetSession(ctx context.Context, id string) (academic.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academic.Session{}, academic.ErrSessionNotFound
	}
	return repo.getSession(ctx, sq.Eq{"id": id})
}

func (repo academicRepository) GetCurrentSession(ctx context.Context) (academic.Session, error) {
	return repo.getSession(ctx, sq.Eq{"is_current": true})
}

func (repo academicRepository) UpdateSession(ctx context.Context, sess academic.Session) (academic.Session, error) {
	query, args, err := psql.Update("session").
		Set("name", sess.Name).
		Set("is_current", sess.IsCurrent).
		Set("next_session_begins", sql.NullTime{Time: sess.NextSessionBegins.UTC(), Valid: !sess.NextSessionBegins.IsZero()}).
		Set("updated_at", sess.UpdatedAt.UTC()).
		Where(sq.Eq{"id": sess.ID}).
		ToSql()
	if err != nil {
		return academic.Session{}, errors.Wrap(err, "building session update")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return academic.Session{}, errors.Wrap(err, "updating session")
	}
	return sess, nil
}

// DeleteSession deletes a session; its semesters go with it (FK cascade).
func (repo academicRepository) DeleteSession(ctx context.Context, id string) error {
	query, args, err := psql.Delete("session").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building session delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return nil
}

func (repo academicRepository) CreateSemester(ctx context.Context, sem academic.Semester) (academic.Semester, error) {
	sem.ID = uuid.New().String()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return academic.Semester{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if sem.IsCurrent {
		if _, err = tx.ExecContext(ctx, "UPDATE semester SET is_current = FALSE WHERE is_current"); err != nil {
			return academic.Semester{}, errors.Wrap(err, "unsetting current semester")
		}
	}

	query, args, err := psql.Insert("semester").
		Columns(semesterColumns...).
		Values(sem.ID, sem.Name, sem.IsCurrent, sem.SessionID,
			sql.NullTime{Time: sem.NextSemesterBegins.UTC(), Valid: !sem.NextSemesterBegins.IsZero()},
			sem.CreatedAt.UTC(), sem.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return academic.Semester{}, errors.Wrap(err, "building semester insert")
	}
	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return academic.Semester{}, errors.Wrap(err, "inserting semester")
	}

	if err = tx.Commit(); err != nil {
		return academic.Semester{}, errors.Wrap(err, "committing semester insert")
	}
	return sem, nil
}

func (repo academicRepository) QuerySemesters(ctx context.Context) ([]academic.Semester, error) {
	query, args, err := psql.Select(semesterColumns...).From("semester").
		OrderBy("is_current DESC", "created_at DESC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building semesters query")
	}

	var rows []semesterRow
	if err = sqlx.SelectContext(ctx, repo.db, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "querying semesters")
	}
	semesters := make([]academic.Semester, 0, len(rows))
	for _, row := range rows {
		semesters = append(semesters, row.unpack())
	}
	return semesters, nil
}

func (repo academicRepository) getSemester(ctx context.Context, cond interface{}) (academic.Semester, error) {
	query, args, err := psql.Select(semesterColumns...).From("semester").Where(cond).ToSql()
	if err != nil {
		return academic.Semester{}, errors.Wrap(err, "building semester query")
	}
	var row semesterRow
	if err = sqlx.GetContext(ctx, repo.db, &row, query, args...); err != nil {
		return academic.Semester{}, repo.trapSemesterNoRowsErr(err, "finding semester")
	}
	return row.unpack(), nil
}

func (repo academicRepository) GetSemester(ctx context.Context, id string) (academic.Semester, error) {
	if _, err := uuid.Parse(id); err != nil {
		return academic.Semester{}, academic.ErrSemesterNotFound
	}
	return repo.getSemester(ctx, sq.Eq{"id": id})
}

func (repo academicRepository) GetCurrentSemester(ctx context.Context) (academic.Semester, error) {
	return repo.getSemester(ctx, sq.Eq{"is_current": true})
}

func (repo academicRepository) UpdateSemester(ctx context.Context, sem academic.Semester) (academic.Semester, error) {
	query, args, err := psql.Update("semester").
		Set("name", sem.Name).
		Set("is_current", sem.IsCurrent).
		Set("session_id", sem.SessionID).
		Set("next_semester_begins", sql.NullTime{Time: sem.NextSemesterBegins.UTC(), Valid: !sem.NextSemesterBegins.IsZero()}).
		Set("updated_at", sem.UpdatedAt.UTC()).
		Where(sq.Eq{"id": sem.ID}).
		ToSql()
	if err != nil {
		return academic.Semester{}, errors.Wrap(err, "building semester update")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return academic.Semester{}, errors.Wrap(err, "updating semester")
	}
	return sem, nil
}

func (repo academicRepository) DeleteSemester(ctx context.Context, id string) error {
	query, args, err := psql.Delete("semester").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building semester delete")
	}
	if _, err = repo.db.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "deleting semester")
	}
	return nil
}
