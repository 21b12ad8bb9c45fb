package academic_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

func setup(t *testing.T) (*academic.Service, academic.Repository) {
	t.Helper()

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	repo := inmemdb.NewAcademicRepository(db)
	return academic.NewService(repo), repo
}

// assertValidationErr checks that err is a *core.ValidationError wrapping want,
// optionally on a specific field.
func assertValidationErr(t *testing.T, err, want error, field string) {
	t.Helper()

	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("expected *core.ValidationError, got %T: %v", err, err)
	}
	if want != nil && vErr.Err != want {
		t.Errorf("ValidationError.Err = %v, want %v", vErr.Err, want)
	}
	if field != "" {
		if len(vErr.Fields) == 0 {
			t.Fatalf("expected a field error on %q, got none", field)
		}
		if vErr.Fields[0].Field != field {
			t.Errorf("FieldError.Field = %s, want %s", vErr.Fields[0].Field, field)
		}
	}
}

func TestNewSessionValidate(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	academic.NowFunc = func() time.Time { return time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC) }
	defer func() { academic.NowFunc = time.Now }()

	testutil.CreateSession(t, repo, "2024-2025", false, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC))

	t.Run("duplicate name", func(t *testing.T) {
		data := academic.NewSession{Name: "2024-2025", NextSessionBegins: "2026-09-01"}
		assertValidationErr(t, data.Validate(ctx, svc), academic.ErrSessionExists, "name")
	})

	t.Run("invalid name", func(t *testing.T) {
		for _, name := range []string{"🎓 2026", "@2026!", "-2026", " "} {
			data := academic.NewSession{Name: name, NextSessionBegins: "2026-09-01"}
			if err := data.Validate(ctx, svc); err == nil {
				t.Errorf("Validate() accepted invalid name %q", name)
			}
		}
	})

	t.Run("invalid date", func(t *testing.T) {
		data := academic.NewSession{Name: "2026-2027", NextSessionBegins: "not-a-date"}
		assertValidationErr(t, data.Validate(ctx, svc), academic.ErrInvalidDate, "next_session_begins")
	})

	t.Run("date too far in the past", func(t *testing.T) {
		data := academic.NewSession{Name: "2026-2027", NextSessionBegins: "2010-01-01"}
		assertValidationErr(t, data.Validate(ctx, svc), academic.ErrDateTooFar, "next_session_begins")
	})

	t.Run("date too far in the future", func(t *testing.T) {
		data := academic.NewSession{Name: "2026-2027", NextSessionBegins: "2040-01-01"}
		assertValidationErr(t, data.Validate(ctx, svc), academic.ErrDateTooFar, "next_session_begins")
	})

	t.Run("valid", func(t *testing.T) {
		data := academic.NewSession{Name: "2026-2027", IsCurrent: true, NextSessionBegins: "2026-09-01"}
		if err := data.Validate(ctx, svc); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
		sess, err := svc.CreateSession(ctx, data)
		if err != nil {
			t.Fatalf("CreateSession() failed: %v", err)
		}
		want := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
		if !sess.NextSessionBegins.Equal(want) {
			t.Errorf("NextSessionBegins = %v, want %v", sess.NextSessionBegins, want)
		}
		if !sess.IsCurrent {
			t.Error("session should be current")
		}
	})
}

func TestSessionCurrentRules(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	begins := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	older := testutil.CreateSession(t, repo, "2024-2025", true, begins)
	newer := testutil.CreateSession(t, repo, "2025-2026", true, begins)

	// the latest current session dethrones the previous one
	refreshed, err := repo.GetSession(ctx, older.ID)
	if err != nil {
		t.Fatalf("GetSession() failed: %v", err)
	}
	if refreshed.IsCurrent {
		t.Error("previous session should no longer be current")
	}
	cur, err := svc.GetCurrentSession(ctx)
	if err != nil {
		t.Fatalf("GetCurrentSession() failed: %v", err)
	}
	if cur.ID != newer.ID {
		t.Errorf("GetCurrentSession() = %s, want %s", cur.ID, newer.ID)
	}

	t.Run("update cannot set current when another session is", func(t *testing.T) {
		isCurrent := true
		data := academic.UpdateSession{IsCurrent: &isCurrent}
		err := data.Validate(ctx, refreshed, svc)
		assertValidationErr(t, err, academic.ErrCurrentSessionSet, "is_current")
	})

	t.Run("current session cannot be deleted", func(t *testing.T) {
		assertValidationErr(t, svc.DeleteSession(ctx, newer.ID), academic.ErrCurrentSessionDelete, "")
	})

	t.Run("deleting a session takes its semesters along", func(t *testing.T) {
		sem := testutil.CreateSemester(t, repo, academic.SemesterFirst, older.ID, false, begins)
		if err := svc.DeleteSession(ctx, older.ID); err != nil {
			t.Fatalf("DeleteSession() failed: %v", err)
		}
		if _, err := repo.GetSemester(ctx, sem.ID); err != academic.ErrSemesterNotFound {
			t.Errorf("GetSemester() error = %v, want %v", err, academic.ErrSemesterNotFound)
		}
	})
}

// brokenCurrentRepo fails every current-session/semester lookup.
type brokenCurrentRepo struct {
	academic.Repository
	err error
}

func (r brokenCurrentRepo) GetCurrentSession(ctx context.Context) (academic.Session, error) {
	return academic.Session{}, r.err
}

func (r brokenCurrentRepo) GetCurrentSemester(ctx context.Context) (academic.Semester, error) {
	return academic.Semester{}, r.err
}

func TestUpdateCurrentCheckRepoErrors(t *testing.T) {
	_, repo := setup(t)
	ctx := context.Background()

	begins := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	sess := testutil.CreateSession(t, repo, "2026-2027", false, begins)
	sem := testutil.CreateSemester(t, repo, academic.SemesterFirst, sess.ID, false, begins)

	errDBDown := errors.New("connection refused")
	isCurrent := true

	t.Run("session check propagates repository errors", func(t *testing.T) {
		svc := academic.NewService(brokenCurrentRepo{Repository: repo, err: errDBDown})
		data := academic.UpdateSession{IsCurrent: &isCurrent}
		if err := data.Validate(ctx, sess, svc); err != errDBDown {
			t.Errorf("Validate() error = %v, want %v", err, errDBDown)
		}
	})

	t.Run("semester check propagates repository errors", func(t *testing.T) {
		svc := academic.NewService(brokenCurrentRepo{Repository: repo, err: errDBDown})
		data := academic.UpdateSemester{IsCurrent: &isCurrent}
		if err := data.Validate(ctx, sem, svc); err != errDBDown {
			t.Errorf("Validate() error = %v, want %v", err, errDBDown)
		}
	})

	t.Run("no current session allows becoming current", func(t *testing.T) {
		svc := academic.NewService(repo)
		data := academic.UpdateSession{IsCurrent: &isCurrent}
		if err := data.Validate(ctx, sess, svc); err != nil {
			t.Errorf("Validate() failed: %v", err)
		}
	})

	t.Run("no current semester allows becoming current", func(t *testing.T) {
		svc := academic.NewService(repo)
		data := academic.UpdateSemester{IsCurrent: &isCurrent}
		if err := data.Validate(ctx, sem, svc); err != nil {
			t.Errorf("Validate() failed: %v", err)
		}
	})
}

func TestQuerySessionsOrdering(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	begins := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now().UTC()
	oldest := testutil.CreateSession(t, repo, "2023-2024", false, begins, now.Add(-2*time.Hour))
	current := testutil.CreateSession(t, repo, "2024-2025", true, begins, now.Add(-time.Hour))
	newest := testutil.CreateSession(t, repo, "2025-2026", false, begins, now)

	sessions, err := svc.QuerySessions(ctx)
	if err != nil {
		t.Fatalf("QuerySessions() failed: %v", err)
	}
	wantOrder := []string{current.ID, newest.ID, oldest.ID} // current first, then newest
	if len(sessions) != len(wantOrder) {
		t.Fatalf("QuerySessions() returned %d sessions, want %d", len(sessions), len(wantOrder))
	}
	for i, id := range wantOrder {
		if sessions[i].ID != id {
			t.Errorf("sessions[%d].ID = %s, want %s", i, sessions[i].ID, id)
		}
	}
}

func TestNewSemesterValidate(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	academic.NowFunc = func() time.Time { return time.Date(2026, time.August, 20, 0, 0, 0, 0, time.UTC) }
	defer func() { academic.NowFunc = time.Now }()

	begins := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	sess := testutil.CreateSession(t, repo, "2026-2027", true, begins)

	t.Run("invalid name", func(t *testing.T) {
		data := academic.NewSemester{Name: "Third", SessionID: sess.ID, NextSemesterBegins: "2027-01-10"}
		if err := data.Validate(ctx, svc); err == nil {
			t.Error("Validate() accepted an invalid semester name")
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		data := academic.NewSemester{Name: academic.SemesterFirst, SessionID: "nope", NextSemesterBegins: "2027-01-10"}
		err := data.Validate(ctx, svc)
		vErr, ok := err.(*core.ValidationError)
		if !ok {
			t.Fatalf("expected *core.ValidationError, got %T: %v", err, err)
		}
		if len(vErr.Fields) == 0 || vErr.Fields[0].Field != "session_id" {
			t.Errorf("expected a field error on session_id, got %+v", vErr.Fields)
		}
	})

	t.Run("valid", func(t *testing.T) {
		data := academic.NewSemester{Name: academic.SemesterFirst, IsCurrent: true, SessionID: sess.ID, NextSemesterBegins: "2027-01-10"}
		if err := data.Validate(ctx, svc); err != nil {
			t.Fatalf("Validate() failed: %v", err)
		}
		sem, err := svc.CreateSemester(ctx, data)
		if err != nil {
			t.Fatalf("CreateSemester() failed: %v", err)
		}
		if sem.SessionID != sess.ID {
			t.Errorf("SessionID = %s, want %s", sem.SessionID, sess.ID)
		}
	})
}

func TestSemesterCurrentRules(t *testing.T) {
	svc, repo := setup(t)
	ctx := context.Background()

	begins := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	sess := testutil.CreateSession(t, repo, "2026-2027", true, begins)
	first := testutil.CreateSemester(t, repo, academic.SemesterFirst, sess.ID, true, begins)
	second := testutil.CreateSemester(t, repo, academic.SemesterSecond, sess.ID, true, begins)

	refreshed, err := repo.GetSemester(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetSemester() failed: %v", err)
	}
	if refreshed.IsCurrent {
		t.Error("previous semester should no longer be current")
	}
	cur, err := svc.GetCurrentSemester(ctx)
	if err != nil {
		t.Fatalf("GetCurrentSemester() failed: %v", err)
	}
	if cur.ID != second.ID {
		t.Errorf("GetCurrentSemester() = %s, want %s", cur.ID, second.ID)
	}

	t.Run("update cannot set current when another semester is", func(t *testing.T) {
		isCurrent := true
		data := academic.UpdateSemester{IsCurrent: &isCurrent}
		err := data.Validate(ctx, refreshed, svc)
		assertValidationErr(t, err, academic.ErrCurrentSemesterSet, "is_current")
	})

	t.Run("current semester cannot be deleted", func(t *testing.T) {
		assertValidationErr(t, svc.DeleteSemester(ctx, second.ID), academic.ErrCurrentSemesterDelete, "")
	})

	t.Run("non-current semester can be deleted", func(t *testing.T) {
		if err := svc.DeleteSemester(ctx, first.ID); err != nil {
			t.Fatalf("DeleteSemester() failed: %v", err)
		}
		if _, err := repo.GetSemester(ctx, first.ID); err != academic.ErrSemesterNotFound {
			t.Errorf("GetSemester() error = %v, want %v", err, academic.ErrSemesterNotFound)
		}
	})
}
