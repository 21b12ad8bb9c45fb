package tests

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func Test_academicApi_sessions(t *testing.T) {
	resetApp(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "heroxxx", "hero@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "adminxxx", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	begins := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	old := testutil.CreateSession(t, acadRepo, "2024-2025", false, begins, time.Now().UTC().Add(-time.Hour))
	current := testutil.CreateSession(t, acadRepo, "2025-2026", true, begins)

	newSess := func(name string, isCurrent bool, nextBegins string) []byte {
		return marchallObj(t, academic.NewSession{Name: name, IsCurrent: isCurrent, NextSessionBegins: nextBegins})
	}

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodGet, path: "/v1/sessions",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "students may read", method: http.MethodGet, path: "/v1/sessions", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallList(t, current, old),
		},
		{
			name: "current session", method: http.MethodGet, path: "/v1/sessions/current", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, current),
		},
		{
			name: "retrieve", method: http.MethodGet, path: "/v1/sessions/" + old.ID, token: studentToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, old),
		},
		{
			name: "retrieve unknown", method: http.MethodGet, path: "/v1/sessions/nope", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "only admins may create", method: http.MethodPost, path: "/v1/sessions", token: studentToken,
			body:     newSess("2026-2027", false, "2026-09-01"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "duplicate name rejected", method: http.MethodPost, path: "/v1/sessions", token: adminToken,
			body:     newSess("2024-2025", false, "2026-09-01"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "session with this name already exists"}),
		},
		{
			name: "invalid date rejected", method: http.MethodPost, path: "/v1/sessions", token: adminToken,
			body:     newSess("2026-2027", false, "September 1st"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"next_session_begins": "enter a valid date"}),
		},
		{
			name: "current session cannot be deleted", method: http.MethodDelete, path: "/v1/sessions/" + current.ID, token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "you cannot delete the current session"}),
		},
		{
			name: "only admins may delete", method: http.MethodDelete, path: "/v1/sessions/" + old.ID, token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("admin creates a session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/sessions", adminToken, newSess("2026-2027", true, "2026-09-01"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %v", rec.Code, rec.Body.String())
		}
		var sess academic.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if sess.ID == "" || !sess.IsCurrent {
			t.Errorf("unexpected session: %+v", sess)
		}

		// it dethrones the previous current session
		req, rec = newAuthRequest(http.MethodGet, "/v1/sessions/current", adminToken)
		app.ServeHTTP(rec, req)
		var cur academic.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &cur); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if cur.ID != sess.ID {
			t.Errorf("current session = %s, want %s", cur.ID, sess.ID)
		}
	})

	t.Run("admin deletes a non-current session", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/sessions/"+old.ID, adminToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("failed! code = %v; body = %v", rec.Code, rec.Body.String())
		}
	})
}

func Test_academicApi_semesters(t *testing.T) {
	resetApp(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "heroxxx", "hero@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "adminxxx", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	begins := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	sess := testutil.CreateSession(t, acadRepo, "2026-2027", true, begins)
	first := testutil.CreateSemester(t, acadRepo, academic.SemesterFirst, sess.ID, true, begins)

	newSem := func(name, sessionID string, isCurrent bool) []byte {
		return marchallObj(t, academic.NewSemester{Name: name, IsCurrent: isCurrent, SessionID: sessionID, NextSemesterBegins: "2027-01-10"})
	}

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodGet, path: "/v1/semesters",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "students may read", method: http.MethodGet, path: "/v1/semesters", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallList(t, first),
		},
		{
			name: "current semester", method: http.MethodGet, path: "/v1/semesters/current", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, first),
		},
		{
			name: "only admins may create", method: http.MethodPost, path: "/v1/semesters", token: studentToken,
			body:     newSem(academic.SemesterSecond, sess.ID, false),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown session rejected", method: http.MethodPost, path: "/v1/semesters", token: adminToken,
			body:     newSem(academic.SemesterSecond, "nope", false),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"session_id": "session not found"}),
		},
		{
			name: "current semester cannot be deleted", method: http.MethodDelete, path: "/v1/semesters/" + first.ID, token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "you cannot delete the current semester"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("admin creates a semester", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/semesters", adminToken, newSem(academic.SemesterSecond, sess.ID, true))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %v", rec.Code, rec.Body.String())
		}
		var sem academic.Semester
		if err := json.Unmarshal(rec.Body.Bytes(), &sem); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !sem.IsCurrent || sem.SessionID != sess.ID {
			t.Errorf("unexpected semester: %+v", sem)
		}
	})
}
