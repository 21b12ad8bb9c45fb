package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/course"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func Test_courseApi(t *testing.T) {
	resetApp(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "heroxxx", "hero@test.cd", "", []string{user.RoleStudent}, true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacherxxx", "teacher@test.cd", "", []string{user.RoleTeacher}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "adminxxx", "admin@test.cd", "", []string{user.RoleAdmin}, true)
	studentToken := getToken(t, student)
	teacherToken := getToken(t, teacher)
	adminToken := getToken(t, admin)

	prog := testutil.CreateProgram(t, crsRepo, "Computer Science")
	crs := testutil.CreateCourse(t, crsRepo, "Algorithms", "algorithms", prog.ID)

	newCourse := func(title, slug string) []byte {
		return marchallObj(t, course.NewCourse{
			Title:     title,
			Slug:      slug,
			Code:      "CS200",
			Credit:    3,
			Semester:  academic.SemesterFirst,
			Level:     course.LevelBachelor,
			ProgramID: prog.ID,
		})
	}

	tests := []httpTest{
		{
			name: "programs require auth", method: http.MethodGet, path: "/v1/programs",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "programs list", method: http.MethodGet, path: "/v1/programs", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallList(t, prog),
		},
		{
			name: "only admins create programs", method: http.MethodPost, path: "/v1/programs", token: teacherToken,
			body:     marchallObj(t, course.NewProgram{Title: "Mathematics"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "courses list", method: http.MethodGet, path: "/v1/courses", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallList(t, crs),
		},
		{
			name: "course detail", method: http.MethodGet, path: "/v1/courses/algorithms", token: studentToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, crs),
		},
		{
			name: "course detail unknown", method: http.MethodGet, path: "/v1/courses/nope", token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "students cannot create courses", method: http.MethodPost, path: "/v1/courses", token: studentToken,
			body:     newCourse("Databases", "databases"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "duplicate slug rejected", method: http.MethodPost, path: "/v1/courses", token: teacherToken,
			body:     newCourse("Algorithms II", "algorithms"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"slug": "course with this slug already exists"}),
		},
		{
			name: "enrolling requires a student profile", method: http.MethodPost, path: "/v1/courses/algorithms/enroll", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "only admins register students", method: http.MethodPost, path: "/v1/students", token: studentToken,
			body:     marchallObj(t, course.NewStudent{UserID: student.ID, ProgramID: prog.ID, Level: course.LevelBachelor}),
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

	t.Run("teachers can create courses", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", teacherToken, newCourse("Databases", "databases"))
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %v", rec.Code, rec.Body.String())
		}
	})

	t.Run("enrollment flow", func(t *testing.T) {
		// admin registers the student profile
		body := marchallObj(t, course.NewStudent{UserID: student.ID, ProgramID: prog.ID, Level: course.LevelBachelor})
		req, rec := newAuthRequest(http.MethodPost, "/v1/students", adminToken, body)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %v", rec.Code, rec.Body.String())
		}

		// the student enrolls
		req, rec = newAuthRequest(http.MethodPost, "/v1/courses/algorithms/enroll", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body = %v", rec.Code, rec.Body.String())
		}
		var resp struct {
			Success string `json:"success"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if resp.Success != "You have been enrolled in Algorithms." {
			t.Errorf("unexpected message: %q", resp.Success)
		}

		// enrolling twice is rejected
		req, rec = newAuthRequest(http.MethodPost, "/v1/courses/algorithms/enroll", studentToken)
		app.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "you are already enrolled in this course"}),
		}
		checkCodeAndData(t, tt, rec)

		// the course shows up under "mine"
		req, rec = newAuthRequest(http.MethodGet, "/v1/courses/mine", studentToken)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body = %v", rec.Code, rec.Body.String())
		}
		var mine []course.Course
		if err := json.Unmarshal(rec.Body.Bytes(), &mine); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(mine) != 1 || mine[0].ID != crs.ID {
			t.Errorf("mine = %+v, want [%s]", mine, crs.ID)
		}
	})
}
