package tests

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func Test_userApi_login(t *testing.T) {
	resetApp(t)

	usr := testutil.CreateUser(t, usrRepo, "Hero", "heroxxx", "hero@test.cd", "LePassw0rd", []string{user.RoleStudent}, true)
	testutil.CreateUser(t, usrRepo, "N Dog", "ndogxxx", "ndog@test.cd", "LePassw0rd", []string{user.RoleStudent}, false)

	tests := []httpTest{
		{
			name: "username and password required", body: marchallObj(t, echoapi.LoginRequest{}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown user", body: marchallObj(t, echoapi.LoginRequest{Username: "whoami", Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "invalid credentials"}),
		},
		{
			name: "wrong password", body: marchallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", body: marchallObj(t, echoapi.LoginRequest{Username: "ndogxxx", Password: "LePassw0rd"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "login with username", body: marchallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "LePassw0rd"}),
			wantCode: http.StatusOK,
		},
		{
			name: "login with email", body: marchallObj(t, echoapi.LoginRequest{Username: usr.Email, Password: "LePassw0rd"}),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
			}
		})
	}
}

func Test_userApi_query(t *testing.T) {
	resetApp(t)

	path := func(search string, createdFrom, createdTo time.Time, isActive *bool, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		for _, r := range roles {
			v.Add("role", r)
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	t1 := now.Add(1 * time.Hour)
	t2 := now.Add(2 * time.Hour)
	t3 := now.Add(3 * time.Hour)
	t4 := now.Add(4 * time.Hour)
	t5 := now.Add(5 * time.Hour)

	usr1 := testutil.CreateUser(t, usrRepo, "User", "awexxx", "awe@test.cd", "", nil, true, t1)
	usr2 := testutil.CreateUser(t, usrRepo, "King", "user02", "king@test.cd", "", nil, true, now)
	student := testutil.CreateUser(t, usrRepo, "Hero", "heroxxx", "hero@test.cd", "", []string{user.RoleStudent}, true, now.Add(30*time.Minute))
	admin := testutil.CreateUser(t, usrRepo, "Admin", "adminxxx", "admin@test.cd", "", []string{user.RoleAdmin}, true, t2.Truncate(time.Second))
	principal := testutil.CreateUser(t, usrRepo, "Principal", "principxxx", "princip@test.cd", "", []string{user.RoleAdminPrincipal}, true, now.Add(45*time.Minute))
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "teacherxxx", "teacher@test.cd", "", []string{user.RoleTeacher}, true, t3)
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndogxxx", "ndog@test.cd", "", []string{user.RoleStudent}, false, now.Add(15*time.Minute))

	adminToken := getToken(t, admin)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/users", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "get all (newest first)", path: "/v1/users", token: adminToken,
			wantData: marchallList(t, teacher, admin, usr1, principal, student, naughty, usr2),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", time.Time{}, time.Time{}, nil), token: adminToken, wantData: empty},
		{
			name: "search=USE", path: path("USE", time.Time{}, time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, usr1, student, usr2),
		},
		{name: "role (unknown)", path: path("", time.Time{}, time.Time{}, nil, "lol"), token: adminToken, wantData: empty},
		{
			name: "role=admin:", path: path("", time.Time{}, time.Time{}, nil, user.RoleAdmin),
			token: adminToken, wantData: marchallList(t, admin, principal),
		},
		{
			name: "role=teacher:,student:", path: path("", time.Time{}, time.Time{}, nil, user.RoleTeacher, user.RoleStudent),
			token: adminToken, wantData: marchallList(t, teacher, student, naughty),
		},
		{
			name: "is_active=false", path: path("", time.Time{}, time.Time{}, bPtr(false)),
			token: adminToken, wantData: marchallList(t, naughty),
		},
		{
			name: "created_from", path: path("", t1.UTC(), time.Time{}, nil),
			token: adminToken, wantData: marchallList(t, teacher, admin, usr1),
		},
		{
			name: "created_from - created_to (empty)", path: path("", t4, t5, nil),
			token: adminToken, wantData: empty,
		},
		{
			name: "created_from - created_to (found)", path: path("", t1, t2, nil),
			token: adminToken, wantData: marchallList(t, admin, usr1),
		},
		{
			name: "all combo (found)", path: path("tea", t1, t5, bPtr(true), user.RoleTeacher),
			token: adminToken, wantData: marchallList(t, teacher),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_create(t *testing.T) {
	resetApp(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "heroxxx", "hero@test.cd", "", []string{user.RoleStudent}, true)
	principal := testutil.CreateUser(t, usrRepo, "Principal", "principxxx", "princip@test.cd", "", []string{user.RoleAdminPrincipal}, true)

	newUsr := func(name, uname string, roles ...string) []byte {
		return marchallObj(t, user.NewUser{
			Name:            name,
			Username:        uname,
			Email:           uname + "@test.cd",
			Password:        "LePassw0rd",
			PasswordConfirm: "LePassw0rd",
			Roles:           roles,
		})
	}

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", token: getToken(t, student), body: newUsr("New", "newuser"),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "cannot grant a role above their own", token: getToken(t, principal),
			body:     newUsr("Boss", "bigboss", user.RoleAdminOwner),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "not enough rights to set these roles"}),
		},
		{
			name: "duplicate username", token: getToken(t, principal), body: newUsr("Hero Again", "heroxxx"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
		{name: "created", token: getToken(t, principal), body: newUsr("New", "newuser", user.RoleTeacher), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/register", tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantData != nil {
				checkCodeAndData(t, tt, rec)
				return
			}
			if rec.Code != tt.wantCode {
				t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
			}
			var respData user.User
			if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
				t.Fatalf("json.Unmarshal() failed! err %v", err)
			}
			if respData.ID == "" || respData.Username != "newuser" || !respData.IsActive {
				t.Errorf("unexpected user: %+v", respData)
			}
		})
	}
}

func Test_userApi_refreshToken(t *testing.T) {
	resetApp(t)

	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "ndogxxx", "ndog@test.cd", "", []string{user.RoleStudent}, false)
	student := testutil.CreateUser(t, usrRepo, "Hero", "heroxxx", "hero@test.cd", "", []string{user.RoleStudent}, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   student.ID,
			Audience:  "Academia",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		IsStudent:    student.IsStudent(),
		Roles:        student.Roles,
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "inactive user not allowed", token: getToken(t, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "refresh period expired", token: unrefreshableToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{name: "token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess the new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Fatalf("json.Unmarshal() failed! err %v", err)
				}
				if respData.Token == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	resetApp(t)

	student := testutil.CreateUser(t, usrRepo, "Hero", "heroxxx", "hero@test.cd", "", []string{user.RoleStudent}, true)
	other := testutil.CreateUser(t, usrRepo, "Other", "otherxxx", "other@test.cd", "", []string{user.RoleStudent}, true)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "adminxxx", "admin@test.cd", "", []string{user.RoleAdmin}, true)

	tests := []httpTest{
		{
			name: "auth required", method: http.MethodGet, path: "/v1/users/" + student.ID,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "owner can retrieve self", method: http.MethodGet, path: "/v1/users/" + student.ID,
			token: getToken(t, student), wantCode: http.StatusOK, wantData: marchallObj(t, student),
		},
		{
			name: "non-owner cannot retrieve", method: http.MethodGet, path: "/v1/users/" + student.ID,
			token: getToken(t, other), wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "admin can retrieve anyone", method: http.MethodGet, path: "/v1/users/" + student.ID,
			token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, student),
		},
		{
			name: "non-admin cannot change roles", method: http.MethodPut, path: "/v1/users/" + student.ID,
			token: getToken(t, student), body: marchallObj(t, user.UpdateUser{Roles: []string{user.RoleAdmin}}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "admin cannot delete themselves", method: http.MethodDelete, path: "/v1/users/" + admin.ID,
			token: getToken(t, admin), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "non-admin cannot delete", method: http.MethodDelete, path: "/v1/users/" + other.ID,
			token: getToken(t, other), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "admin can delete", method: http.MethodDelete, path: "/v1/users/" + other.ID,
			token: getToken(t, admin), wantCode: http.StatusNoContent,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusNoContent {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_passwordReset(t *testing.T) {
	resetApp(t)

	usr := testutil.CreateUser(t, usrRepo, "Hero", "heroxxx", "hero@test.cd", "OldPassw0rd", []string{user.RoleStudent}, true)

	// request a reset; the response never leaks account existence
	body := marchallObj(t, echoapi.PasswordResetRequest{Email: usr.Email})
	req, rec := newRequest(http.MethodPost, "/v1/users/password-reset", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}

	body = marchallObj(t, echoapi.PasswordResetRequest{Email: "ghost@test.cd"})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset", body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}

	// confirm with a forged token
	confirm := marchallObj(t, user.ResetUserPassword{
		Token:           "HE4TS-forged",
		UID:             user.EncodeUID(usr),
		Password:        "NewPassw0rd",
		PasswordConfirm: "NewPassw0rd",
	})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", confirm)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusBadRequest)
	}

	// confirm with a valid token
	token, err := user.MakeToken(usr)
	if err != nil {
		t.Fatalf("MakeToken(): %v", err)
	}
	confirm = marchallObj(t, user.ResetUserPassword{
		Token:           token,
		UID:             user.EncodeUID(usr),
		Password:        "NewPassw0rd",
		PasswordConfirm: "NewPassw0rd",
	})
	req, rec = newRequest(http.MethodPost, "/v1/users/password-reset-confirm", confirm)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}

	// the new password now works
	login := marchallObj(t, echoapi.LoginRequest{Username: usr.Username, Password: "NewPassw0rd"})
	req, rec = newRequest(http.MethodPost, "/v1/users/login", login)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("failed! code = %v; body = %v", rec.Code, rec.Body.String())
	}
}
