package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/examhall/apps/api/echo"
	"github.com/trezcool/examhall/core/grader"
	"github.com/trezcool/examhall/tests"
)

const graderPwd = "Str0ng!Pass"

func Test_authApi_login(t *testing.T) {
	app, srv := setup(t)
	_ = testutil.CreateGrader(t, app.GraderRepo, "Ann", "ann", "ann@test.ee", graderPwd, []string{grader.RoleGrader}, true)
	_ = testutil.CreateGrader(t, app.GraderRepo, "Gone", "gone", "", graderPwd, []string{grader.RoleGrader}, false)

	tests := []httpTest{
		{
			name: "missing credentials", method: http.MethodPost, path: "/v1/auth/login", body: []byte("{}"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "unknown grader", method: http.MethodPost, path: "/v1/auth/login",
			body:     marchallObj(t, grader.Credentials{Username: "lol", Password: graderPwd}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", method: http.MethodPost, path: "/v1/auth/login",
			body:     marchallObj(t, grader.Credentials{Username: "ann", Password: "nope"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/auth/login",
			body:     marchallObj(t, grader.Credentials{Username: "gone", Password: graderPwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	runHTTPTests(t, srv, tests)

	req, rec := newRequest(http.MethodPost, "/v1/auth/login", marchallObj(t, grader.Credentials{Username: "ANN@test.ee", Password: graderPwd}))
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp LoginResponse
	unmarshall(t, rec, &resp)
	require.NotEmpty(t, resp.Token)

	req, rec = newAuthRequest(http.MethodGet, "/v1/grading/review?track=day1", resp.Token)
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t)}, rec)
}

func Test_authApi_refreshToken(t *testing.T) {
	app, srv := setup(t)
	ann := testutil.CreateGrader(t, app.GraderRepo, "Ann", "ann", "", graderPwd, []string{grader.RoleGrader}, true)
	gone := testutil.CreateGrader(t, app.GraderRepo, "Gone", "gone", "", graderPwd, []string{grader.RoleGrader}, false)

	stale, err := GenerateToken(GetGraderClaims(ann, app.Conf, time.Now().Add(-2*app.Conf.Server.JWTRefreshExpirationDelta).Unix()), app.Conf)
	require.NoError(t, err)

	tests := []httpTest{
		{name: "auth required", method: http.MethodPost, path: "/v1/auth/token-refresh", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "refresh expired", method: http.MethodPost, path: "/v1/auth/token-refresh", token: stale,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
		{
			name: "deactivated", method: http.MethodPost, path: "/v1/auth/token-refresh", token: getToken(t, app.Conf, gone),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{name: "refreshed", method: http.MethodPost, path: "/v1/auth/token-refresh", token: getToken(t, app.Conf, ann), wantCode: http.StatusOK},
	}
	runHTTPTests(t, srv, tests)
}

func Test_graderApi(t *testing.T) {
	app, srv := setup(t)
	admin := testutil.CreateGrader(t, app.GraderRepo, "Boss", "boss", "boss@test.ee", "", grader.AllRoles, true)
	ann := testutil.CreateGrader(t, app.GraderRepo, "Ann", "ann", "ann@test.ee", "", []string{grader.RoleGrader}, true)
	adminToken := getToken(t, app.Conf, admin)

	tests := []httpTest{
		{name: "auth required", path: "/v1/admin/graders", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/admin/graders", token: getToken(t, app.Conf, ann),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "all", path: "/v1/admin/graders", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, ann, admin)},
		{name: "roles", path: "/v1/admin/graders/roles", token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, grader.AllRoles)},
		{
			name: "weak password", method: http.MethodPost, path: "/v1/admin/graders", token: adminToken,
			body: marchallObj(t, grader.NewGrader{Name: "Cat", Username: "cat", Password: "cat", PasswordConfirm: "cat"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name: "username taken", method: http.MethodPost, path: "/v1/admin/graders", token: adminToken,
			body:     marchallObj(t, grader.NewGrader{Name: "Ann", Username: "ann", Password: graderPwd, PasswordConfirm: graderPwd}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "a grader with this username already exists"}),
		},
		{
			name: "create", method: http.MethodPost, path: "/v1/admin/graders", token: adminToken,
			body:     marchallObj(t, grader.NewGrader{Name: "Cat", Username: "cat", Password: graderPwd, PasswordConfirm: graderPwd}),
			wantCode: http.StatusCreated,
		},
		{
			name: "no self-deactivation", method: http.MethodPut, path: "/v1/admin/graders/" + admin.ID + "/active", token: adminToken,
			body: marchallObj(t, SetActiveRequest{IsActive: false}), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown grader", method: http.MethodPut, path: "/v1/admin/graders/lol/active", token: adminToken,
			body: marchallObj(t, SetActiveRequest{IsActive: false}), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "grader not found"}),
		},
		{
			name: "deactivate", method: http.MethodPut, path: "/v1/admin/graders/" + ann.ID + "/active", token: adminToken,
			body: marchallObj(t, SetActiveRequest{IsActive: false}), wantCode: http.StatusOK,
		},
	}
	runHTTPTests(t, srv, tests)

	g, err := app.GraderSvc.GetByID(context.Background(), ann.ID)
	require.NoError(t, err)
	assert.False(t, g.IsActive)

	// ann's token stops working right away
	req, rec := newAuthRequest(http.MethodGet, "/v1/grading/review?track=day1", getToken(t, app.Conf, ann))
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
