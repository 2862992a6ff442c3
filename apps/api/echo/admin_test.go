package echoapi_test

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/examhall/apps/api/echo"
	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/exam"
	"github.com/trezcool/examhall/core/grader"
	"github.com/trezcool/examhall/core/participant"
	"github.com/trezcool/examhall/tests"
)

func Test_adminApi_participants(t *testing.T) {
	app, srv := setup(t)
	admin := testutil.CreateGrader(t, app.GraderRepo, "Boss", "boss", "", "", []string{grader.RoleAdmin}, true)
	ann := testutil.CreateGrader(t, app.GraderRepo, "Ann", "ann", "", "", []string{grader.RoleGrader}, true)
	adminToken := getToken(t, app.Conf, admin)

	tests := []httpTest{
		{name: "auth required", path: "/v1/admin/participants", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/admin/participants", token: getToken(t, app.Conf, ann),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "empty", path: "/v1/admin/participants", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "invalid row", method: http.MethodPost, path: "/v1/admin/participants/import", token: adminToken,
			body:     marchallObj(t, []participant.NewParticipant{{Nickname: "alice"}, {Email: "x@test.ee"}}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"rows[1].nickname": "required"}),
		},
		{
			name: "import json", method: http.MethodPost, path: "/v1/admin/participants/import", token: adminToken,
			body:     marchallObj(t, []participant.NewParticipant{{Nickname: "alice", Email: "alice@test.ee"}}),
			wantCode: http.StatusCreated,
		},
		{
			name: "create one", method: http.MethodPost, path: "/v1/admin/participants", token: adminToken,
			body:     marchallObj(t, participant.NewParticipant{Nickname: "bob", PreferredLang: "french"}),
			wantCode: http.StatusCreated,
		},
		{
			name: "create invalid", method: http.MethodPost, path: "/v1/admin/participants", token: adminToken,
			body:     marchallObj(t, participant.NewParticipant{Nickname: "bob", PreferredLang: "klingon"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"preferred_lang": "unsupported paper language"}),
		},
	}
	runHTTPTests(t, srv, tests)

	// raw csv body
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/participants/import",
		strings.NewReader("nickname,email,preferred_lang\ncarol,carol@test.ee,russian\n"))
	req.Header.Set("Content-Type", "text/csv")
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// multipart csv file
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "participants.csv")
	require.NoError(t, err)
	_, _ = fw.Write([]byte("dave\n"))
	require.NoError(t, w.Close())
	req = httptest.NewRequest(http.MethodPost, "/v1/admin/participants/import", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var imported []participant.Participant
	unmarshall(t, rec, &imported)
	require.Len(t, imported, 1)
	assert.Equal(t, "dave", imported[0].Nickname)

	participants, err := app.ParticipantSvc.QueryAll(context.Background())
	require.NoError(t, err)
	require.Len(t, participants, 4)

	req, rec = newAuthRequest(http.MethodGet, "/v1/admin/participants", adminToken)
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallList(t,
		participants[0], participants[1], participants[2], participants[3])}, rec)

	// access links
	links := make([]participant.AccessLink, 0, len(participants))
	for _, p := range participants {
		links = append(links, app.ParticipantSvc.AccessLink(p))
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/admin/participants/links", adminToken)
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, links)}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/admin/participants/links?format=csv", adminToken)
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "nickname,email,url", lines[0])
	assert.Equal(t, "alice,alice@test.ee,"+links[0].URL, lines[1])

	req, rec = newAuthRequest(http.MethodPost, "/v1/admin/participants/links/send", adminToken)
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, core.SendResult{Sent: 2})}, rec)
	assert.Len(t, app.Mail.SentMessages(), 2)
}

func Test_adminApi_papers(t *testing.T) {
	app, srv := setup(t)
	admin := testutil.CreateGrader(t, app.GraderRepo, "Boss", "boss", "", "", []string{grader.RoleAdmin}, true)
	adminToken := getToken(t, app.Conf, admin)

	upsert := func(np exam.NewExamPaper) exam.ExamPaper {
		req, rec := newAuthRequest(http.MethodPut, "/v1/admin/papers", adminToken, marchallObj(t, np))
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var paper exam.ExamPaper
		unmarshall(t, rec, &paper)
		return paper
	}
	en := upsert(exam.NewExamPaper{TestName: "day1", Language: "english", Link: "https://papers.test/1-en.pdf"})
	fr := upsert(exam.NewExamPaper{TestName: "day1", Language: "french", Link: "https://papers.test/1-fr.pdf"})
	ru := upsert(exam.NewExamPaper{TestName: "day2", Language: "russian", Link: "https://papers.test/2-ru.pdf", IsActive: true})

	en2 := upsert(exam.NewExamPaper{TestName: "day1", Language: "english", Link: "https://papers.test/1-en-v2.pdf"})
	assert.Equal(t, en.ID, en2.ID, "papers are replaced per track and language")

	tests := []httpTest{
		{
			name: "invalid paper", method: http.MethodPut, path: "/v1/admin/papers", token: adminToken,
			body:     marchallObj(t, exam.NewExamPaper{TestName: "day3", Language: "english", Link: "https://papers.test/x.pdf"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"test_name": "unknown exam track"}),
		},
		{name: "all", path: "/v1/admin/papers", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, en2, fr, ru)},
		{name: "by track", path: "/v1/admin/papers?track=day2", token: adminToken, wantCode: http.StatusOK, wantData: marchallList(t, ru)},
		{
			name: "activate", method: http.MethodPost, path: "/v1/admin/papers/activate", token: adminToken,
			body:     marchallObj(t, exam.ActivatePapers{TestName: core.TrackDay1, IsActive: true}),
			wantCode: http.StatusOK, wantData: marchallObj(t, UpdatedResponse{Updated: 2}),
		},
	}
	runHTTPTests(t, srv, tests)

	tracks, err := app.ExamSvc.VisibleTracks(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{core.TrackDay1, core.TrackDay2}, tracks)
}
