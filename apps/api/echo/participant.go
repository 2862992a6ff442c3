package echoapi

import (
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/exam"
	"github.com/trezcool/examhall/core/participant"
	"github.com/trezcool/examhall/core/submission"
)

const successMsg = "success"

type participantApi struct {
	opts *Options
}

func registerParticipantAPI(g *echo.Group, opts *Options) {
	api := participantApi{opts: opts}

	ug := g.Group("/user/:token")
	ug.GET("", api.landing)
	ug.GET("/exam/:track", api.examPage)
	ug.POST("/submissions", api.submit)

	if prefix := staticPrefix(opts.Conf.Storage.StaticURL); prefix != "" && opts.Files != nil {
		g.GET(prefix+"/:name", api.solution)
	}
}

// staticPrefix is the path solutions are served under.
func staticPrefix(staticURL string) string {
	u, err := url.Parse(staticURL)
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(u.Path, "/")
}

type (
	LandingResponse struct {
		Nickname string   `json:"nickname"`
		Tracks   []string `json:"tracks"`
		Msg      string   `json:"msg,omitempty"`
	}

	SubmissionView struct {
		ProblemID int       `json:"problem_id"`
		Link      string    `json:"link"`
		Language  string    `json:"language"`
		Timestamp time.Time `json:"timestamp"`
	}

	ExamPageResponse struct {
		Nickname        string              `json:"nickname"`
		Session         participant.Session `json:"session"`
		Problems        core.ProblemRange   `json:"problems"`
		Paper           exam.ExamPaper      `json:"paper"`
		PaperLanguages  []string            `json:"paper_languages"`
		AnswerLanguages []string            `json:"answer_languages"`
		Labels          map[int]string      `json:"labels"`
		Submissions     []SubmissionView    `json:"submissions"`
		Msg             string              `json:"msg,omitempty"`
	}
)

func (api *participantApi) participant(ctx echo.Context) (participant.Participant, error) {
	p, err := api.opts.ParticipantSvc.GetByToken(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return participant.Participant{}, errors.Wrap(err, "finding participant")
	}
	return p, nil
}

func (api *participantApi) landing(ctx echo.Context) error {
	p, err := api.participant(ctx)
	if err != nil {
		return err
	}
	tracks, err := api.opts.ExamSvc.VisibleTracks(ctx.Request().Context(), ctx.QueryParam("passcode"))
	if err != nil {
		return errors.Wrap(err, "listing visible tracks")
	}
	return ctx.JSON(http.StatusOK, LandingResponse{Nickname: p.Nickname, Tracks: tracks, Msg: ctx.QueryParam("msg")})
}

func (api *participantApi) examPage(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	p, err := api.participant(ctx)
	if err != nil {
		return err
	}

	trackID := core.CleanString(ctx.Param("track"), true /* lower */)
	track, ok := api.opts.Conf.Exam.Track(trackID)
	if !ok {
		return exam.ErrTrackNotFound
	}

	locale := ctx.QueryParam("lang")
	if locale == "" {
		locale = p.PreferredLang
	}
	if locale == "" {
		locale = exam.DefaultLocale
	}

	// the gate and paper come first: a closed exam must not start the clock
	paper, err := api.opts.ExamSvc.Paper(reqCtx, trackID, locale, ctx.QueryParam("passcode"))
	if err != nil {
		return errors.Wrap(err, "getting exam paper")
	}
	paperLangs, err := api.opts.ExamSvc.PaperLanguages(reqCtx, trackID)
	if err != nil {
		return errors.Wrap(err, "listing paper languages")
	}

	session, err := api.opts.ParticipantSvc.GetOrStart(reqCtx, p, trackID)
	if err != nil {
		return errors.Wrap(err, "starting session")
	}

	problems := core.ProblemRange{First: track.FirstProblem, Last: track.LastProblem}
	subs, err := api.opts.SubmissionSvc.Query(reqCtx, submission.QueryFilter{ParticipantID: p.ID, Problems: &problems})
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	views := make([]SubmissionView, 0, len(subs))
	for _, s := range subs {
		views = append(views, SubmissionView{ProblemID: s.ProblemID, Link: s.Link, Language: s.Language, Timestamp: s.Timestamp})
	}

	return ctx.JSON(http.StatusOK, ExamPageResponse{
		Nickname:        p.Nickname,
		Session:         session,
		Problems:        problems,
		Paper:           paper,
		PaperLanguages:  paperLangs,
		AnswerLanguages: api.opts.Conf.Exam.AnswerLanguages,
		Labels:          api.opts.Texts.Labels(locale),
		Submissions:     views,
		Msg:             ctx.QueryParam("msg"),
	})
}

// submit always redirects back to the exam page, with "success" or what was wrong with the input.
func (api *participantApi) submit(ctx echo.Context) error {
	p, err := api.participant(ctx)
	if err != nil {
		return err
	}
	passcode := ctx.FormValue("passcode")
	if err = api.opts.ExamSvc.Gate(passcode); err != nil {
		return err
	}

	var ns submission.NewSubmission
	if err = ctx.Bind(&ns); err != nil {
		return api.redirect(ctx, ns.Track, passcode, "invalid form data")
	}

	fh, err := ctx.FormFile("upload")
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening upload")
		}
		defer func() { _ = f.Close() }()
		ns.Upload = &submission.Upload{Filename: fh.Filename, Content: f}
	case err != http.ErrMissingFile:
		return errors.Wrap(err, "reading upload")
	}

	if _, err = api.opts.SubmissionSvc.Submit(ctx.Request().Context(), p.ID, ns); err != nil {
		if core.IsValidation(err) || isValidatorErr(err) {
			return api.redirect(ctx, ns.Track, passcode, userMessage(err, api.opts.Translator))
		}
		return errors.Wrap(err, "submitting")
	}
	return api.redirect(ctx, ns.Track, passcode, successMsg)
}

func (api *participantApi) redirect(ctx echo.Context, trackID, passcode, msg string) error {
	q := make(url.Values)
	q.Set("msg", msg)
	if passcode != "" {
		q.Set("passcode", passcode)
	}

	target := "/user/" + url.PathEscape(ctx.Param("token"))
	if trackID = core.CleanString(trackID, true /* lower */); trackID != "" {
		if _, ok := api.opts.Conf.Exam.Track(trackID); ok {
			target += "/exam/" + trackID
		}
	}
	return ctx.Redirect(http.StatusSeeOther, target+"?"+q.Encode())
}

func (api *participantApi) solution(ctx echo.Context) error {
	name := ctx.Param("name")
	f, err := api.opts.Files.Open(name)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			return echo.ErrNotFound
		}
		return errors.Wrap(err, "opening solution")
	}
	defer func() { _ = f.Close() }()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	return ctx.Stream(http.StatusOK, contentType, f)
}
