// Package echoapi serves the participant pages, the grading API and the admin API.
package echoapi

import (
	"context"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/exam"
	"github.com/trezcool/examhall/core/grader"
	"github.com/trezcool/examhall/core/grading"
	"github.com/trezcool/examhall/core/participant"
	"github.com/trezcool/examhall/core/submission"
	"github.com/trezcool/examhall/storage/files"
)

type (
	Options struct {
		Address        string
		DisableReqLogs bool
		SignalShutdown func()

		Conf       *core.Config
		Logger     core.Logger
		Translator ut.Translator
		Files      *files.Store
		Texts      *exam.Texts

		ParticipantSvc participant.Service
		SubmissionSvc  submission.Service
		GradingSvc     grading.Service
		ExamSvc        exam.Service
		GraderSvc      grader.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Translator, s.opts.SignalShutdown)
	s.app.Debug = conf.Debug
	s.app.HideBanner = true

	s.app.GET("/", home(conf))

	registerParticipantAPI(s.app.Group(""), s.opts)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerAuthAPI(v1, jwt, s.opts.GraderSvc, conf)
	registerGradingAPI(v1, jwt, s.opts)
	registerAdminAPI(v1, jwt, s.opts)
}

func (s *server) Start() {
	if err := s.app.Start(s.opts.Address); err != nil && err != http.ErrServerClosed {
		s.app.Logger.Fatal(err)
	}
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func home(conf *core.Config) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+conf.AppName+"!")
	}
}
