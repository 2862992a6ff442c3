// Package container builds the application dependencies shared by the API server and the admin CLI.
package container

import (
	"database/sql"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/exam"
	"github.com/trezcool/examhall/core/grader"
	"github.com/trezcool/examhall/core/grading"
	"github.com/trezcool/examhall/core/participant"
	"github.com/trezcool/examhall/core/submission"
	emailsvc "github.com/trezcool/examhall/services/email"
	metricsvc "github.com/trezcool/examhall/services/metrics"
	"github.com/trezcool/examhall/storage/database"
	boiledrepos "github.com/trezcool/examhall/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/examhall/storage/database/sqlx"
	"github.com/trezcool/examhall/storage/files"
)

type Container struct {
	Conf       *core.Config
	DB         *sql.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Metrics    *metricsvc.Metrics
	Files      *files.Store
	Texts      *exam.Texts

	ParticipantSvc participant.Service
	SubmissionSvc  submission.Service
	GradingSvc     grading.Service
	ExamSvc        exam.Service
	GraderSvc      grader.Service
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// SetUpDB creates the app database if needed, opens it and applies the migrations.
func SetUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New wires every service on top of db. reg receives the app metrics.
func New(conf *core.Config, db *sql.DB, logger core.Logger, reg prometheus.Registerer) (*Container, error) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator, conf)
	grader.RegisterValidators(validate, translator)

	core.ParseEmailTemplates(logger)

	texts, err := exam.LoadTexts(conf.Exam.LocaleTextsFile)
	if err != nil {
		return nil, errors.Wrap(err, "loading locale texts")
	}
	store, err := files.NewOSStore(conf.Storage)
	if err != nil {
		return nil, errors.Wrap(err, "opening solutions store")
	}

	metrics := metricsvc.New(reg)
	tx := core.NewTxRunner(db)
	mailSvc := newEmailService(conf, logger)

	return &Container{
		Conf:       conf,
		DB:         db,
		Validate:   validate,
		Translator: translator,
		Metrics:    metrics,
		Files:      store,
		Texts:      texts,

		ParticipantSvc: participant.NewService(tx, boiledrepos.NewParticipantRepository(db), mailSvc, validate, metrics, conf),
		SubmissionSvc:  submission.NewService(tx, boiledrepos.NewSubmissionRepository(db), store, validate, metrics, conf),
		GradingSvc:     grading.NewService(tx, sqlxrepos.NewGradingRepository(db), validate, metrics, conf),
		ExamSvc:        exam.NewService(boiledrepos.NewPaperRepository(db), validate, conf),
		GraderSvc:      grader.NewService(tx, boiledrepos.NewGraderRepository(db), validate),
	}, nil
}
