package testutil

import (
	"context"
	"database/sql"
	"io"
	"net/mail"
	"os"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/exam"
	"github.com/trezcool/examhall/core/grader"
	"github.com/trezcool/examhall/core/grading"
	"github.com/trezcool/examhall/core/participant"
	"github.com/trezcool/examhall/core/submission"
	emailsvc "github.com/trezcool/examhall/services/email"
	logsvc "github.com/trezcool/examhall/services/logger"
	metricsvc "github.com/trezcool/examhall/services/metrics"
	"github.com/trezcool/examhall/storage/database"
	inmemdb "github.com/trezcool/examhall/storage/database/inmem"
	"github.com/trezcool/examhall/storage/files"
)

// NewConfig returns the configuration used by tests; it does not read the environment.
func NewConfig() *core.Config {
	return &core.Config{
		Env:              "TEST",
		Build:            "test",
		Debug:            false,
		TestMode:         true,
		AppName:          "Olympiad",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://exam.test",
		DefaultFromEmail: mail.Address{Address: "noreply@exam.test"},
		Server: core.ServerConfig{
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
		},
		Storage: core.StorageConfig{
			Dir:       "/solutions",
			StaticURL: "http://exam.test/static/solutions",
		},
		Exam: core.ExamConfig{
			Tracks: []core.Track{
				{ID: core.TrackDay1, Duration: 4 * time.Hour, FirstProblem: 1, LastProblem: 99},
				{ID: core.TrackDay2, Duration: 5 * time.Hour, FirstProblem: 100, LastProblem: 199},
			},
			AlwaysReviewLanguages: []string{"estonian"},
			MaxScore:              7,
			DisagreementThreshold: 2,
			AnswerLanguages:       []string{"english", "estonian", "french", "russian"},
			PaperLanguages:        []string{"english", "estonian", "french", "russian"},
		},
	}
}

// NewValidator returns a validator with every custom validation registered.
func NewValidator(conf *core.Config) (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator, conf)
	grader.RegisterValidators(validate, translator)
	return validate, translator
}

// FreezeTime sets core.NowFunc to return now until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	orig := core.NowFunc
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = orig })
}

func CreateParticipant(t *testing.T, repo participant.Repository, nickname, token string) participant.Participant {
	created, err := repo.CreateParticipants(context.Background(), []participant.Participant{{
		AccessToken: token,
		Nickname:    nickname,
		CreatedAt:   time.Now().UTC(),
	}})
	if err != nil {
		t.Fatalf("CreateParticipant() failed: %v", err)
	}
	return created[0]
}

func CreateSubmission(t *testing.T, repo submission.Repository, participantID, problemID int, language string) submission.Submission {
	sub, err := repo.UpsertSubmission(context.Background(), submission.Submission{
		ParticipantID: participantID,
		ProblemID:     problemID,
		Link:          "http://solutions.test/p" + language,
		Language:      language,
		Timestamp:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

func CreateScores(t *testing.T, repo grading.Repository, submissionID int, scores ...grading.Score) {
	for _, s := range scores {
		s.SubmissionID = submissionID
		if s.Timestamp.IsZero() {
			s.Timestamp = time.Now().UTC()
		}
		if _, err := repo.CreateScore(context.Background(), s); err != nil {
			t.Fatalf("CreateScores() failed: %v", err)
		}
	}
}

func CreateGrader(
	t *testing.T,
	repo grader.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
) grader.Grader {
	now := time.Now().UTC()
	g := grader.Grader{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if pwd != "" {
		if err := g.SetPassword(pwd); err != nil {
			t.Fatalf("CreateGrader() failed: %v", err)
		}
	}
	g, err := repo.CreateGrader(context.Background(), g)
	if err != nil {
		t.Fatalf("CreateGrader() failed: %v", err)
	}
	return g
}

// NewLogger returns a logger that writes nowhere and never reports.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger("TEST", io.Discard, conf)
	logger.Enable(false)
	return logger
}

// App bundles in-memory repositories and the services built on them.
type App struct {
	Conf       *core.Config
	DB         *inmemdb.DB
	Validate   *validator.Validate
	Translator ut.Translator
	Logger     core.Logger
	Mail       *emailsvc.ConsoleServiceMock
	Files      *files.Store
	Texts      *exam.Texts
	Metrics    *metricsvc.Metrics
	Registry   *prometheus.Registry

	ParticipantRepo participant.Repository
	SubmissionRepo  submission.Repository
	GradingRepo     grading.Repository
	PaperRepo       exam.Repository
	GraderRepo      grader.Repository

	ParticipantSvc participant.Service
	SubmissionSvc  submission.Service
	GradingSvc     grading.Service
	ExamSvc        exam.Service
	GraderSvc      grader.Service
}

// NewApp wires every service on a fresh in-memory database and file store.
// conf defaults to NewConfig().
func NewApp(t *testing.T, conf ...*core.Config) *App {
	t.Helper()

	c := NewConfig()
	if len(conf) > 0 && conf[0] != nil {
		c = conf[0]
	}
	validate, translator := NewValidator(c)
	logger := NewLogger(c)
	core.ParseEmailTemplates(logger)

	texts, err := exam.LoadTexts("")
	if err != nil {
		t.Fatalf("LoadTexts() failed: %v", err)
	}

	db := inmemdb.Open()
	tx := inmemdb.NewTxRunner(db)
	reg := prometheus.NewRegistry()

	app := &App{
		Conf:       c,
		DB:         db,
		Validate:   validate,
		Translator: translator,
		Logger:     logger,
		Mail:       emailsvc.NewConsoleServiceMock(c, logger),
		Files:      files.NewMemStore(c.Storage),
		Texts:      texts,
		Metrics:    metricsvc.New(reg),
		Registry:   reg,

		ParticipantRepo: inmemdb.NewParticipantRepository(db),
		SubmissionRepo:  inmemdb.NewSubmissionRepository(db),
		GradingRepo:     inmemdb.NewGradingRepository(db),
		PaperRepo:       inmemdb.NewPaperRepository(db),
		GraderRepo:      inmemdb.NewGraderRepository(db),
	}
	app.ParticipantSvc = participant.NewService(tx, app.ParticipantRepo, app.Mail, validate, app.Metrics, c)
	app.SubmissionSvc = submission.NewService(tx, app.SubmissionRepo, app.Files, validate, app.Metrics, c)
	app.GradingSvc = grading.NewService(tx, app.GradingRepo, validate, app.Metrics, c)
	app.ExamSvc = exam.NewService(app.PaperRepo, validate, c)
	app.GraderSvc = grader.NewService(tx, app.GraderRepo, validate)
	return app
}

func CreatePaper(t *testing.T, repo exam.Repository, trackID, language string, active bool) exam.ExamPaper {
	paper, err := repo.UpsertPaper(context.Background(), exam.ExamPaper{
		TestName: trackID,
		Language: language,
		Link:     "http://papers.test/" + trackID + "/" + language + ".pdf",
		IsActive: active,
	})
	if err != nil {
		t.Fatalf("CreatePaper() failed: %v", err)
	}
	return paper
}

// PrepareDB opens the "<name>_test" PostgreSQL database, migrates it and empties it after the test.
// Tests using it are skipped unless TEST_DATABASE is set.
func PrepareDB(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("TEST_DATABASE") == "" {
		t.Skip("TEST_DATABASE not set")
	}

	conf := core.NewConfig()
	conf.Database.Name += "_test"
	if err := database.CreateIfNotExist(conf); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}

	t.Cleanup(func() {
		_, err := db.Exec(`TRUNCATE participants, submissions, scores, resolved_scores, exam_papers, graders
			RESTART IDENTITY CASCADE`)
		if err != nil {
			t.Errorf("PrepareDB() cleanup failed: %v", err)
		}
		_ = db.Close()
	})
	return db
}
