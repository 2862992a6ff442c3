package exam

import (
	"context"
	"crypto/subtle"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("exam paper not found")
	ErrTrackNotFound = core.NewNotFoundError("exam not found")
)

type (
	Repository interface {
		// UpsertPaper creates the paper of (test name, language) or replaces its link and active flag.
		UpsertPaper(ctx context.Context, paper ExamPaper, exec ...core.DBExecutor) (ExamPaper, error)
		SetPapersActive(ctx context.Context, testName string, active bool, exec ...core.DBExecutor) (int, error)
		QueryPapers(ctx context.Context, filter PaperFilter, exec ...core.DBExecutor) ([]ExamPaper, error)
	}

	Service interface {
		// Gate returns core.ErrExamNotStarted while the rehearsal gate is closed for the passcode.
		Gate(passcode string) error
		VisibleTracks(ctx context.Context, passcode string) ([]string, error)
		// Paper returns the active paper of the track in the locale, falling back to english.
		Paper(ctx context.Context, trackID, locale, passcode string) (ExamPaper, error)
		PaperLanguages(ctx context.Context, trackID string) ([]string, error)
		UpsertPaper(ctx context.Context, np NewExamPaper) (ExamPaper, error)
		SetActive(ctx context.Context, ap ActivatePapers) (int, error)
		QueryPapers(ctx context.Context, filter PaperFilter) ([]ExamPaper, error)
	}

	service struct {
		repo     Repository
		validate *validator.Validate
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, validate *validator.Validate, conf *core.Config) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{repo: repo, validate: validate, conf: conf}
}

// Gate is global: before the rehearsal cutoff every request needs the shared passcode.
func (svc *service) Gate(passcode string) error {
	cutoff := svc.conf.Exam.RehearsalCutoff
	if cutoff.IsZero() || !core.NowFunc().Before(cutoff) {
		return nil
	}
	want := svc.conf.Exam.RehearsalPasscode
	if want == "" || passcode == "" || subtle.ConstantTimeCompare([]byte(passcode), []byte(want)) != 1 {
		return core.ErrExamNotStarted
	}
	return nil
}

// VisibleTracks returns the tracks with at least one active paper, in configuration order.
func (svc *service) VisibleTracks(ctx context.Context, passcode string) ([]string, error) {
	if err := svc.Gate(passcode); err != nil {
		return nil, err
	}
	papers, err := svc.repo.QueryPapers(ctx, PaperFilter{ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying active papers")
	}

	active := make(map[string]bool, len(papers))
	for _, p := range papers {
		active[p.TestName] = true
	}
	tracks := make([]string, 0, len(active))
	for _, id := range svc.conf.Exam.TrackIDs() {
		if active[id] {
			tracks = append(tracks, id)
		}
	}
	return tracks, nil
}

func (svc *service) Paper(ctx context.Context, trackID, locale, passcode string) (ExamPaper, error) {
	if err := svc.Gate(passcode); err != nil {
		return ExamPaper{}, err
	}
	papers, err := svc.repo.QueryPapers(ctx, PaperFilter{TestName: trackID, ActiveOnly: true})
	if err != nil {
		return ExamPaper{}, errors.Wrap(err, "querying papers")
	}
	if len(papers) == 0 {
		return ExamPaper{}, ErrTrackNotFound
	}

	locale = core.CleanString(locale, true /* lower */)
	var fallback *ExamPaper
	for i := range papers {
		switch papers[i].Language {
		case locale:
			return papers[i], nil
		case DefaultLocale:
			fallback = &papers[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return ExamPaper{}, ErrNotFound
}

func (svc *service) PaperLanguages(ctx context.Context, trackID string) ([]string, error) {
	papers, err := svc.repo.QueryPapers(ctx, PaperFilter{TestName: trackID, ActiveOnly: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying papers")
	}
	langs := make([]string, 0, len(papers))
	for _, p := range papers {
		langs = append(langs, p.Language)
	}
	sort.Strings(langs)
	return langs, nil
}

func (svc *service) UpsertPaper(ctx context.Context, np NewExamPaper) (ExamPaper, error) {
	if err := np.Validate(svc.validate); err != nil {
		return ExamPaper{}, err
	}
	paper, err := svc.repo.UpsertPaper(ctx, ExamPaper{
		TestName: np.TestName,
		Language: np.Language,
		Link:     np.Link,
		IsActive: np.IsActive,
	})
	return paper, errors.Wrap(err, "upserting paper")
}

func (svc *service) SetActive(ctx context.Context, ap ActivatePapers) (int, error) {
	if err := ap.Validate(svc.validate); err != nil {
		return 0, err
	}
	n, err := svc.repo.SetPapersActive(ctx, ap.TestName, ap.IsActive)
	return n, errors.Wrap(err, "activating papers")
}

func (svc *service) QueryPapers(ctx context.Context, filter PaperFilter) ([]ExamPaper, error) {
	return svc.repo.QueryPapers(ctx, filter)
}
