package submission

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core"
)

// outcomes, used as metric labels
const (
	outcomeCreated  = "created"
	outcomeUpdated  = "updated"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("submission not found")
	errLinkAndUpload     = core.NewValidationError(nil, core.FieldError{Field: "link", Error: "send either a link or a file, not both"})
	errNoAnswer          = core.NewValidationError(nil, core.FieldError{Field: "link", Error: "a link or a file is required"})
	errProblemNotInTrack = core.NewValidationError(nil, core.FieldError{Field: "problem_id", Error: "problem is not part of this exam"})
)

type (
	Repository interface {
		GetSubmission(ctx context.Context, participantID, problemID int, exec ...core.DBExecutor) (Submission, error)
		GetSubmissionByID(ctx context.Context, id int, exec ...core.DBExecutor) (Submission, error)
		// UpsertSubmission inserts sub or, if the participant already answered the problem,
		// replaces the link, language and timestamp of the existing row.
		UpsertSubmission(ctx context.Context, sub Submission, exec ...core.DBExecutor) (Submission, error)
		QuerySubmissions(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Submission, error)
	}

	// FileStore keeps uploaded solutions under opaque names.
	FileStore interface {
		// Stage writes content under a temporary name that is not served.
		Stage(ctx context.Context, content io.Reader) (string, error)
		// Publish moves a staged file to name, overwriting any file already there.
		Publish(tmpName, name string) error
		Remove(name string) error
		URL(name string) string
		// NameOf returns the file name behind link when the link is served by this store.
		NameOf(link string) (string, bool)
	}

	Service interface {
		Submit(ctx context.Context, participantID int, ns NewSubmission) (Submission, error)
		GetByID(ctx context.Context, id int) (Submission, error)
		Query(ctx context.Context, filter QueryFilter) ([]Submission, error)
	}

	service struct {
		tx       core.TxRunner
		repo     Repository
		files    FileStore
		validate *validator.Validate
		metrics  core.Metrics
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.TxRunner,
	repo Repository,
	files FileStore,
	validate *validator.Validate,
	metrics core.Metrics,
	conf *core.Config,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(files, "files"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(metrics, "metrics"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		tx:       tx,
		repo:     repo,
		files:    files,
		validate: validate,
		metrics:  metrics,
		conf:     conf,
	}
}

// Submit records the participant's answer to a problem.
// An uploaded file is staged first. A new file name is published inside the transaction;
// a reused one is only overwritten once the transaction has committed.
// A resubmitted upload of the same type keeps the file name (and link) of the previous one,
// and a file no longer referenced by the submission is removed.
// The exam deadline is not enforced here.
func (svc *service) Submit(ctx context.Context, participantID int, ns NewSubmission) (Submission, error) {
	kind := ns.Kind()
	if err := ns.Validate(svc.validate, svc.conf); err != nil {
		svc.metrics.IncSubmissions(kind, outcomeRejected)
		return Submission{}, err
	}

	var tmpName string
	if ns.Upload != nil {
		var err error
		if tmpName, err = svc.files.Stage(ctx, ns.Upload.Content); err != nil {
			svc.metrics.IncSubmissions(kind, outcomeFailed)
			return Submission{}, errors.Wrap(err, "staging upload")
		}
	}
	defer func() {
		if tmpName != "" {
			_ = svc.files.Remove(tmpName)
		}
	}()

	var (
		sub       Submission
		outcome   = outcomeCreated
		fileName  string
		reused    bool
		stale     string // previous file the submission no longer points to
		published string // new file name published inside the transaction
	)
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		existing, err := svc.repo.GetSubmission(ctx, participantID, ns.ProblemID, exec)
		switch {
		case err == nil:
			outcome = outcomeUpdated
		case core.IsNotFound(err):
			existing = Submission{}
		default:
			return errors.Wrap(err, "getting submission")
		}

		link := ns.Link
		if ns.Upload != nil {
			fileName, reused = svc.fileName(existing, ns.Upload)
			link = svc.files.URL(fileName)
		}
		if existing.ID != 0 && !reused {
			stale, _ = svc.files.NameOf(existing.Link)
		}

		sub, err = svc.repo.UpsertSubmission(ctx, Submission{
			ParticipantID: participantID,
			ProblemID:     ns.ProblemID,
			Link:          link,
			Language:      ns.Language,
			Timestamp:     core.NowFunc(),
		}, exec)
		if err != nil {
			return errors.Wrap(err, "upserting submission")
		}

		if ns.Upload != nil && !reused {
			if err = svc.files.Publish(tmpName, fileName); err != nil {
				return errors.Wrap(err, "publishing upload")
			}
			tmpName, published = "", fileName
		}
		return nil
	})
	if err != nil {
		if published != "" {
			_ = svc.files.Remove(published)
		}
		svc.metrics.IncSubmissions(kind, outcomeFailed)
		return Submission{}, err
	}

	if reused {
		if err = svc.files.Publish(tmpName, fileName); err != nil {
			svc.metrics.IncSubmissions(kind, outcomeFailed)
			return Submission{}, errors.Wrap(err, "publishing upload")
		}
		tmpName = ""
	}
	if stale != "" {
		_ = svc.files.Remove(stale)
	}
	svc.metrics.IncSubmissions(kind, outcome)
	return sub, nil
}

// fileName reuses the name behind the existing link when the file type is unchanged,
// so links handed to graders keep working.
func (svc *service) fileName(existing Submission, upload *Upload) (name string, reused bool) {
	if existing.ID != 0 {
		if name, ok := svc.files.NameOf(existing.Link); ok && strings.EqualFold(path.Ext(name), upload.Ext()) {
			return name, true
		}
	}
	return uuid.New().String() + upload.Ext(), false
}

func (svc *service) GetByID(ctx context.Context, id int) (Submission, error) {
	return svc.repo.GetSubmissionByID(ctx, id)
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, filter)
}
