package grading

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/submission"
)

var (
	// errors
	ErrNotFound      = core.NewNotFoundError("submission not found")
	ErrNoCandidate   = core.NewNotFoundError("no submission left to grade")
	ErrAlreadyScored = core.NewValidationError(nil, core.FieldError{Field: "score", Error: "already scored by this grader"})
	errUnknownTrack  = core.NewValidationError(nil, core.FieldError{Field: "track", Error: "unknown exam track"})
)

type (
	Repository interface {
		// QueryCandidates returns the submissions for the language and problem, ordered by id,
		// with their score count and graders.
		QueryCandidates(ctx context.Context, language string, problemID int, exec ...core.DBExecutor) ([]Candidate, error)
		// CreateScore returns ErrAlreadyScored when the grader already scored the submission.
		CreateScore(ctx context.Context, score Score, exec ...core.DBExecutor) (Score, error)
		// QueryGroups returns the submissions of the problem range that have at least one score.
		QueryGroups(ctx context.Context, problems core.ProblemRange, exec ...core.DBExecutor) ([]SubmissionGroup, error)
		GetGroup(ctx context.Context, submissionID int, exec ...core.DBExecutor) (SubmissionGroup, error)
		// UpsertResolvedScore creates the resolved score of a submission or overwrites it.
		UpsertResolvedScore(ctx context.Context, rs ResolvedScore, exec ...core.DBExecutor) (ResolvedScore, error)
		QueryResolvedScores(ctx context.Context, problems *core.ProblemRange, exec ...core.DBExecutor) ([]ResolvedScore, error)
	}

	Service interface {
		NextForGrading(ctx context.Context, language string, problemID int, grader string) (submission.Submission, error)
		RecordScore(ctx context.Context, submissionID int, grader string, ns NewScore) (Score, error)
		Group(ctx context.Context, submissionID int) (SubmissionGroup, error)
		SubmissionsNeedingReview(ctx context.Context, trackID string) ([]SubmissionGroup, error)
		Resolve(ctx context.Context, submissionID int, grader string, nr NewResolution) (ResolvedScore, error)
		Resolutions(ctx context.Context, trackID string) ([]ResolvedScore, error)
	}

	service struct {
		tx       core.TxRunner
		repo     Repository
		policy   Policy
		validate *validator.Validate
		metrics  core.Metrics
		conf     *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(
	tx core.TxRunner,
	repo Repository,
	validate *validator.Validate,
	metrics core.Metrics,
	conf *core.Config,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(validate, "validate"),
		vala.IsNotNil(metrics, "metrics"),
		vala.IsNotNil(conf, "conf"),
	).CheckAndPanic()

	return &service{
		tx:       tx,
		repo:     repo,
		policy:   NewPolicy(conf.Exam),
		validate: validate,
		metrics:  metrics,
		conf:     conf,
	}
}

// NextForGrading returns the first submission with at most one score that the grader has not scored yet.
func (svc *service) NextForGrading(ctx context.Context, language string, problemID int, grader string) (submission.Submission, error) {
	candidates, err := svc.repo.QueryCandidates(ctx, core.CleanString(language, true /* lower */), problemID)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "querying candidates")
	}
	for _, c := range candidates {
		if c.ScoreCount <= 1 && !c.ScoredBy(grader) {
			return c.Submission, nil
		}
	}
	return submission.Submission{}, ErrNoCandidate
}

// RecordScore stores the grader's score. A grader scores a submission at most once.
func (svc *service) RecordScore(ctx context.Context, submissionID int, grader string, ns NewScore) (Score, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Score{}, err
	}

	var score Score
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		group, err := svc.repo.GetGroup(ctx, submissionID, exec)
		if err != nil {
			return err
		}
		for _, s := range group.Scores {
			if s.Grader == grader {
				return ErrAlreadyScored
			}
		}
		score, err = svc.repo.CreateScore(ctx, Score{
			SubmissionID: submissionID,
			Grader:       grader,
			Score:        ns.Score,
			Comment:      ns.Comment,
			Timestamp:    core.NowFunc(),
		}, exec)
		return errors.Wrap(err, "creating score")
	})
	if err != nil {
		return Score{}, err
	}
	svc.metrics.IncScores()
	return score, nil
}

func (svc *service) Group(ctx context.Context, submissionID int) (SubmissionGroup, error) {
	return svc.repo.GetGroup(ctx, submissionID)
}

// SubmissionsNeedingReview returns the scored submissions of the track that need review,
// largest disagreement first.
func (svc *service) SubmissionsNeedingReview(ctx context.Context, trackID string) ([]SubmissionGroup, error) {
	track, ok := svc.conf.Exam.Track(trackID)
	if !ok {
		return nil, errUnknownTrack
	}
	groups, err := svc.repo.QueryGroups(ctx, track.Problems())
	if err != nil {
		return nil, errors.Wrap(err, "querying groups")
	}
	return svc.policy.Filter(groups), nil
}

// Resolve stores the final score of a submission, replacing any previous resolution.
func (svc *service) Resolve(ctx context.Context, submissionID int, grader string, nr NewResolution) (ResolvedScore, error) {
	if err := nr.Validate(svc.validate); err != nil {
		return ResolvedScore{}, err
	}

	var rs ResolvedScore
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := svc.repo.GetGroup(ctx, submissionID, exec); err != nil {
			return err
		}
		var err error
		rs, err = svc.repo.UpsertResolvedScore(ctx, ResolvedScore{
			SubmissionID: submissionID,
			Score:        nr.Score,
			Comment:      nr.Comment,
			Grader:       grader,
			Timestamp:    core.NowFunc(),
		}, exec)
		return errors.Wrap(err, "upserting resolved score")
	})
	if err != nil {
		return ResolvedScore{}, err
	}
	svc.metrics.IncResolutions()
	return rs, nil
}

// Resolutions returns the resolved scores of the track, or of every track when trackID is empty.
func (svc *service) Resolutions(ctx context.Context, trackID string) ([]ResolvedScore, error) {
	var problems *core.ProblemRange
	if trackID != "" {
		track, ok := svc.conf.Exam.Track(trackID)
		if !ok {
			return nil, errUnknownTrack
		}
		pr := track.Problems()
		problems = &pr
	}
	return svc.repo.QueryResolvedScores(ctx, problems)
}
