package boiledrepos

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/participant"
	"github.com/trezcool/examhall/core/submission"
)

const submissionColumns = `id, participant_id, problem_id, link, language, "timestamp"`

type submissionRow struct {
	ID            int       `boil:"id"`
	ParticipantID int       `boil:"participant_id"`
	ProblemID     int       `boil:"problem_id"`
	Link          string    `boil:"link"`
	Language      string    `boil:"language"`
	Timestamp     time.Time `boil:"timestamp"`
}

func (r submissionRow) unboil() submission.Submission {
	return submission.Submission{
		ID:            r.ID,
		ParticipantID: r.ParticipantID,
		ProblemID:     r.ProblemID,
		Link:          r.Link,
		Language:      r.Language,
		Timestamp:     r.Timestamp.UTC(),
	}
}

type submissionRepository struct {
	repository
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec core.DBExecutor) submission.Repository {
	return &submissionRepository{repository{exec: exec}}
}

func (repo submissionRepository) get(ctx context.Context, where string, args []interface{}, exec []core.DBExecutor) (submission.Submission, error) {
	var row submissionRow
	err := queries.Raw("SELECT "+submissionColumns+" FROM submissions WHERE "+where, args...).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return submission.Submission{}, trapNoRowsErr(err, submission.ErrNotFound, "finding submission")
	}
	return row.unboil(), nil
}

func (repo submissionRepository) GetSubmission(ctx context.Context, participantID, problemID int, exec ...core.DBExecutor) (submission.Submission, error) {
	return repo.get(ctx, "participant_id = $1 AND problem_id = $2", []interface{}{participantID, problemID}, exec)
}

func (repo submissionRepository) GetSubmissionByID(ctx context.Context, id int, exec ...core.DBExecutor) (submission.Submission, error) {
	return repo.get(ctx, "id = $1", []interface{}{id}, exec)
}

func (repo submissionRepository) UpsertSubmission(ctx context.Context, sub submission.Submission, exec ...core.DBExecutor) (submission.Submission, error) {
	q := `INSERT INTO submissions (participant_id, problem_id, link, language, "timestamp")
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (participant_id, problem_id) DO UPDATE
		SET link = EXCLUDED.link, language = EXCLUDED.language, "timestamp" = EXCLUDED."timestamp"
		RETURNING ` + submissionColumns

	var row submissionRow
	err := queries.Raw(q, sub.ParticipantID, sub.ProblemID, sub.Link, sub.Language, sub.Timestamp.UTC()).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		if isPQError(err, foreignKeyViolation) {
			return submission.Submission{}, participant.ErrNotFound
		}
		return submission.Submission{}, errors.Wrap(err, "upserting submission")
	}
	return row.unboil(), nil
}

func (repo submissionRepository) QuerySubmissions(ctx context.Context, filter submission.QueryFilter, exec ...core.DBExecutor) ([]submission.Submission, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.ParticipantID != 0 {
		args = append(args, filter.ParticipantID)
		conds = append(conds, fmt.Sprintf("participant_id = $%d", len(args)))
	}
	if filter.Problems != nil {
		args = append(args, filter.Problems.First, filter.Problems.Last)
		conds = append(conds, fmt.Sprintf("problem_id BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}
	q := "SELECT " + submissionColumns + " FROM submissions"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY problem_id, id"

	var rows []submissionRow
	if err := queries.Raw(q, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	subs := make([]submission.Submission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.unboil())
	}
	return subs, nil
}
