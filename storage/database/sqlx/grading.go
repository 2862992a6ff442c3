// Package sqlxrepos implements the grading repository on PostgreSQL with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/reflectx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/grading"
	"github.com/trezcool/examhall/core/submission"
)

const (
	foreignKeyViolation = "23503"
	uniqueViolation     = "23505"
)

var mapper = reflectx.NewMapperFunc("db", strings.ToLower)

type submissionRow struct {
	ID            int       `db:"id"`
	ParticipantID int       `db:"participant_id"`
	ProblemID     int       `db:"problem_id"`
	Link          string    `db:"link"`
	Language      string    `db:"language"`
	Timestamp     time.Time `db:"timestamp"`
}

func (r submissionRow) submission() submission.Submission {
	return submission.Submission{
		ID:            r.ID,
		ParticipantID: r.ParticipantID,
		ProblemID:     r.ProblemID,
		Link:          r.Link,
		Language:      r.Language,
		Timestamp:     r.Timestamp.UTC(),
	}
}

type candidateRow struct {
	submissionRow
	ScoreCount int            `db:"score_count"`
	Graders    pq.StringArray `db:"graders"`
}

type scoreRow struct {
	ID           int       `db:"id"`
	SubmissionID int       `db:"submission_id"`
	Grader       string    `db:"grader"`
	Score        int       `db:"score"`
	Comment      string    `db:"comment"`
	Timestamp    time.Time `db:"timestamp"`
}

func (r scoreRow) score() grading.Score {
	return grading.Score{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		Grader:       r.Grader,
		Score:        r.Score,
		Comment:      r.Comment,
		Timestamp:    r.Timestamp.UTC(),
	}
}

type resolvedRow struct {
	SubmissionID int       `db:"submission_id"`
	Score        int       `db:"score"`
	Comment      string    `db:"comment"`
	Grader       string    `db:"grader"`
	Timestamp    time.Time `db:"timestamp"`
}

func (r resolvedRow) resolved() grading.ResolvedScore {
	return grading.ResolvedScore{
		SubmissionID: r.SubmissionID,
		Score:        r.Score,
		Comment:      r.Comment,
		Grader:       r.Grader,
		Timestamp:    r.Timestamp.UTC(),
	}
}

const (
	submissionColumns = `s.id, s.participant_id, s.problem_id, s.link, s.language, s."timestamp"`
	scoreColumns      = `id, submission_id, grader, score, comment, "timestamp"`
	resolvedColumns   = `submission_id, score, comment, grader, "timestamp"`
)

type gradingRepository struct {
	exec core.DBExecutor
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(exec core.DBExecutor) grading.Repository {
	return &gradingRepository{exec: exec}
}

func (repo gradingRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

// selectAll scans every row into dest, a pointer to a slice of structs.
func selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	return sqlx.StructScan(&sqlx.Rows{Rows: rows, Mapper: mapper}, dest)
}

// get scans the first row into dest, or returns sql.ErrNoRows.
func get(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	r := &sqlx.Rows{Rows: rows, Mapper: mapper}
	defer r.Close()

	if !r.Next() {
		if err = r.Err(); err != nil {
			return err
		}
		return sql.ErrNoRows
	}
	if err = r.StructScan(dest); err != nil {
		return err
	}
	return r.Close()
}

// in expands slice args of a "?" query and rebinds it to postgres placeholders.
func in(query string, args ...interface{}) (string, []interface{}, error) {
	q, args, err := sqlx.In(query, args...)
	if err != nil {
		return "", nil, err
	}
	return sqlx.Rebind(sqlx.DOLLAR, q), args, nil
}

func trapErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return grading.ErrNotFound
	}
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		switch pqErr.Code {
		case foreignKeyViolation:
			return grading.ErrNotFound
		case uniqueViolation:
			return grading.ErrAlreadyScored
		}
	}
	return errors.Wrap(err, msg)
}

func (repo gradingRepository) QueryCandidates(ctx context.Context, language string, problemID int, exec ...core.DBExecutor) ([]grading.Candidate, error) {
	q := `SELECT ` + submissionColumns + `,
			COUNT(sc.id) AS score_count,
			COALESCE(array_agg(sc.grader) FILTER (WHERE sc.id IS NOT NULL), '{}') AS graders
		FROM submissions s
		LEFT JOIN scores sc ON sc.submission_id = s.id
		WHERE lower(s.language) = lower($1) AND s.problem_id = $2
		GROUP BY s.id
		ORDER BY s.id`

	var rows []candidateRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, language, problemID); err != nil {
		return nil, errors.Wrap(err, "querying candidates")
	}
	candidates := make([]grading.Candidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, grading.Candidate{
			Submission: r.submission(),
			ScoreCount: r.ScoreCount,
			Graders:    []string(r.Graders),
		})
	}
	return candidates, nil
}

func (repo gradingRepository) CreateScore(ctx context.Context, score grading.Score, exec ...core.DBExecutor) (grading.Score, error) {
	q := `INSERT INTO scores (submission_id, grader, score, comment, "timestamp")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + scoreColumns

	var row scoreRow
	err := get(ctx, repo.getExec(exec), &row, q,
		score.SubmissionID, score.Grader, score.Score, score.Comment, score.Timestamp.UTC())
	if err != nil {
		return grading.Score{}, trapErr(err, "inserting score")
	}
	return row.score(), nil
}

// groups attaches the scores and resolved scores of the given submissions.
func (repo gradingRepository) groups(ctx context.Context, exec core.DBExecutor, subs []submissionRow) ([]grading.SubmissionGroup, error) {
	groups := make([]grading.SubmissionGroup, 0, len(subs))
	if len(subs) == 0 {
		return groups, nil
	}

	ids := make([]int, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.ID)
	}

	q, args, err := in(`SELECT `+scoreColumns+` FROM scores WHERE submission_id IN (?) ORDER BY id`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building scores query")
	}
	var scores []scoreRow
	if err = selectAll(ctx, exec, &scores, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying scores")
	}

	q, args, err = in(`SELECT `+resolvedColumns+` FROM resolved_scores WHERE submission_id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "building resolved scores query")
	}
	var resolved []resolvedRow
	if err = selectAll(ctx, exec, &resolved, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying resolved scores")
	}

	bySub := make(map[int][]grading.Score, len(subs))
	for _, s := range scores {
		bySub[s.SubmissionID] = append(bySub[s.SubmissionID], s.score())
	}
	resolvedBySub := make(map[int]grading.ResolvedScore, len(resolved))
	for _, r := range resolved {
		resolvedBySub[r.SubmissionID] = r.resolved()
	}

	for _, s := range subs {
		g := grading.SubmissionGroup{Submission: s.submission(), Scores: bySub[s.ID]}
		if g.Scores == nil {
			g.Scores = []grading.Score{}
		}
		if rs, ok := resolvedBySub[s.ID]; ok {
			g.Resolved = &rs
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (repo gradingRepository) QueryGroups(ctx context.Context, problems core.ProblemRange, exec ...core.DBExecutor) ([]grading.SubmissionGroup, error) {
	ex := repo.getExec(exec)
	q := `SELECT ` + submissionColumns + `
		FROM submissions s
		WHERE s.problem_id BETWEEN $1 AND $2
			AND EXISTS (SELECT 1 FROM scores sc WHERE sc.submission_id = s.id)
		ORDER BY s.id`

	var subs []submissionRow
	if err := selectAll(ctx, ex, &subs, q, problems.First, problems.Last); err != nil {
		return nil, errors.Wrap(err, "querying scored submissions")
	}
	return repo.groups(ctx, ex, subs)
}

func (repo gradingRepository) GetGroup(ctx context.Context, submissionID int, exec ...core.DBExecutor) (grading.SubmissionGroup, error) {
	ex := repo.getExec(exec)

	var sub submissionRow
	if err := get(ctx, ex, &sub, `SELECT `+submissionColumns+` FROM submissions s WHERE s.id = $1`, submissionID); err != nil {
		return grading.SubmissionGroup{}, trapErr(err, "finding submission")
	}
	groups, err := repo.groups(ctx, ex, []submissionRow{sub})
	if err != nil {
		return grading.SubmissionGroup{}, err
	}
	return groups[0], nil
}

func (repo gradingRepository) UpsertResolvedScore(ctx context.Context, rs grading.ResolvedScore, exec ...core.DBExecutor) (grading.ResolvedScore, error) {
	q := `INSERT INTO resolved_scores (submission_id, score, comment, grader, "timestamp")
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (submission_id) DO UPDATE
		SET score = EXCLUDED.score, comment = EXCLUDED.comment, grader = EXCLUDED.grader, "timestamp" = EXCLUDED."timestamp"
		RETURNING ` + resolvedColumns

	var row resolvedRow
	err := get(ctx, repo.getExec(exec), &row, q, rs.SubmissionID, rs.Score, rs.Comment, rs.Grader, rs.Timestamp.UTC())
	if err != nil {
		return grading.ResolvedScore{}, trapErr(err, "upserting resolved score")
	}
	return row.resolved(), nil
}

func (repo gradingRepository) QueryResolvedScores(ctx context.Context, problems *core.ProblemRange, exec ...core.DBExecutor) ([]grading.ResolvedScore, error) {
	q := `SELECT r.submission_id, r.score, r.comment, r.grader, r."timestamp"
		FROM resolved_scores r`
	var args []interface{}
	if problems != nil {
		q += ` JOIN submissions s ON s.id = r.submission_id WHERE s.problem_id BETWEEN $1 AND $2`
		args = append(args, problems.First, problems.Last)
	}
	q += ` ORDER BY r.submission_id`

	var rows []resolvedRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying resolved scores")
	}
	resolved := make([]grading.ResolvedScore, 0, len(rows))
	for _, r := range rows {
		resolved = append(resolved, r.resolved())
	}
	return resolved, nil
}
