package boiledrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/exam"
)

const paperColumns = `id, test_name, language, link, is_active`

type paperRow struct {
	ID       int    `boil:"id"`
	TestName string `boil:"test_name"`
	Language string `boil:"language"`
	Link     string `boil:"link"`
	IsActive bool   `boil:"is_active"`
}

func (r paperRow) unboil() exam.ExamPaper {
	return exam.ExamPaper{
		ID:       r.ID,
		TestName: r.TestName,
		Language: r.Language,
		Link:     r.Link,
		IsActive: r.IsActive,
	}
}

type paperRepository struct {
	repository
}

var _ exam.Repository = (*paperRepository)(nil) // interface compliance check

func NewPaperRepository(exec core.DBExecutor) exam.Repository {
	return &paperRepository{repository{exec: exec}}
}

func (repo paperRepository) UpsertPaper(ctx context.Context, paper exam.ExamPaper, exec ...core.DBExecutor) (exam.ExamPaper, error) {
	q := `INSERT INTO exam_papers (test_name, language, link, is_active) VALUES ($1, $2, $3, $4)
		ON CONFLICT (test_name, language) DO UPDATE SET link = EXCLUDED.link, is_active = EXCLUDED.is_active
		RETURNING ` + paperColumns

	var row paperRow
	err := queries.Raw(q, paper.TestName, paper.Language, paper.Link, paper.IsActive).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return exam.ExamPaper{}, errors.Wrap(err, "upserting exam paper")
	}
	return row.unboil(), nil
}

func (repo paperRepository) SetPapersActive(ctx context.Context, testName string, active bool, exec ...core.DBExecutor) (int, error) {
	res, err := queries.Raw("UPDATE exam_papers SET is_active = $2 WHERE test_name = $1", testName, active).
		ExecContext(ctx, repo.getExec(exec))
	if err != nil {
		return 0, errors.Wrap(err, "updating exam papers")
	}
	n, err := res.RowsAffected()
	return int(n), errors.Wrap(err, "counting updated exam papers")
}

func (repo paperRepository) QueryPapers(ctx context.Context, filter exam.PaperFilter, exec ...core.DBExecutor) ([]exam.ExamPaper, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.TestName != "" {
		args = append(args, filter.TestName)
		conds = append(conds, fmt.Sprintf("test_name = $%d", len(args)))
	}
	if filter.Language != "" {
		args = append(args, filter.Language)
		conds = append(conds, fmt.Sprintf("language = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "is_active")
	}
	q := "SELECT " + paperColumns + " FROM exam_papers"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY id"

	var rows []paperRow
	if err := queries.Raw(q, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "querying exam papers")
	}
	papers := make([]exam.ExamPaper, 0, len(rows))
	for _, r := range rows {
		papers = append(papers, r.unboil())
	}
	return papers, nil
}
