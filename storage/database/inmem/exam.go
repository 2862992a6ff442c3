package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/exam"
)

type paperRepository struct {
	db *DB
}

var _ exam.Repository = (*paperRepository)(nil) // interface compliance check

func NewPaperRepository(db *DB) exam.Repository {
	return &paperRepository{db: db}
}

func (repo *paperRepository) UpsertPaper(_ context.Context, paper exam.ExamPaper, _ ...core.DBExecutor) (exam.ExamPaper, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for id, p := range repo.db.papers {
		if p.TestName == paper.TestName && p.Language == paper.Language {
			paper.ID = id
			repo.db.papers[id] = paper
			return paper, nil
		}
	}
	paper.ID = repo.db.nextPK()
	repo.db.papers[paper.ID] = paper
	return paper, nil
}

func (repo *paperRepository) SetPapersActive(_ context.Context, testName string, active bool, _ ...core.DBExecutor) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var n int
	for id, p := range repo.db.papers {
		if p.TestName == testName {
			p.IsActive = active
			repo.db.papers[id] = p
			n++
		}
	}
	return n, nil
}

func (repo *paperRepository) QueryPapers(_ context.Context, filter exam.PaperFilter, _ ...core.DBExecutor) ([]exam.ExamPaper, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	papers := make([]exam.ExamPaper, 0)
	for _, p := range repo.db.papers {
		if filter.TestName != "" && p.TestName != filter.TestName {
			continue
		}
		if filter.Language != "" && p.Language != filter.Language {
			continue
		}
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		papers = append(papers, p)
	}
	sort.Slice(papers, func(i, j int) bool { return papers[i].ID < papers[j].ID })
	return papers, nil
}
