package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/grading"
)

type gradingRepository struct {
	db *DB
}

var _ grading.Repository = (*gradingRepository)(nil) // interface compliance check

func NewGradingRepository(db *DB) grading.Repository {
	return &gradingRepository{db: db}
}

// scoresBySubmission returns the scores of every submission, in insertion order.
func (repo *gradingRepository) scoresBySubmission() map[int][]grading.Score {
	ids := make([]int, 0, len(repo.db.scores))
	for id := range repo.db.scores {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	bySub := make(map[int][]grading.Score)
	for _, id := range ids {
		s := repo.db.scores[id]
		bySub[s.SubmissionID] = append(bySub[s.SubmissionID], s)
	}
	return bySub
}

func (repo *gradingRepository) group(subID int, scores []grading.Score) grading.SubmissionGroup {
	g := grading.SubmissionGroup{Submission: repo.db.submissions[subID], Scores: scores}
	if g.Scores == nil {
		g.Scores = []grading.Score{}
	}
	if rs, ok := repo.db.resolved[subID]; ok {
		g.Resolved = &rs
	}
	return g
}

func (repo *gradingRepository) QueryCandidates(_ context.Context, language string, problemID int, _ ...core.DBExecutor) ([]grading.Candidate, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	bySub := repo.scoresBySubmission()
	candidates := make([]grading.Candidate, 0)
	for _, s := range repo.db.submissions {
		if s.ProblemID != problemID || !strings.EqualFold(s.Language, language) {
			continue
		}
		c := grading.Candidate{Submission: s, ScoreCount: len(bySub[s.ID])}
		for _, score := range bySub[s.ID] {
			c.Graders = append(c.Graders, score.Grader)
		}
		candidates = append(candidates, c)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Submission.ID < candidates[j].Submission.ID })
	return candidates, nil
}

func (repo *gradingRepository) CreateScore(_ context.Context, score grading.Score, _ ...core.DBExecutor) (grading.Score, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[score.SubmissionID]; !ok {
		return grading.Score{}, grading.ErrNotFound
	}
	for _, s := range repo.db.scores {
		if s.SubmissionID == score.SubmissionID && s.Grader == score.Grader {
			return grading.Score{}, grading.ErrAlreadyScored
		}
	}
	score.ID = repo.db.nextPK()
	repo.db.scores[score.ID] = score
	return score, nil
}

func (repo *gradingRepository) QueryGroups(_ context.Context, problems core.ProblemRange, _ ...core.DBExecutor) ([]grading.SubmissionGroup, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	groups := make([]grading.SubmissionGroup, 0)
	for subID, scores := range repo.scoresBySubmission() {
		sub, ok := repo.db.submissions[subID]
		if !ok || !problems.Contains(sub.ProblemID) {
			continue
		}
		groups = append(groups, repo.group(subID, scores))
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Submission.ID < groups[j].Submission.ID })
	return groups, nil
}

func (repo *gradingRepository) GetGroup(_ context.Context, submissionID int, _ ...core.DBExecutor) (grading.SubmissionGroup, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if _, ok := repo.db.submissions[submissionID]; !ok {
		return grading.SubmissionGroup{}, grading.ErrNotFound
	}
	return repo.group(submissionID, repo.scoresBySubmission()[submissionID]), nil
}

func (repo *gradingRepository) UpsertResolvedScore(_ context.Context, rs grading.ResolvedScore, _ ...core.DBExecutor) (grading.ResolvedScore, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.submissions[rs.SubmissionID]; !ok {
		return grading.ResolvedScore{}, grading.ErrNotFound
	}
	repo.db.resolved[rs.SubmissionID] = rs
	return rs, nil
}

func (repo *gradingRepository) QueryResolvedScores(_ context.Context, problems *core.ProblemRange, _ ...core.DBExecutor) ([]grading.ResolvedScore, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	resolved := make([]grading.ResolvedScore, 0, len(repo.db.resolved))
	for subID, rs := range repo.db.resolved {
		if problems != nil && !problems.Contains(repo.db.submissions[subID].ProblemID) {
			continue
		}
		resolved = append(resolved, rs)
	}
	sort.Slice(resolved, func(i, j int) bool { return resolved[i].SubmissionID < resolved[j].SubmissionID })
	return resolved, nil
}
