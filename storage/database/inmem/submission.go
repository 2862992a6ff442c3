package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/participant"
	"github.com/trezcool/examhall/core/submission"
)

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db}
}

func (repo *submissionRepository) find(participantID, problemID int) (submission.Submission, bool) {
	for _, s := range repo.db.submissions {
		if s.ParticipantID == participantID && s.ProblemID == problemID {
			return s, true
		}
	}
	return submission.Submission{}, false
}

func (repo *submissionRepository) GetSubmission(_ context.Context, participantID, problemID int, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.find(participantID, problemID); ok {
		return s, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) GetSubmissionByID(_ context.Context, id int, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return s, nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) UpsertSubmission(_ context.Context, sub submission.Submission, _ ...core.DBExecutor) (submission.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.participants[sub.ParticipantID]; !ok {
		return submission.Submission{}, participant.ErrNotFound
	}
	if existing, ok := repo.find(sub.ParticipantID, sub.ProblemID); ok {
		existing.Link = sub.Link
		existing.Language = sub.Language
		existing.Timestamp = sub.Timestamp
		repo.db.submissions[existing.ID] = existing
		return existing, nil
	}
	sub.ID = repo.db.nextPK()
	repo.db.submissions[sub.ID] = sub
	return sub, nil
}

func (repo *submissionRepository) QuerySubmissions(_ context.Context, filter submission.QueryFilter, _ ...core.DBExecutor) ([]submission.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter.ParticipantID != 0 && s.ParticipantID != filter.ParticipantID {
			continue
		}
		if filter.Problems != nil && !filter.Problems.Contains(s.ProblemID) {
			continue
		}
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].ProblemID != subs[j].ProblemID {
			return subs[i].ProblemID < subs[j].ProblemID
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}
