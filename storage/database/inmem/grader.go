package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/grader"
)

type graderRepository struct {
	db *DB
}

var _ grader.Repository = (*graderRepository)(nil) // interface compliance check

func NewGraderRepository(db *DB) grader.Repository {
	return &graderRepository{db: db}
}

func (repo *graderRepository) CheckUniqueness(_ context.Context, username, email string, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, g := range repo.db.graders {
		if g.Username == username {
			return grader.ErrUsernameExists
		}
		if email != "" && g.Email == email {
			return grader.ErrEmailExists
		}
	}
	return nil
}

func (repo *graderRepository) CreateGrader(_ context.Context, g grader.Grader, _ ...core.DBExecutor) (grader.Grader, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	g.ID = uuid.New().String()
	repo.db.graders[g.ID] = g
	return g, nil
}

func (repo *graderRepository) GetGrader(_ context.Context, filter grader.GetFilter, _ ...core.DBExecutor) (grader.Grader, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if g, ok := repo.db.graders[filter.ID]; ok {
			return g, nil
		}
		return grader.Grader{}, grader.ErrNotFound
	}
	for _, g := range repo.db.graders {
		switch {
		case filter.Username != "" && g.Username == filter.Username:
			return g, nil
		case filter.UsernameOrEmail != "" &&
			(g.Username == filter.UsernameOrEmail || (g.Email != "" && g.Email == filter.UsernameOrEmail)):
			return g, nil
		}
	}
	return grader.Grader{}, grader.ErrNotFound
}

func (repo *graderRepository) QueryGraders(_ context.Context, _ ...core.DBExecutor) ([]grader.Grader, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	graders := make([]grader.Grader, 0, len(repo.db.graders))
	for _, g := range repo.db.graders {
		graders = append(graders, g)
	}
	sort.Slice(graders, func(i, j int) bool { return graders[i].Username < graders[j].Username })
	return graders, nil
}

func (repo *graderRepository) UpdateGrader(_ context.Context, id string, patch grader.Patch, _ ...core.DBExecutor) (grader.Grader, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	g, ok := repo.db.graders[id]
	if !ok {
		return grader.Grader{}, grader.ErrNotFound
	}
	if patch.PasswordHash != nil {
		g.PasswordHash = patch.PasswordHash
	}
	if patch.IsActive != nil {
		g.IsActive = *patch.IsActive
	}
	if patch.Roles != nil {
		g.Roles = patch.Roles
	}
	if patch.LastLogin != nil {
		t := *patch.LastLogin
		g.LastLogin = &t
	}
	if !patch.UpdatedAt.IsZero() {
		g.UpdatedAt = patch.UpdatedAt
	}
	repo.db.graders[id] = g
	return g, nil
}
