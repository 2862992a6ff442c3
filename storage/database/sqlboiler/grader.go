package boiledrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/drivers"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/sqlboiler/v4/queries/qm"
	"github.com/volatiletech/sqlboiler/v4/types"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/grader"
)

var (
	dialect = drivers.Dialect{
		LQ:                   '"',
		RQ:                   '"',
		UseIndexPlaceholders: true,
		UseDefaultKeyword:    true,
	}

	graderColumns = []string{
		"id", "name", "username", "email", "is_active", "roles",
		"password_hash", "created_at", "updated_at", "last_login",
	}
)

const graderReturning = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

// newQuery builds a postgres query from query mods.
func newQuery(mods ...qm.QueryMod) *queries.Query {
	q := &queries.Query{}
	queries.SetDialect(q, &dialect)
	qm.Apply(q, mods...)
	return q
}

type graderRow struct {
	ID           string            `boil:"id"`
	Name         string            `boil:"name"`
	Username     null.String       `boil:"username"`
	Email        null.String       `boil:"email"`
	IsActive     bool              `boil:"is_active"`
	Roles        types.StringArray `boil:"roles"`
	PasswordHash []byte            `boil:"password_hash"`
	CreatedAt    time.Time         `boil:"created_at"`
	UpdatedAt    time.Time         `boil:"updated_at"`
	LastLogin    null.Time         `boil:"last_login"`
}

func (r graderRow) unboil() grader.Grader {
	return grader.Grader{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    utcPtr(r.LastLogin),
	}
}

type graderRepository struct {
	repository
}

var _ grader.Repository = (*graderRepository)(nil) // interface compliance check

func NewGraderRepository(exec core.DBExecutor) grader.Repository {
	return &graderRepository{repository{exec: exec}}
}

func (repo graderRepository) exists(ctx context.Context, exec core.DBExecutor, mods ...qm.QueryMod) (bool, error) {
	q := newQuery(append([]qm.QueryMod{qm.From("graders")}, mods...)...)
	queries.SetSelect(q, nil)
	queries.SetCount(q)
	queries.SetLimit(q, 1)

	var count int64
	if err := q.QueryRowContext(ctx, exec).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (repo graderRepository) CheckUniqueness(ctx context.Context, username, email string, exec ...core.DBExecutor) error {
	ex := repo.getExec(exec)

	found, err := repo.exists(ctx, ex, qm.Where("username = ?", username))
	if err != nil {
		return errors.Wrap(err, "checking username uniqueness")
	}
	if found {
		return grader.ErrUsernameExists
	}

	if email == "" {
		return nil
	}
	found, err = repo.exists(ctx, ex, qm.Where("email = ?", email))
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if found {
		return grader.ErrEmailExists
	}
	return nil
}

func (repo graderRepository) CreateGrader(ctx context.Context, g grader.Grader, exec ...core.DBExecutor) (grader.Grader, error) {
	q := `INSERT INTO graders (id, name, username, email, is_active, roles, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + graderReturning

	var row graderRow
	err := queries.Raw(q,
		uuid.New().String(),
		g.Name,
		null.NewString(g.Username, g.Username != ""),
		null.NewString(g.Email, g.Email != ""),
		g.IsActive,
		types.StringArray(g.Roles),
		g.PasswordHash,
		g.CreatedAt.UTC(),
		g.UpdatedAt.UTC(),
	).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		if isPQError(err, uniqueViolation) {
			return grader.Grader{}, grader.ErrUsernameExists
		}
		return grader.Grader{}, errors.Wrap(err, "inserting grader")
	}
	return row.unboil(), nil
}

func (repo graderRepository) GetGrader(ctx context.Context, filter grader.GetFilter, exec ...core.DBExecutor) (grader.Grader, error) {
	var where qm.QueryMod
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return grader.Grader{}, grader.ErrNotFound
		}
		where = qm.Where("id = ?", filter.ID)
	case filter.Username != "":
		where = qm.Where("username = ?", filter.Username)
	case filter.UsernameOrEmail != "":
		where = qm.Where("(username = ? OR email = ?)", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return grader.Grader{}, grader.ErrNotFound
	}

	var row graderRow
	err := newQuery(qm.Select(graderColumns...), qm.From("graders"), where, qm.Limit(1)).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return grader.Grader{}, trapNoRowsErr(err, grader.ErrNotFound, "finding grader")
	}
	return row.unboil(), nil
}

func (repo graderRepository) QueryGraders(ctx context.Context, exec ...core.DBExecutor) ([]grader.Grader, error) {
	var rows []graderRow
	order := core.DBOrdering{Field: "username", Ascending: true}
	err := newQuery(qm.Select(graderColumns...), qm.From("graders"), qm.OrderBy(order.String())).
		Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying graders")
	}
	graders := make([]grader.Grader, 0, len(rows))
	for _, r := range rows {
		graders = append(graders, r.unboil())
	}
	return graders, nil
}

// UpdateGrader applies the non-nil fields of patch.
func (repo graderRepository) UpdateGrader(ctx context.Context, id string, patch grader.Patch, exec ...core.DBExecutor) (grader.Grader, error) {
	if _, err := uuid.Parse(id); err != nil {
		return grader.Grader{}, grader.ErrNotFound
	}

	var roles interface{}
	if patch.Roles != nil {
		roles = types.StringArray(patch.Roles)
	}
	q := `UPDATE graders SET
		password_hash = COALESCE($2, password_hash),
		is_active = COALESCE($3, is_active),
		roles = COALESCE($4, roles),
		last_login = COALESCE($5, last_login),
		updated_at = COALESCE($6, updated_at)
		WHERE id = $1
		RETURNING ` + graderReturning

	var row graderRow
	err := queries.Raw(q,
		id,
		null.NewBytes(patch.PasswordHash, patch.PasswordHash != nil),
		null.BoolFromPtr(patch.IsActive),
		roles,
		null.TimeFromPtr(patch.LastLogin),
		null.NewTime(patch.UpdatedAt.UTC(), !patch.UpdatedAt.IsZero()),
	).Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return grader.Grader{}, trapNoRowsErr(err, grader.ErrNotFound, "updating grader")
	}
	return row.unboil(), nil
}
