package grader

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("grader not found")
	ErrUsernameExists     = errors.New("a grader with this username already exists")
	ErrEmailExists        = errors.New("a grader with this email already exists")
	ErrInvalidCredentials = errors.New("authentication failed")
	ErrInactive           = errors.New("account deactivated")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when taken.
		CheckUniqueness(ctx context.Context, username, email string, exec ...core.DBExecutor) error
		CreateGrader(ctx context.Context, g Grader, exec ...core.DBExecutor) (Grader, error)
		GetGrader(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Grader, error)
		QueryGraders(ctx context.Context, exec ...core.DBExecutor) ([]Grader, error)
		UpdateGrader(ctx context.Context, id string, patch Patch, exec ...core.DBExecutor) (Grader, error)
	}

	Service interface {
		Create(ctx context.Context, ng NewGrader) (Grader, error)
		GetByID(ctx context.Context, id string) (Grader, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (Grader, error)
		QueryAll(ctx context.Context) ([]Grader, error)
		// Login checks the credentials of an active grader and records the login time.
		Login(ctx context.Context, creds Credentials) (Grader, error)
		SetPassword(ctx context.Context, id string, sp SetPassword) (Grader, error)
		SetActive(ctx context.Context, id string, active bool) (Grader, error)
	}

	service struct {
		tx       core.TxRunner
		repo     Repository
		validate *validator.Validate
	}
)

var _ Service = (*service)(nil)

func NewService(tx core.TxRunner, repo Repository, validate *validator.Validate) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(tx, "tx"),
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(validate, "validate"),
	).CheckAndPanic()

	return &service{tx: tx, repo: repo, validate: validate}
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, exec core.DBExecutor) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, exec); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, ng NewGrader) (Grader, error) {
	if err := ng.Validate(svc.validate); err != nil {
		return Grader{}, err
	}

	now := core.NowFunc()
	g := Grader{
		Name:      ng.Name,
		Username:  ng.Username,
		Email:     ng.Email,
		IsActive:  true,
		Roles:     ng.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := g.SetPassword(ng.Password); err != nil {
		return Grader{}, errors.Wrap(err, "setting password")
	}

	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkUniqueness(ctx, g.Username, g.Email, exec); err != nil {
			return err
		}
		var err error
		g, err = svc.repo.CreateGrader(ctx, g, exec)
		return errors.Wrap(err, "creating grader")
	})
	if err != nil {
		return Grader{}, err
	}
	return g, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (Grader, error) {
	return svc.repo.GetGrader(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (Grader, error) {
	return svc.repo.GetGrader(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) QueryAll(ctx context.Context) ([]Grader, error) {
	return svc.repo.QueryGraders(ctx)
}

func (svc *service) Login(ctx context.Context, creds Credentials) (Grader, error) {
	if err := creds.Validate(svc.validate); err != nil {
		return Grader{}, err
	}
	g, err := svc.repo.GetGrader(ctx, GetFilter{UsernameOrEmail: creds.Username})
	if err != nil {
		if core.IsNotFound(err) {
			return Grader{}, ErrInvalidCredentials
		}
		return Grader{}, errors.Wrap(err, "finding grader")
	}
	if err = g.CheckPassword(creds.Password); err != nil {
		return Grader{}, ErrInvalidCredentials
	}
	if !g.IsActive {
		return Grader{}, ErrInactive
	}

	now := core.NowFunc()
	g, err = svc.repo.UpdateGrader(ctx, g.ID, Patch{LastLogin: &now, UpdatedAt: now})
	return g, errors.Wrap(err, "setting last login")
}

func (svc *service) SetPassword(ctx context.Context, id string, sp SetPassword) (Grader, error) {
	g, err := svc.GetByID(ctx, id)
	if err != nil {
		return Grader{}, err
	}
	if err = sp.Validate(svc.validate, g); err != nil {
		return Grader{}, err
	}
	if err = g.SetPassword(sp.Password); err != nil {
		return Grader{}, errors.Wrap(err, "setting password")
	}
	g, err = svc.repo.UpdateGrader(ctx, id, Patch{PasswordHash: g.PasswordHash, UpdatedAt: core.NowFunc()})
	return g, errors.Wrap(err, "updating grader")
}

func (svc *service) SetActive(ctx context.Context, id string, active bool) (Grader, error) {
	g, err := svc.repo.UpdateGrader(ctx, id, Patch{IsActive: &active, UpdatedAt: core.NowFunc()})
	if err != nil {
		return Grader{}, err
	}
	return g, nil
}
