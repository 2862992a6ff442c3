package grader

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/examhall/core"
)

// Roles
const (
	RoleGrader = "grader"
	RoleAdmin  = "admin"
)

var AllRoles = []string{RoleGrader, RoleAdmin}

type Grader struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	IsActive     bool       `json:"is_active"`
	Roles        []string   `json:"roles"`
	PasswordHash []byte     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at"` // UTC
	LastLogin    *time.Time `json:"last_login"` // UTC
}

func (g *Grader) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	g.PasswordHash = hash
	return nil
}

func (g *Grader) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(g.PasswordHash, []byte(pwd))
}

func (g *Grader) HasRole(role string) bool {
	for _, r := range g.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (g *Grader) IsAdmin() bool { return g.HasRole(RoleAdmin) }

// CanGrade is true for graders and admins.
func (g *Grader) CanGrade() bool { return g.HasRole(RoleGrader) || g.IsAdmin() }

// NewGrader contains information needed to create a new Grader.
type NewGrader struct {
	Name            string   `json:"name" validate:"required,max=100"`
	Username        string   `json:"username" validate:"required,min=3,max=50,alphanum_"`
	Email           string   `json:"email" validate:"omitempty,email,max=100"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	Roles           []string `json:"roles" validate:"omitempty,graderroles"`
}

func (ng *NewGrader) Clean() {
	ng.Name = core.CleanString(ng.Name)
	ng.Username = core.CleanString(ng.Username, true /* lower */)
	ng.Email = core.CleanString(ng.Email, true /* lower */)
	if len(ng.Roles) == 0 {
		ng.Roles = []string{RoleGrader}
	}
}

func (ng *NewGrader) Validate(validate *validator.Validate) error {
	ng.Clean()
	return validate.Struct(ng)
}

// SetPassword changes the password of an existing Grader.
type SetPassword struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	// used for similarity checks
	name, username, email string
}

func (sp *SetPassword) Validate(validate *validator.Validate, g Grader) error {
	sp.name, sp.username, sp.email = g.Name, g.Username, g.Email
	return validate.Struct(sp)
}

// Credentials are sent to log in.
type Credentials struct {
	Username string `json:"username" validate:"required"` // username or email
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Username = core.CleanString(c.Username, true /* lower */)
	return validate.Struct(c)
}

// Patch lists the fields of a Grader that may be updated; nil fields are left unchanged.
type Patch struct {
	PasswordHash []byte
	IsActive     *bool
	Roles        []string
	LastLogin    *time.Time
	UpdatedAt    time.Time
}

// GetFilter selects a single Grader; the first set field wins.
type GetFilter struct {
	ID              string
	Username        string
	UsernameOrEmail string
}
