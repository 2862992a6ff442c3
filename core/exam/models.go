package exam

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/examhall/core"
)

// DefaultLocale is used when a participant has no preferred paper language.
const DefaultLocale = "english"

// ExamPaper describes the statement of one track in one locale.
type ExamPaper struct {
	ID       int    `json:"id"`
	TestName string `json:"test_name"` // track id
	Language string `json:"language"`
	Link     string `json:"link"`
	IsActive bool   `json:"is_active"`
}

// NewExamPaper creates or replaces the paper of a track in a locale.
type NewExamPaper struct {
	TestName string `json:"test_name" validate:"required,track"`
	Language string `json:"language" validate:"required,paperlang"`
	Link     string `json:"link" validate:"required,url,max=500"`
	IsActive bool   `json:"is_active"`
}

func (np *NewExamPaper) Validate(validate *validator.Validate) error {
	np.TestName = core.CleanString(np.TestName, true /* lower */)
	np.Language = core.CleanString(np.Language, true /* lower */)
	np.Link = core.CleanString(np.Link)
	return validate.Struct(np)
}

// ActivatePapers switches every paper of a track on or off.
type ActivatePapers struct {
	TestName string `json:"test_name" validate:"required,track"`
	IsActive bool   `json:"is_active"`
}

func (ap *ActivatePapers) Validate(validate *validator.Validate) error {
	ap.TestName = core.CleanString(ap.TestName, true /* lower */)
	return validate.Struct(ap)
}

// PaperFilter selects papers; zero fields are ignored.
type PaperFilter struct {
	TestName   string
	Language   string
	ActiveOnly bool
}
