package submission

import (
	"io"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/examhall/core"
)

// submission kinds, used as metric labels
const (
	KindLink   = "link"
	KindUpload = "upload"
)

// Submission is a participant's answer to one problem. There is at most one per (participant, problem).
type Submission struct {
	ID            int       `json:"id"`
	ParticipantID int       `json:"participant_id"`
	ProblemID     int       `json:"problem_id"`
	Link          string    `json:"link"`
	Language      string    `json:"language"`
	Timestamp     time.Time `json:"timestamp"` // last write, UTC
}

// Upload is a solution file sent by a participant.
type Upload struct {
	Filename string
	Content  io.Reader
}

// Ext returns the lowercased extension of the uploaded file name.
func (u *Upload) Ext() string {
	return strings.ToLower(path.Ext(u.Filename))
}

// NewSubmission contains what a participant sends for one problem.
// Exactly one of Link or Upload must be set.
type NewSubmission struct {
	Track     string  `form:"track" validate:"required,track"`
	ProblemID int     `form:"problem_id" validate:"required,min=1"`
	Language  string  `form:"language" validate:"required,answerlang"`
	Link      string  `form:"link" validate:"omitempty,url,max=500"`
	Upload    *Upload `form:"-"`
}

func (ns *NewSubmission) Clean() {
	ns.Track = core.CleanString(ns.Track, true /* lower */)
	ns.Language = core.CleanString(ns.Language, true /* lower */)
	ns.Link = core.CleanString(ns.Link)
}

func (ns *NewSubmission) Kind() string {
	if ns.Upload != nil {
		return KindUpload
	}
	return KindLink
}

func (ns *NewSubmission) Validate(validate *validator.Validate, conf *core.Config) error {
	ns.Clean()
	if err := validate.Struct(ns); err != nil {
		return err
	}

	switch {
	case ns.Link != "" && ns.Upload != nil:
		return errLinkAndUpload
	case ns.Link == "" && ns.Upload == nil:
		return errNoAnswer
	}

	track, _ := conf.Exam.Track(ns.Track)
	if !track.HasProblem(ns.ProblemID) {
		return errProblemNotInTrack
	}
	return nil
}

// QueryFilter selects submissions; zero fields are ignored.
type QueryFilter struct {
	ParticipantID int
	Problems      *core.ProblemRange
}
