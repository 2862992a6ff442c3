package grading

import (
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/submission"
)

// Abstain is the score of a grader who opened a submission but did not rate it.
const Abstain = -1

// Score is one grader's rating of a submission.
type Score struct {
	ID           int       `json:"id"`
	SubmissionID int       `json:"submission_id"`
	Grader       string    `json:"grader"`
	Score        int       `json:"score"`
	Comment      string    `json:"comment"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewScore contains what a grader sends to score a submission.
type NewScore struct {
	Score   int    `json:"score" validate:"score"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (ns *NewScore) Validate(validate *validator.Validate) error {
	ns.Comment = core.CleanString(ns.Comment)
	return validate.Struct(ns)
}

// ResolvedScore is the final score of a submission after reconciliation.
type ResolvedScore struct {
	SubmissionID int       `json:"submission_id"`
	Score        int       `json:"score"`
	Comment      string    `json:"comment"`
	Grader       string    `json:"grader"`
	Timestamp    time.Time `json:"timestamp"`
}

// NewResolution contains the adjudicated score of a submission.
type NewResolution struct {
	Score   int    `json:"score" validate:"min=0,score"`
	Comment string `json:"comment" validate:"max=2000"`
}

func (nr *NewResolution) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

// Candidate is a submission that may be handed to a grader, with who already scored it.
type Candidate struct {
	Submission submission.Submission
	ScoreCount int
	Graders    []string
}

func (c Candidate) ScoredBy(grader string) bool {
	for _, g := range c.Graders {
		if g == grader {
			return true
		}
	}
	return false
}

// SubmissionGroup is a submission with all its scores.
type SubmissionGroup struct {
	Submission submission.Submission `json:"submission"`
	Scores     []Score               `json:"scores"`
	Resolved   *ResolvedScore        `json:"resolved,omitempty"`
}

// ValidScores returns the scores that are not abstentions.
func (g SubmissionGroup) ValidScores() []int {
	valid := make([]int, 0, len(g.Scores))
	for _, s := range g.Scores {
		if s.Score != Abstain {
			valid = append(valid, s.Score)
		}
	}
	return valid
}

// Range returns the lowest and highest valid score; ok is false when there is none.
func (g SubmissionGroup) Range() (min, max int, ok bool) {
	valid := g.ValidScores()
	if len(valid) == 0 {
		return 0, 0, false
	}
	min, max = valid[0], valid[0]
	for _, v := range valid[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max, true
}

// Policy decides which submissions need a reviewer's attention.
type Policy struct {
	MaxScore              int
	DisagreementThreshold int
	AlwaysReviewLanguages []string
}

func NewPolicy(conf core.ExamConfig) Policy {
	return Policy{
		MaxScore:              conf.MaxScore,
		DisagreementThreshold: conf.DisagreementThreshold,
		AlwaysReviewLanguages: conf.AlwaysReviewLanguages,
	}
}

// NeedsReview reports whether the group still needs a reviewer:
// always for an always-review language, otherwise when it has no valid score, at most one score,
// graders disagree by more than the threshold, or a top score is not corroborated by a second one.
func (p Policy) NeedsReview(g SubmissionGroup) bool {
	if core.ContainsFold(p.AlwaysReviewLanguages, g.Submission.Language) {
		return true
	}
	min, max, ok := g.Range()
	if !ok || len(g.Scores) <= 1 {
		return true
	}
	if max-min > p.DisagreementThreshold {
		return true
	}
	if max == p.MaxScore {
		return !(min == p.MaxScore && len(g.Scores) >= 2)
	}
	return false
}

// priority is the review sort key; lower comes first.
// Groups without a valid score come before every other group.
func priority(g SubmissionGroup) int {
	min, max, ok := g.Range()
	if !ok {
		return math.MinInt32
	}
	return -(max - min)
}

// SortForReview orders groups by largest disagreement first, then by submission id.
func SortForReview(groups []SubmissionGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		pi, pj := priority(groups[i]), priority(groups[j])
		if pi != pj {
			return pi < pj
		}
		return groups[i].Submission.ID < groups[j].Submission.ID
	})
}

// Filter returns the groups that need review, in review order.
func (p Policy) Filter(groups []SubmissionGroup) []SubmissionGroup {
	review := make([]SubmissionGroup, 0, len(groups))
	for _, g := range groups {
		if p.NeedsReview(g) {
			review = append(review, g)
		}
	}
	SortForReview(review)
	return review
}
