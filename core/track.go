package core

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Exam tracks. Each track has its own start latch on the participant.
const (
	TrackDay1 = "day1"
	TrackDay2 = "day2"
)

// Track is one exam instance (day) with its own duration and problem id range.
type Track struct {
	ID           string
	Duration     time.Duration
	FirstProblem int
	LastProblem  int
}

func newTrack(id string, d time.Duration, problems ProblemRange) Track {
	return Track{ID: id, Duration: d, FirstProblem: problems.First, LastProblem: problems.Last}
}

func (t Track) HasProblem(problemID int) bool {
	return problemID >= t.FirstProblem && problemID <= t.LastProblem
}

// ProblemRange selects submissions by problem id, both bounds inclusive.
type ProblemRange struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

func (t Track) Problems() ProblemRange {
	return ProblemRange{First: t.FirstProblem, Last: t.LastProblem}
}

func (pr ProblemRange) Contains(problemID int) bool {
	return problemID >= pr.First && problemID <= pr.Last
}

// ParseProblemRange parses "first-last", e.g. "100-199".
func ParseProblemRange(s string) (ProblemRange, error) {
	parts := strings.SplitN(s, "-", 2)
	if len(parts) != 2 {
		return ProblemRange{}, errors.Errorf("invalid problem range %q", s)
	}
	first, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return ProblemRange{}, errors.Wrapf(err, "invalid problem range %q", s)
	}
	last, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return ProblemRange{}, errors.Wrapf(err, "invalid problem range %q", s)
	}
	if first < 1 || last < first {
		return ProblemRange{}, errors.Errorf("invalid problem range %q", s)
	}
	return ProblemRange{First: first, Last: last}, nil
}
