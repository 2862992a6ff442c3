package participant

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/examhall/core"
)

type Participant struct {
	ID             int        `json:"id"`
	AccessToken    string     `json:"access_token"`
	Nickname       string     `json:"nickname"`
	Email          string     `json:"email"`
	PreferredLang  string     `json:"preferred_lang"`
	StartTimestamp *time.Time `json:"start_timestamp"` // day1 latch, UTC
	Day2Timestamp  *time.Time `json:"day2_timestamp"`  // day2 latch, UTC
	CreatedAt      time.Time  `json:"created_at"`
}

// StartedAt returns the latched start time of the given track, if any.
func (p Participant) StartedAt(trackID string) *time.Time {
	switch trackID {
	case core.TrackDay1:
		return p.StartTimestamp
	case core.TrackDay2:
		return p.Day2Timestamp
	}
	return nil
}

// NewParticipant contains information needed to register a new Participant.
type NewParticipant struct {
	Nickname      string `json:"nickname" validate:"required,max=64"`
	Email         string `json:"email" validate:"omitempty,email,max=100"`
	PreferredLang string `json:"preferred_lang" validate:"omitempty,paperlang"`
}

func (np *NewParticipant) Clean() {
	np.Nickname = core.CleanString(np.Nickname)
	np.Email = core.CleanString(np.Email, true /* lower */)
	np.PreferredLang = core.CleanString(np.PreferredLang, true /* lower */)
}

func (np *NewParticipant) Validate(validate *validator.Validate) error {
	np.Clean()
	return validate.Struct(np)
}

// AccessLink is the personal exam URL handed to a participant.
type AccessLink struct {
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	URL      string `json:"url"`
}

// Session is a participant's timing on one exam track.
type Session struct {
	Track            string    `json:"track"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	RemainingSeconds int64     `json:"remaining_seconds"` // negative once the exam is over
}

func (s Session) IsOver() bool { return s.RemainingSeconds <= 0 }

func newSession(track core.Track, start, now time.Time) Session {
	end := start.Add(track.Duration)
	return Session{
		Track:            track.ID,
		Start:            start,
		End:              end,
		RemainingSeconds: int64(end.Sub(now) / time.Second),
	}
}

// GetFilter selects a single Participant; the first set field wins.
type GetFilter struct {
	ID          int
	AccessToken string
}
