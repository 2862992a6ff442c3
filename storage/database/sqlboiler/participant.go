package boiledrepos

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"
	"github.com/volatiletech/strmangle"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/participant"
)

const participantColumns = `id, access_token, nickname, email, preferred_lang, start_timestamp, day2_timestamp, created_at`

// start latch column per track
var startColumns = map[string]string{
	core.TrackDay1: "start_timestamp",
	core.TrackDay2: "day2_timestamp",
}

type participantRow struct {
	ID             int       `boil:"id"`
	AccessToken    string    `boil:"access_token"`
	Nickname       string    `boil:"nickname"`
	Email          string    `boil:"email"`
	PreferredLang  string    `boil:"preferred_lang"`
	StartTimestamp null.Time `boil:"start_timestamp"`
	Day2Timestamp  null.Time `boil:"day2_timestamp"`
	CreatedAt      time.Time `boil:"created_at"`
}

func (r participantRow) unboil() participant.Participant {
	return participant.Participant{
		ID:             r.ID,
		AccessToken:    r.AccessToken,
		Nickname:       r.Nickname,
		Email:          r.Email,
		PreferredLang:  r.PreferredLang,
		StartTimestamp: utcPtr(r.StartTimestamp),
		Day2Timestamp:  utcPtr(r.Day2Timestamp),
		CreatedAt:      r.CreatedAt.UTC(),
	}
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	utc := t.Time.UTC()
	return &utc
}

type participantRepository struct {
	repository
}

var _ participant.Repository = (*participantRepository)(nil) // interface compliance check

func NewParticipantRepository(exec core.DBExecutor) participant.Repository {
	return &participantRepository{repository{exec: exec}}
}

// CreateParticipants inserts all participants in a single statement.
func (repo participantRepository) CreateParticipants(ctx context.Context, participants []participant.Participant, exec ...core.DBExecutor) ([]participant.Participant, error) {
	if len(participants) == 0 {
		return []participant.Participant{}, nil
	}

	const nCols = 5
	args := make([]interface{}, 0, nCols*len(participants))
	for _, p := range participants {
		args = append(args, p.AccessToken, p.Nickname, p.Email, p.PreferredLang, p.CreatedAt.UTC())
	}
	q := "INSERT INTO participants (access_token, nickname, email, preferred_lang, created_at) VALUES " +
		strmangle.Placeholders(true, len(args), 1, nCols) +
		" RETURNING " + participantColumns

	var rows []participantRow
	if err := queries.Raw(q, args...).Bind(ctx, repo.getExec(exec), &rows); err != nil {
		return nil, errors.Wrap(err, "inserting participants")
	}
	created := make([]participant.Participant, 0, len(rows))
	for _, r := range rows {
		created = append(created, r.unboil())
	}
	return created, nil
}

func (repo participantRepository) GetParticipant(ctx context.Context, filter participant.GetFilter, exec ...core.DBExecutor) (participant.Participant, error) {
	var (
		where string
		arg   interface{}
	)
	switch {
	case filter.ID != 0:
		where, arg = "id = $1", filter.ID
	case filter.AccessToken != "":
		where, arg = "access_token = $1", filter.AccessToken
	default:
		return participant.Participant{}, participant.ErrNotFound
	}

	var row participantRow
	err := queries.Raw("SELECT "+participantColumns+" FROM participants WHERE "+where, arg).
		Bind(ctx, repo.getExec(exec), &row)
	if err != nil {
		return participant.Participant{}, trapNoRowsErr(err, participant.ErrNotFound, "finding participant")
	}
	return row.unboil(), nil
}

func (repo participantRepository) QueryParticipants(ctx context.Context, exec ...core.DBExecutor) ([]participant.Participant, error) {
	var rows []participantRow
	err := queries.Raw("SELECT "+participantColumns+" FROM participants ORDER BY id").
		Bind(ctx, repo.getExec(exec), &rows)
	if err != nil {
		return nil, errors.Wrap(err, "querying participants")
	}
	participants := make([]participant.Participant, 0, len(rows))
	for _, r := range rows {
		participants = append(participants, r.unboil())
	}
	return participants, nil
}

// LatchStart is a single conditional update: concurrent callers all read the first stored value.
// started compares in the database so both sides carry the column's precision.
func (repo participantRepository) LatchStart(ctx context.Context, id int, trackID string, now time.Time, exec ...core.DBExecutor) (time.Time, bool, error) {
	col, ok := startColumns[trackID]
	if !ok {
		return time.Time{}, false, errors.Errorf("no start column for track %q", trackID)
	}
	q := strings.NewReplacer("{col}", col).Replace(
		"UPDATE participants SET {col} = COALESCE({col}, $2) WHERE id = $1 RETURNING {col} AS start, {col} = $2 AS started")

	var row struct {
		Start   time.Time `boil:"start"`
		Started bool      `boil:"started"`
	}
	if err := queries.Raw(q, id, now.UTC()).Bind(ctx, repo.getExec(exec), &row); err != nil {
		return time.Time{}, false, trapNoRowsErr(err, participant.ErrNotFound, "latching start")
	}
	return row.Start.UTC(), row.Started, nil
}
