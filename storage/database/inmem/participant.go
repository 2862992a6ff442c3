package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/participant"
)

type participantRepository struct {
	db *DB
}

var _ participant.Repository = (*participantRepository)(nil) // interface compliance check

func NewParticipantRepository(db *DB) participant.Repository {
	return &participantRepository{db: db}
}

func (repo *participantRepository) CreateParticipants(_ context.Context, participants []participant.Participant, _ ...core.DBExecutor) ([]participant.Participant, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, p := range participants {
		for _, existing := range repo.db.participants {
			if existing.AccessToken == p.AccessToken {
				return nil, errors.New("duplicate access token")
			}
		}
	}

	created := make([]participant.Participant, 0, len(participants))
	for _, p := range participants {
		p.ID = repo.db.nextPK()
		repo.db.participants[p.ID] = p
		created = append(created, p)
	}
	return created, nil
}

func (repo *participantRepository) GetParticipant(_ context.Context, filter participant.GetFilter, _ ...core.DBExecutor) (participant.Participant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != 0 {
		if p, ok := repo.db.participants[filter.ID]; ok {
			return p, nil
		}
		return participant.Participant{}, participant.ErrNotFound
	}
	if filter.AccessToken != "" {
		for _, p := range repo.db.participants {
			if p.AccessToken == filter.AccessToken {
				return p, nil
			}
		}
	}
	return participant.Participant{}, participant.ErrNotFound
}

func (repo *participantRepository) QueryParticipants(_ context.Context, _ ...core.DBExecutor) ([]participant.Participant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	participants := make([]participant.Participant, 0, len(repo.db.participants))
	for _, p := range repo.db.participants {
		participants = append(participants, p)
	}
	sort.Slice(participants, func(i, j int) bool { return participants[i].ID < participants[j].ID })
	return participants, nil
}

func (repo *participantRepository) LatchStart(_ context.Context, id int, trackID string, now time.Time, _ ...core.DBExecutor) (time.Time, bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	p, ok := repo.db.participants[id]
	if !ok {
		return time.Time{}, false, participant.ErrNotFound
	}

	var field **time.Time
	switch trackID {
	case core.TrackDay1:
		field = &p.StartTimestamp
	case core.TrackDay2:
		field = &p.Day2Timestamp
	default:
		return time.Time{}, false, errors.Errorf("no start field for track %q", trackID)
	}
	if *field != nil {
		return **field, false, nil
	}
	t := now.Round(time.Microsecond)
	*field = &t
	repo.db.participants[id] = p
	return t, true, nil
}
