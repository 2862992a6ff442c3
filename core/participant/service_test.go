package participant_test

import (
	"context"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/participant"
	"github.com/trezcool/examhall/tests"
)

func TestService_Import(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		rows      []participant.NewParticipant
		wantCount int
		wantErr   bool
	}{
		{name: "empty", rows: nil},
		{
			name: "valid rows",
			rows: []participant.NewParticipant{
				{Nickname: " Alice ", Email: "ALICE@test.ee", PreferredLang: "Estonian"},
				{Nickname: "bob"},
			},
			wantCount: 2,
		},
		{
			name:    "missing nickname",
			rows:    []participant.NewParticipant{{Nickname: "carol"}, {Email: "x@test.ee"}},
			wantErr: true,
		},
		{
			name:    "unknown language",
			rows:    []participant.NewParticipant{{Nickname: "dave", PreferredLang: "klingon"}},
			wantErr: true,
		},
		{
			name:    "invalid email",
			rows:    []participant.NewParticipant{{Nickname: "eve", Email: "nope"}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := testutil.NewApp(t)

			got, err := app.ParticipantSvc.Import(ctx, tt.rows)
			all, qErr := app.ParticipantSvc.QueryAll(ctx)
			require.NoError(t, qErr)

			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, core.IsValidation(err))
				assert.Empty(t, all, "nothing is created when a row is invalid")
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantCount)
			assert.Len(t, all, tt.wantCount)
		})
	}
}

func TestService_Import_cleansAndGeneratesTokens(t *testing.T) {
	app := testutil.NewApp(t)

	got, err := app.ParticipantSvc.Import(context.Background(), []participant.NewParticipant{
		{Nickname: " Alice ", Email: "ALICE@test.ee", PreferredLang: "Estonian"},
		{Nickname: "bob"},
	})
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Alice", got[0].Nickname)
	assert.Equal(t, "alice@test.ee", got[0].Email)
	assert.Equal(t, "estonian", got[0].PreferredLang)
	assert.Len(t, got[0].AccessToken, 32)
	assert.NotEqual(t, got[0].AccessToken, got[1].AccessToken)
	assert.Nil(t, got[0].StartTimestamp)
	assert.Nil(t, got[0].Day2Timestamp)
}

func TestService_GetByToken(t *testing.T) {
	app := testutil.NewApp(t)
	p := testutil.CreateParticipant(t, app.ParticipantRepo, "alice", "tok-alice")

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "empty", token: "  ", wantErr: participant.ErrNotFound},
		{name: "unknown", token: "lol", wantErr: participant.ErrNotFound},
		{name: "found", token: " tok-alice "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := app.ParticipantSvc.GetByToken(context.Background(), tt.token)
			if err != tt.wantErr {
				t.Fatalf("GetByToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				assert.Equal(t, p.ID, got.ID)
			}
		})
	}
}

func TestService_GetOrStart_countsStartsAtStoragePrecision(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)
	p := testutil.CreateParticipant(t, app.ParticipantRepo, "alice", "tok-alice")

	now := time.Date(2026, 3, 14, 9, 0, 0, 123456789, time.UTC) // stored as .123457
	testutil.FreezeTime(t, now)

	sess, err := app.ParticipantSvc.GetOrStart(ctx, p, core.TrackDay1)
	require.NoError(t, err)
	assert.WithinDuration(t, now, sess.Start, time.Microsecond)
	assert.Equal(t, 1.0, promtest.ToFloat64(app.Metrics.SessionStarts.WithLabelValues(core.TrackDay1)))

	_, err = app.ParticipantSvc.GetOrStart(ctx, p, core.TrackDay1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(app.Metrics.SessionStarts.WithLabelValues(core.TrackDay1)))
}

func TestService_GetOrStart(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)
	p := testutil.CreateParticipant(t, app.ParticipantRepo, "alice", "tok-alice")

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	testutil.FreezeTime(t, start)

	sess, err := app.ParticipantSvc.GetOrStart(ctx, p, core.TrackDay1)
	require.NoError(t, err)
	assert.Equal(t, start, sess.Start)
	assert.Equal(t, start.Add(4*time.Hour), sess.End)
	assert.EqualValues(t, 4*60*60, sess.RemainingSeconds)
	assert.False(t, sess.IsOver())

	// a later visit with a stale participant keeps the first start
	testutil.FreezeTime(t, start.Add(time.Hour))
	sess, err = app.ParticipantSvc.GetOrStart(ctx, p, core.TrackDay1)
	require.NoError(t, err)
	assert.Equal(t, start, sess.Start)
	assert.EqualValues(t, 3*60*60, sess.RemainingSeconds)

	// and so does one with the refreshed participant
	p, err = app.ParticipantSvc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, p.StartTimestamp)
	assert.Equal(t, start, *p.StartTimestamp)
	assert.Nil(t, p.Day2Timestamp, "tracks latch independently")

	sess, err = app.ParticipantSvc.GetOrStart(ctx, p, core.TrackDay1)
	require.NoError(t, err)
	assert.Equal(t, start, sess.Start)

	// the exam is over after the track duration
	testutil.FreezeTime(t, start.Add(4*time.Hour+time.Second))
	sess, err = app.ParticipantSvc.GetOrStart(ctx, p, core.TrackDay1)
	require.NoError(t, err)
	assert.True(t, sess.IsOver())
	assert.EqualValues(t, -1, sess.RemainingSeconds)

	assert.Equal(t, 1.0, promtest.ToFloat64(app.Metrics.SessionStarts.WithLabelValues(core.TrackDay1)))

	// day2 has its own latch and duration
	day2 := start.Add(24 * time.Hour)
	testutil.FreezeTime(t, day2)
	sess, err = app.ParticipantSvc.GetOrStart(ctx, p, core.TrackDay2)
	require.NoError(t, err)
	assert.Equal(t, day2, sess.Start)
	assert.Equal(t, day2.Add(5*time.Hour), sess.End)

	_, err = app.ParticipantSvc.GetOrStart(ctx, p, "day3")
	assert.True(t, core.IsValidation(err))
}

func TestService_GetOrStart_dryRun(t *testing.T) {
	ctx := context.Background()
	conf := testutil.NewConfig()
	conf.Exam.DryRun = true
	app := testutil.NewApp(t, conf)
	p := testutil.CreateParticipant(t, app.ParticipantRepo, "alice", "tok-alice")

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		testutil.FreezeTime(t, now)
		sess, err := app.ParticipantSvc.GetOrStart(ctx, p, core.TrackDay1)
		require.NoError(t, err)
		assert.Equal(t, now, sess.Start, "dry runs always start now")
		now = now.Add(time.Hour)
	}

	p, err := app.ParticipantSvc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, p.StartTimestamp, "dry runs are never stored")
}

func TestService_AccessLinks(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)

	_, err := app.ParticipantSvc.Import(ctx, []participant.NewParticipant{
		{Nickname: "alice", Email: "alice@test.ee"},
		{Nickname: "bob"},
		{Nickname: "carol", Email: "carol@test.ee"},
	})
	require.NoError(t, err)
	participants, err := app.ParticipantSvc.QueryAll(ctx)
	require.NoError(t, err)

	links, err := app.ParticipantSvc.ExportAccessLinks(ctx)
	require.NoError(t, err)
	require.Len(t, links, 3)
	for i, l := range links {
		assert.Equal(t, participants[i].Nickname, l.Nickname)
		assert.Equal(t, "http://exam.test/user/"+participants[i].AccessToken, l.URL)
	}

	res, err := app.ParticipantSvc.SendAccessLinks(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.SendResult{Sent: 2}, res, "participants without email are skipped")

	msgs := app.Mail.SentMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "alice@test.ee", msgs[0].To[0].Address)
	assert.Contains(t, msgs[0].TextContent, links[0].URL)
	assert.Contains(t, msgs[0].HTMLContent, links[0].URL)
	assert.Equal(t, "carol@test.ee", msgs[1].To[0].Address)
}
