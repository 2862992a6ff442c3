package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/examhall/core"
	"github.com/trezcool/examhall/core/grading"
	boiledrepos "github.com/trezcool/examhall/storage/database/sqlboiler"
	sqlxrepos "github.com/trezcool/examhall/storage/database/sqlx"
	"github.com/trezcool/examhall/tests"
)

func TestGradingRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewGradingRepository(db)
	ctx := context.Background()

	pRepo := boiledrepos.NewParticipantRepository(db)
	sRepo := boiledrepos.NewSubmissionRepository(db)
	alice := testutil.CreateParticipant(t, pRepo, "alice", "tok-alice")
	bob := testutil.CreateParticipant(t, pRepo, "bob", "tok-bob")
	s1 := testutil.CreateSubmission(t, sRepo, alice.ID, 1, "English")
	s2 := testutil.CreateSubmission(t, sRepo, bob.ID, 1, "english")
	s3 := testutil.CreateSubmission(t, sRepo, bob.ID, 100, "english")

	now := time.Now()
	testutil.CreateScores(t, repo, s1.ID,
		grading.Score{Grader: "ann", Score: 7, Timestamp: now},
		grading.Score{Grader: "boss", Score: 3, Comment: "partial", Timestamp: now},
	)
	testutil.CreateScores(t, repo, s3.ID, grading.Score{Grader: "ann", Score: -1, Timestamp: now})

	t.Run("candidates", func(t *testing.T) {
		candidates, err := repo.QueryCandidates(ctx, "ENGLISH", 1)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, s1.ID, candidates[0].Submission.ID)
		assert.Equal(t, 2, candidates[0].ScoreCount)
		assert.ElementsMatch(t, []string{"ann", "boss"}, candidates[0].Graders)
		assert.Equal(t, 0, candidates[1].ScoreCount)
		assert.Empty(t, candidates[1].Graders)
	})

	t.Run("score on unknown submission", func(t *testing.T) {
		_, err := repo.CreateScore(ctx, grading.Score{SubmissionID: 999999, Grader: "ann", Score: 1, Timestamp: now})
		assert.Equal(t, grading.ErrNotFound, err)
	})

	t.Run("same grader twice", func(t *testing.T) {
		_, err := repo.CreateScore(ctx, grading.Score{SubmissionID: s1.ID, Grader: "ann", Score: 2, Timestamp: now})
		assert.Equal(t, grading.ErrAlreadyScored, err)
	})

	t.Run("groups", func(t *testing.T) {
		groups, err := repo.QueryGroups(ctx, core.ProblemRange{First: 1, Last: 99})
		require.NoError(t, err)
		require.Len(t, groups, 1, "unscored submissions are left out")
		assert.Equal(t, s1.ID, groups[0].Submission.ID)
		require.Len(t, groups[0].Scores, 2)
		assert.Equal(t, "partial", groups[0].Scores[1].Comment)
		assert.Nil(t, groups[0].Resolved)

		group, err := repo.GetGroup(ctx, s2.ID)
		require.NoError(t, err)
		assert.Empty(t, group.Scores)

		_, err = repo.GetGroup(ctx, 999999)
		assert.Equal(t, grading.ErrNotFound, err)
	})

	t.Run("resolutions", func(t *testing.T) {
		_, err := repo.UpsertResolvedScore(ctx, grading.ResolvedScore{SubmissionID: s1.ID, Score: 5, Grader: "boss", Timestamp: now})
		require.NoError(t, err)
		rs, err := repo.UpsertResolvedScore(ctx, grading.ResolvedScore{SubmissionID: s1.ID, Score: 6, Grader: "ann", Timestamp: now})
		require.NoError(t, err)
		assert.Equal(t, 6, rs.Score)

		_, err = repo.UpsertResolvedScore(ctx, grading.ResolvedScore{SubmissionID: s3.ID, Score: 0, Grader: "ann", Timestamp: now})
		require.NoError(t, err)

		all, err := repo.QueryResolvedScores(ctx, nil)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		day2 := core.ProblemRange{First: 100, Last: 199}
		resolved, err := repo.QueryResolvedScores(ctx, &day2)
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		assert.Equal(t, s3.ID, resolved[0].SubmissionID)

		group, err := repo.GetGroup(ctx, s1.ID)
		require.NoError(t, err)
		require.NotNil(t, group.Resolved)
		assert.Equal(t, "ann", group.Resolved.Grader)
	})
}
