package core

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanString(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		lower bool
		want  string
	}{
		{name: "empty", s: "", want: ""},
		{name: "spaces only", s: " \t\n ", want: ""},
		{name: "trim", s: "  Ülesanne \n", want: "Ülesanne"},
		{name: "trim and lower", s: " French ", lower: true, want: "french"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanString(tt.s, tt.lower))
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{}, splitList(""))
	assert.Equal(t, []string{"estonian", "latvian"}, splitList(" Estonian, ,LATVIAN ,"))
}

func TestParseProblemRange(t *testing.T) {
	tests := []struct {
		s       string
		want    ProblemRange
		wantErr bool
	}{
		{s: "1-99", want: ProblemRange{First: 1, Last: 99}},
		{s: " 100 - 199 ", want: ProblemRange{First: 100, Last: 199}},
		{s: "7-7", want: ProblemRange{First: 7, Last: 7}},
		{s: "", wantErr: true},
		{s: "100", wantErr: true},
		{s: "0-10", wantErr: true},
		{s: "20-10", wantErr: true},
		{s: "a-b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.s, func(t *testing.T) {
			got, err := ParseProblemRange(tt.s)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrack(t *testing.T) {
	track := Track{ID: TrackDay2, FirstProblem: 100, LastProblem: 199}

	for problemID, want := range map[int]bool{99: false, 100: true, 150: true, 199: true, 200: false} {
		assert.Equal(t, want, track.HasProblem(problemID), "problem %d", problemID)
		assert.Equal(t, want, track.Problems().Contains(problemID), "problem %d", problemID)
	}

	ec := ExamConfig{Tracks: []Track{{ID: TrackDay1}, track}}
	assert.Equal(t, []string{TrackDay1, TrackDay2}, ec.TrackIDs())

	got, ok := ec.Track(TrackDay2)
	require.True(t, ok)
	assert.Equal(t, track, got)

	_, ok = ec.Track("day3")
	assert.False(t, ok)
}

func setenv(t *testing.T, kv map[string]string) {
	for k, v := range kv {
		orig, had := os.LookupEnv(k)
		require.NoError(t, os.Setenv(k, v))
		k := k
		t.Cleanup(func() {
			if had {
				_ = os.Setenv(k, orig)
			} else {
				_ = os.Unsetenv(k)
			}
		})
	}
}

func TestNewConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setenv(t, map[string]string{"ENV": "test"})

		conf := NewConfig()
		assert.Equal(t, "TEST", conf.Env)
		assert.True(t, conf.TestMode)
		assert.True(t, conf.Debug)
		assert.Equal(t, "Olympiad", conf.AppName)
		assert.Equal(t, "noreply@localhost", conf.DefaultFromEmail.Address)

		day1, ok := conf.Exam.Track(TrackDay1)
		require.True(t, ok)
		assert.Equal(t, 4*time.Hour, day1.Duration)
		assert.Equal(t, ProblemRange{First: 1, Last: 99}, day1.Problems())

		assert.Equal(t, []string{"estonian"}, conf.Exam.AlwaysReviewLanguages)
		assert.Equal(t, 7, conf.Exam.MaxScore)
		assert.Equal(t, 2, conf.Exam.DisagreementThreshold)
		assert.True(t, conf.Exam.RehearsalCutoff.IsZero())
		assert.False(t, conf.Exam.DryRun)
	})

	t.Run("from env", func(t *testing.T) {
		setenv(t, map[string]string{
			"ENV":                           "qa",
			"QA_FRONTENDBASEURL":            "https://exam.example.org/",
			"QA_EXAM_DAY2DURATION":          "90m",
			"QA_EXAM_DAY2PROBLEMS":          "200-249",
			"QA_EXAM_DRYRUN":                "true",
			"QA_EXAM_REHEARSALCUTOFF":       "2026-07-01T10:00:00+03:00",
			"QA_EXAM_REHEARSALPASSCODE":     "rehearse",
			"QA_EXAM_ALWAYSREVIEWLANGUAGES": " Estonian,Latvian ",
			"QA_EXAM_DISAGREEMENTTHRESHOLD": "3",
			"QA_STORAGE_STATICURL":          "https://exam.example.org/static/solutions/",
		})

		conf := NewConfig()
		assert.Equal(t, "QA", conf.Env)
		assert.False(t, conf.Debug)
		assert.Equal(t, "https://exam.example.org", conf.FrontendBaseURL)
		assert.Equal(t, "https://exam.example.org/static/solutions", conf.Storage.StaticURL)

		day2, ok := conf.Exam.Track(TrackDay2)
		require.True(t, ok)
		assert.Equal(t, 90*time.Minute, day2.Duration)
		assert.Equal(t, ProblemRange{First: 200, Last: 249}, day2.Problems())
		day1, _ := conf.Exam.Track(TrackDay1)
		assert.Equal(t, ProblemRange{First: 1, Last: 99}, day1.Problems())

		assert.True(t, conf.Exam.DryRun)
		assert.Equal(t, time.Date(2026, 7, 1, 7, 0, 0, 0, time.UTC), conf.Exam.RehearsalCutoff)
		assert.Equal(t, "rehearse", conf.Exam.RehearsalPasscode)
		assert.Equal(t, []string{"estonian", "latvian"}, conf.Exam.AlwaysReviewLanguages)
		assert.Equal(t, 3, conf.Exam.DisagreementThreshold)
		assert.NotContains(t, conf.String(), conf.SecretKey)
	})
}
