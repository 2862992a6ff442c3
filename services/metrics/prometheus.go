package metricsvc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/trezcool/examhall/core"
)

type Metrics struct {
	SessionStarts *prometheus.CounterVec
	Submissions   *prometheus.CounterVec
	Scores        prometheus.Counter
	Resolutions   prometheus.Counter
}

var _ core.Metrics = (*Metrics)(nil)

// New registers the exam metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SessionStarts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_session_starts_total",
			Help: "Number of participants who started an exam track",
		}, []string{"track"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "exam_submissions_total",
			Help: "Number of submission attempts",
		}, []string{"kind", "outcome"}),
		Scores: factory.NewCounter(prometheus.CounterOpts{
			Name: "grading_scores_total",
			Help: "Number of scores recorded by graders",
		}),
		Resolutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "grading_resolutions_total",
			Help: "Number of resolved scores written",
		}),
	}
}

func (m *Metrics) IncSessionStarts(track string) {
	m.SessionStarts.WithLabelValues(track).Inc()
}

func (m *Metrics) IncSubmissions(kind, outcome string) {
	m.Submissions.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncScores() {
	m.Scores.Inc()
}

func (m *Metrics) IncResolutions() {
	m.Resolutions.Inc()
}
