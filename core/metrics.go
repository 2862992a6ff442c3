package core

// Metrics records domain events for monitoring.
type Metrics interface {
	IncSessionStarts(track string)
	IncSubmissions(kind, outcome string)
	IncScores()
	IncResolutions()
}

// NopMetrics discards everything.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) IncSessionStarts(string)       {}
func (NopMetrics) IncSubmissions(string, string) {}
func (NopMetrics) IncScores()                    {}
func (NopMetrics) IncResolutions()               {}
