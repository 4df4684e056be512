package metrics

import "time"

// EngineRecorder receives per-tick engine observations.
type EngineRecorder interface {
	ObserveTick(at time.Time, messages int)
	IncCheckRuns()
	IncCheckFailures()
	IncSourceFailures()
	IncActionFailures()
	AddDispatched(n int)
	AddExpired(n int)
	ObserveFailingChecks(n int)
}

type NoopEngineRecorder struct{}

func (NoopEngineRecorder) ObserveTick(at time.Time, messages int) {}
func (NoopEngineRecorder) IncCheckRuns()                          {}
func (NoopEngineRecorder) IncCheckFailures()                      {}
func (NoopEngineRecorder) IncSourceFailures()                     {}
func (NoopEngineRecorder) IncActionFailures()                     {}
func (NoopEngineRecorder) AddDispatched(n int)                    {}
func (NoopEngineRecorder) AddExpired(n int)                       {}
func (NoopEngineRecorder) ObserveFailingChecks(n int)             {}
