package metrics

import "time"

// NoopCollector satisfies the metrics interfaces with no-ops, for tests and
// for running without a metrics registry.
type NoopCollector struct{}

func NewNoopCollector() *NoopCollector { return &NoopCollector{} }

func (nc *NoopCollector) RequestCompleted()                  {}
func (nc *NoopCollector) RequestFailed()                     {}
func (nc *NoopCollector) StateRejection()                    {}
func (nc *NoopCollector) PollFailure()                       {}
func (nc *NoopCollector) RequestStarted()                    {}
func (nc *NoopCollector) RequestFinished()                   {}
func (nc *NoopCollector) HostCall(_ string, _ time.Duration) {}
