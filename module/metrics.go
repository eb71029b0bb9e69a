package module

import "time"

// WorkerMetrics exposes the metric hooks recorded by the request processor
// and the host-runtime client.
type WorkerMetrics interface {
	// RequestCompleted is called after a successful on-chain result submission.
	RequestCompleted()
	// RequestFailed is called after a request is reported failed on-chain.
	RequestFailed()
	// StateRejection is called when the contract status gate rejects a
	// submission, which the worker treats as already processed.
	StateRejection()
	// PollFailure is called when fetching the pending set fails.
	PollFailure()
	// RequestStarted / RequestFinished bracket the processing of one request.
	RequestStarted()
	RequestFinished()
	// HostCall records the duration of one host socket round trip.
	HostCall(method string, duration time.Duration)
}
