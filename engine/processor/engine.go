// Package processor drives the request lifecycle: it polls the contract for
// pending analysis requests, runs the similarity engine over each new id and
// submits exactly one terminal transition (completed or failed) per request.
package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/worldtree/genetics-worker/abi"
	"github.com/worldtree/genetics-worker/model/genetics"
	"github.com/worldtree/genetics-worker/model/request"
	"github.com/worldtree/genetics-worker/module"
	"github.com/worldtree/genetics-worker/rofl"
)

const (
	// retryJitterPercent is the percentage jitter applied to every backoff
	// interval.
	retryJitterPercent = 25

	// maxFailureReasonLen bounds the reason string written on-chain by
	// markAnalysisFailed.
	maxFailureReasonLen = 256
)

// Contract is the view/transaction surface the processor drives.
type Contract interface {
	PendingRequests(ctx context.Context) ([]*big.Int, error)
	AnalysisRequest(ctx context.Context, id *big.Int) (*request.AnalysisRequest, error)
	SNPDataForAnalysis(ctx context.Context, id *big.Int) (string, string, error)
	SubmitAnalysisResult(ctx context.Context, id *big.Int, resultJSON string, confidence uint64, relationship string) (string, error)
	MarkAnalysisFailed(ctx context.Context, id *big.Int, reason string) (string, error)
}

// Analyzer computes the pairwise result from two raw genotype dumps.
type Analyzer interface {
	Analyze(user1Raw string, user2Raw string) (*genetics.Result, error)
}

// Config tunes the polling loop and the per-request state machine.
type Config struct {
	// PollInterval is the tick period of the pending-set poll.
	PollInterval time.Duration
	// PollBackoffMax caps the exponential backoff applied while the pending
	// set cannot be fetched.
	PollBackoffMax time.Duration
	// RetryMax is the number of retries for a failing host operation within
	// one request.
	RetryMax int
	// RetryBackoffBase is the initial backoff between such retries.
	RetryBackoffBase time.Duration
	// CallTimeout bounds one host call.
	CallTimeout time.Duration
	// RequestDeadline bounds the full fetch+analyze+submit of one request.
	RequestDeadline time.Duration
	// MaxParallel is the number of requests analyzed concurrently.
	MaxParallel int
	// ShutdownGrace is how long shutdown waits for in-flight requests.
	ShutdownGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:     30 * time.Second,
		PollBackoffMax:   5 * time.Minute,
		RetryMax:         3,
		RetryBackoffBase: time.Second,
		CallTimeout:      30 * time.Second,
		RequestDeadline:  2 * time.Minute,
		MaxParallel:      2,
		ShutdownGrace:    time.Minute,
	}
}

// Engine is the polling worker. One Engine owns the in-flight set and the
// analysis worker pool; everything else it touches is safe for concurrent
// use by construction.
type Engine struct {
	log      zerolog.Logger
	metrics  module.WorkerMetrics
	contract Contract
	analyzer Analyzer
	tips     TipsProvider
	cfg      Config

	pool     *workerpool.WorkerPool
	inFlight *inFlightSet
	results  *ResultCache
	poke     chan struct{}
}

func New(
	log zerolog.Logger,
	metrics module.WorkerMetrics,
	contract Contract,
	analyzer Analyzer,
	tips TipsProvider,
	cfg Config,
) *Engine {
	return &Engine{
		log:      log.With().Str("component", "processor").Logger(),
		metrics:  metrics,
		contract: contract,
		analyzer: analyzer,
		tips:     tips,
		cfg:      cfg,
		pool:     workerpool.New(cfg.MaxParallel),
		inFlight: newInFlightSet(),
		results:  NewResultCache(),
		poke:     make(chan struct{}, 1),
	}
}

func (e *Engine) Name() string {
	return "processor"
}

// Results exposes the in-memory cache of completed analyses.
func (e *Engine) Results() *ResultCache {
	return e.results
}

// Poke triggers an immediate poll instead of waiting for the next tick.
// Pokes collapse: poking an already-poked engine is a no-op.
func (e *Engine) Poke() {
	select {
	case e.poke <- struct{}{}:
	default:
	}
}

// Run is the poll loop: fetch the pending set, dispatch new ids, sleep
// until the next tick. On shutdown it stops accepting ids, waits up to
// ShutdownGrace for dispatched requests to unwind and returns nil.
func (e *Engine) Run(ctx context.Context, ready func()) error {
	ready()

	timer := time.NewTimer(0) // first poll immediately
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			e.drain()
			return nil
		case <-timer.C:
		case <-e.poke:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		if err := e.pollOnce(ctx); err != nil {
			// only a cancelled context reaches here; the fetch itself backs
			// off indefinitely
			e.drain()
			return nil
		}

		timer.Reset(e.cfg.PollInterval)
	}
}

// pollOnce fetches the pending set and dispatches every id not already in
// flight to the analysis pool.
func (e *Engine) pollOnce(ctx context.Context) error {
	ids, err := e.fetchPending(ctx)
	if err != nil {
		return err
	}

	dispatched := 0
	for _, id := range ids {
		if !e.inFlight.Add(id) {
			continue
		}
		dispatched++
		e.metrics.RequestStarted()
		id := id
		e.pool.Submit(func() {
			defer e.metrics.RequestFinished()
			e.processRequest(ctx, id)
		})
	}
	if len(ids) > 0 {
		e.log.Info().
			Int("pending", len(ids)).
			Int("dispatched", dispatched).
			Int("in_flight", e.inFlight.Size()).
			Msg("poll complete")
	}
	return nil
}

// fetchPending reads the pending set, backing off indefinitely while the
// host is unreachable. Only context cancellation makes it return an error.
func (e *Engine) fetchPending(ctx context.Context) ([]*big.Int, error) {
	backoff := retry.NewExponential(e.cfg.PollInterval)
	backoff = retry.WithCappedDuration(e.cfg.PollBackoffMax, backoff)
	backoff = retry.WithJitterPercent(retryJitterPercent, backoff)

	var ids []*big.Int
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
		pending, err := e.contract.PendingRequests(callCtx)
		if err != nil {
			e.metrics.PollFailure()
			e.log.Warn().Err(err).Msg("could not fetch pending requests, backing off")
			return retry.RetryableError(err)
		}
		ids = pending
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// processRequest runs the per-request state machine:
// pending -> fetching -> analyzing -> submitting -> done. It is executed on
// the analysis pool; ctx is the component context, cancelled on shutdown.
func (e *Engine) processRequest(ctx context.Context, id *big.Int) {
	log := e.log.With().Str("request_id", id.String()).Logger()

	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestDeadline)
	defer cancel()

	// re-read the record: the status gate is authoritative and the pending
	// set may be stale by the time this id is scheduled
	var rec *request.AnalysisRequest
	err := e.withRetry(reqCtx, func(callCtx context.Context) error {
		var err error
		rec, err = e.contract.AnalysisRequest(callCtx, id)
		return err
	})
	if err != nil {
		e.handleFetchFailure(ctx, log, id, err)
		return
	}
	if rec.Status != request.StatusPending {
		log.Info().Str("status", rec.Status.String()).Msg("request no longer pending, skipping")
		return
	}
	if rec.Result != "" {
		log.Warn().Msg("pending request already carries a result, skipping")
		return
	}

	var user1Data, user2Data string
	err = e.withRetry(reqCtx, func(callCtx context.Context) error {
		var err error
		user1Data, user2Data, err = e.contract.SNPDataForAnalysis(callCtx, id)
		return err
	})
	if err != nil {
		e.handleFetchFailure(ctx, log, id, err)
		return
	}

	if reqCtx.Err() != nil {
		log.Debug().Msg("request cancelled before analysis")
		return
	}
	result, err := e.analyzer.Analyze(user1Data, user2Data)
	if err != nil {
		if genetics.IsTerminalAnalysisError(err) {
			log.Info().Err(err).Msg("analysis rejected input")
		} else {
			log.Error().Err(err).Msg("analysis failed unexpectedly")
		}
		e.markFailed(ctx, log, id, err.Error())
		return
	}
	// a shutdown observed during analysis must not lead to a submission
	if reqCtx.Err() != nil {
		log.Debug().Msg("request cancelled during analysis, result discarded")
		return
	}

	if e.tips != nil {
		result.Recommendations = append(result.Recommendations, e.tips.Tips(reqCtx, result)...)
	}

	e.submit(ctx, reqCtx, log, id, result)
}

// submit serializes the result and drives the submitting state, including
// the rejection-as-success path.
func (e *Engine) submit(ctx context.Context, reqCtx context.Context, log zerolog.Logger, id *big.Int, result *genetics.Result) {
	payload, err := json.Marshal(result)
	if err != nil {
		log.Error().Err(err).Msg("could not serialize result, skipping request")
		return
	}
	confidence := uint64(math.Round(result.Confidence * 100))

	err = e.withRetry(reqCtx, func(callCtx context.Context) error {
		_, err := e.contract.SubmitAnalysisResult(callCtx, id, string(payload), confidence, result.Relationship)
		return err
	})
	switch {
	case err == nil:
		e.results.Put(id, result)
		e.metrics.RequestCompleted()
		log.Info().
			Str("relationship", result.Relationship).
			Uint64("confidence_pct", confidence).
			Int("common_snps", result.NCommonSNPs).
			Msg("analysis result submitted")
	case rofl.IsStateRejection(err):
		// some submission already landed; ours is redundant, not failed
		e.results.Put(id, result)
		e.metrics.StateRejection()
		log.Info().Msg("submission rejected by status gate, request already processed")
	case ctx.Err() != nil:
		log.Debug().Msg("shutdown during submission")
	default:
		log.Warn().Err(err).Msg("could not submit result")
		e.markFailed(ctx, log, id, fmt.Sprintf("submit failed: %v", err))
	}
}

// handleFetchFailure maps a failed record/data fetch to its terminal action.
func (e *Engine) handleFetchFailure(ctx context.Context, log zerolog.Logger, id *big.Int, err error) {
	switch {
	case ctx.Err() != nil:
		log.Debug().Msg("shutdown during fetch")
	case abi.IsEncodeError(err):
		// bug-class: nothing on-chain is wrong with this request
		log.Error().Err(err).Msg("encode error, skipping request")
	case abi.IsDecodeError(err):
		// the host answered, so the id is live; report the defect on-chain
		log.Error().Err(err).Msg("undecodable response")
		e.markFailed(ctx, log, id, fmt.Sprintf("decode error: %v", err))
	default:
		log.Warn().Err(err).Msg("could not fetch request data")
		e.markFailed(ctx, log, id, fmt.Sprintf("fetch failed: %v", err))
	}
}

// markFailed reports a terminal failure on-chain. If even that cannot be
// delivered, the id is released from the in-flight set so a later poll
// starts over.
func (e *Engine) markFailed(ctx context.Context, log zerolog.Logger, id *big.Int, reason string) {
	if ctx.Err() != nil {
		return
	}
	reason = truncateReason(reason)

	markCtx, cancel := context.WithTimeout(ctx, e.cfg.RequestDeadline)
	defer cancel()
	err := e.withRetry(markCtx, func(callCtx context.Context) error {
		_, err := e.contract.MarkAnalysisFailed(callCtx, id, reason)
		return err
	})
	switch {
	case err == nil:
		e.metrics.RequestFailed()
		log.Info().Str("reason", reason).Msg("request marked failed")
	case rofl.IsStateRejection(err):
		e.metrics.StateRejection()
		log.Info().Msg("mark-failed rejected by status gate, request already processed")
	default:
		e.inFlight.Remove(id)
		log.Warn().Err(err).Msg("could not mark request failed, releasing for a later poll")
	}
}

// withRetry runs one host operation with the per-request retry budget.
// Transport failures, timeouts and host errors are retried; state
// rejections, codec errors and context cancellation are returned as is.
func (e *Engine) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.NewExponential(e.cfg.RetryBackoffBase)
	backoff = retry.WithMaxRetries(uint64(e.cfg.RetryMax), backoff)
	backoff = retry.WithJitterPercent(retryJitterPercent, backoff)

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.cfg.CallTimeout)
		defer cancel()
		err := op(callCtx)
		if err == nil {
			return nil
		}
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func retryable(err error) bool {
	if errors.Is(err, rofl.ErrHostUnavailable) || errors.Is(err, rofl.ErrTimeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return rofl.IsHostError(err) && !rofl.IsStateRejection(err)
}

// drain stops accepting work and waits for dispatched requests, bounded by
// the shutdown grace period. Requests observe the cancelled context at their
// next suspension point and unwind without submitting.
func (e *Engine) drain() {
	stopped := make(chan struct{})
	go func() {
		e.pool.StopWait()
		close(stopped)
	}()
	select {
	case <-stopped:
		e.log.Info().Msg("all in-flight requests drained")
	case <-time.After(e.cfg.ShutdownGrace):
		e.log.Warn().
			Int("in_flight", e.inFlight.Size()).
			Msg("shutdown grace period lapsed with requests still in flight")
	}
}

func truncateReason(reason string) string {
	if len(reason) <= maxFailureReasonLen {
		return reason
	}
	return reason[:maxFailureReasonLen-3] + "..."
}
