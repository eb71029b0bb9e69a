package processor_test

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldtree/genetics-worker/analysis"
	"github.com/worldtree/genetics-worker/engine/processor"
	"github.com/worldtree/genetics-worker/model/genetics"
	"github.com/worldtree/genetics-worker/model/request"
	"github.com/worldtree/genetics-worker/module/lifecycle"
	"github.com/worldtree/genetics-worker/module/metrics"
	"github.com/worldtree/genetics-worker/rofl"
	"github.com/worldtree/genetics-worker/utils/unittest"
)

type submitCall struct {
	id           *big.Int
	resultJSON   string
	confidence   uint64
	relationship string
}

type markCall struct {
	id     *big.Int
	reason string
}

// fakeContract scripts every contract operation and records the writes.
type fakeContract struct {
	mu sync.Mutex

	pending    func() []*big.Int
	record     func(id *big.Int) (*request.AnalysisRequest, error)
	snpData    func(id *big.Int) (string, string, error)
	submit     func() error
	markFailed func() error

	recordCalls int
	snpCalls    int
	submitCalls []submitCall
	markCalls   []markCall
}

func (f *fakeContract) PendingRequests(_ context.Context) ([]*big.Int, error) {
	return f.pending(), nil
}

func (f *fakeContract) AnalysisRequest(_ context.Context, id *big.Int) (*request.AnalysisRequest, error) {
	f.mu.Lock()
	f.recordCalls++
	f.mu.Unlock()
	if f.record != nil {
		return f.record(id)
	}
	return &request.AnalysisRequest{ID: id, Status: request.StatusPending}, nil
}

func (f *fakeContract) SNPDataForAnalysis(_ context.Context, id *big.Int) (string, string, error) {
	f.mu.Lock()
	f.snpCalls++
	f.mu.Unlock()
	return f.snpData(id)
}

func (f *fakeContract) SubmitAnalysisResult(_ context.Context, id *big.Int, resultJSON string, confidence uint64, relationship string) (string, error) {
	var err error
	if f.submit != nil {
		err = f.submit()
	}
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls = append(f.submitCalls, submitCall{id, resultJSON, confidence, relationship})
	return "0xhash", nil
}

func (f *fakeContract) MarkAnalysisFailed(_ context.Context, id *big.Int, reason string) (string, error) {
	var err error
	if f.markFailed != nil {
		err = f.markFailed()
	}
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls = append(f.markCalls, markCall{id, reason})
	return "0xhash", nil
}

func (f *fakeContract) submitted() []submitCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]submitCall(nil), f.submitCalls...)
}

func (f *fakeContract) marked() []markCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]markCall(nil), f.markCalls...)
}

func (f *fakeContract) snpCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snpCalls
}

func (f *fakeContract) recordCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recordCalls
}

func fastConfig() processor.Config {
	cfg := processor.DefaultConfig()
	cfg.PollInterval = 20 * time.Millisecond
	cfg.PollBackoffMax = 100 * time.Millisecond
	cfg.RetryMax = 1
	cfg.RetryBackoffBase = 5 * time.Millisecond
	cfg.CallTimeout = 500 * time.Millisecond
	cfg.RequestDeadline = 2 * time.Second
	cfg.ShutdownGrace = time.Second
	return cfg
}

func startEngine(t *testing.T, fc *fakeContract, analyzer processor.Analyzer) (*processor.Engine, *lifecycle.Group, context.CancelFunc) {
	if analyzer == nil {
		analyzer = analysis.NewEngine(unittest.Logger(), analysis.DefaultConfig())
	}
	engine := processor.New(
		unittest.Logger(),
		metrics.NewNoopCollector(),
		fc,
		analyzer,
		processor.NoopTips{},
		fastConfig(),
	)

	ctx, cancel := context.WithCancel(context.Background())
	group := lifecycle.NewGroup(unittest.Logger(), engine)
	group.Start(ctx)
	unittest.RequireCloseBefore(t, group.Ready(), time.Second, "engine ready")
	t.Cleanup(func() {
		cancel()
		unittest.RequireCloseBefore(t, group.Done(), 5*time.Second, "engine done")
		require.NoError(t, group.Err())
	})
	return engine, group, cancel
}

func singlePending(id int64) func() []*big.Int {
	return func() []*big.Int { return []*big.Int{big.NewInt(id)} }
}

// TestProcess_HappyPath: one pending request with identical datasets is
// analyzed and submitted exactly once.
func TestProcess_HappyPath(t *testing.T) {
	data := unittest.UniformSNPLines(1000, "AG")
	fc := &fakeContract{
		pending: singlePending(1),
		snpData: func(*big.Int) (string, string, error) { return data, data, nil },
	}
	engine, _, _ := startEngine(t, fc, nil)

	require.Eventually(t, func() bool { return len(fc.submitted()) == 1 }, 2*time.Second, 10*time.Millisecond)

	call := fc.submitted()[0]
	assert.Zero(t, call.id.Cmp(big.NewInt(1)))
	assert.Equal(t, "identical/twin", call.relationship)
	assert.EqualValues(t, 99, call.confidence)
	assert.Contains(t, call.resultJSON, `"status":"success"`)
	assert.Contains(t, call.resultJSON, `"n_common_snps":1000`)
	assert.Empty(t, fc.marked())

	// the id keeps being reported pending, but must not be resubmitted
	time.Sleep(150 * time.Millisecond)
	assert.Len(t, fc.submitted(), 1, "at most one successful submission per id")

	result, ok := engine.Results().Get("1")
	require.True(t, ok)
	assert.Equal(t, "identical/twin", result.Relationship)
}

// TestProcess_StateRejectionIsSuccess: a "not pending" rejection on submit
// terminates the request without a markAnalysisFailed.
func TestProcess_StateRejectionIsSuccess(t *testing.T) {
	data := unittest.UniformSNPLines(1000, "CT")
	fc := &fakeContract{
		pending: singlePending(5),
		snpData: func(*big.Int) (string, string, error) { return data, data, nil },
		submit: func() error {
			return &rofl.HostError{Code: -32000, Message: "Request not pending"}
		},
	}
	engine, _, _ := startEngine(t, fc, nil)

	require.Eventually(t, func() bool {
		_, ok := engine.Results().Get("5")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, fc.marked(), "state rejection must not be reported as failure")
	assert.Empty(t, fc.submitted(), "the rejected submission must not be retried")
}

// TestProcess_InsufficientData: an undersized dataset is reported on-chain
// with the retained record count.
func TestProcess_InsufficientData(t *testing.T) {
	fc := &fakeContract{
		pending: singlePending(2),
		snpData: func(*big.Int) (string, string, error) {
			return unittest.UniformSNPLines(40, "AA"), unittest.UniformSNPLines(1000, "AA"), nil
		},
	}
	startEngine(t, fc, nil)

	require.Eventually(t, func() bool { return len(fc.marked()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "insufficient data: 40 < 100", fc.marked()[0].reason)
	assert.Empty(t, fc.submitted())
}

// TestProcess_InsufficientOverlap: disjoint rsID sets fail with the overlap
// count.
func TestProcess_InsufficientOverlap(t *testing.T) {
	var user2 strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&user2, "rsB%d %d 1 AA\n", i, 100000+i)
	}
	fc := &fakeContract{
		pending: singlePending(3),
		snpData: func(*big.Int) (string, string, error) {
			return unittest.UniformSNPLines(150, "AA"), user2.String(), nil
		},
	}
	startEngine(t, fc, nil)

	require.Eventually(t, func() bool { return len(fc.marked()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "insufficient overlap: 0", fc.marked()[0].reason)
}

// TestProcess_SkipsNonPending: an id listed as pending but whose record is
// already terminal is never fetched or analyzed again.
func TestProcess_SkipsNonPending(t *testing.T) {
	fc := &fakeContract{
		pending: singlePending(7),
		record: func(id *big.Int) (*request.AnalysisRequest, error) {
			return &request.AnalysisRequest{ID: id, Status: request.StatusCompleted}, nil
		},
		snpData: func(*big.Int) (string, string, error) { return "", "", nil },
	}
	startEngine(t, fc, nil)

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, fc.snpCallCount())
	assert.Empty(t, fc.submitted())
	assert.Empty(t, fc.marked())
	assert.Equal(t, 1, fc.recordCallCount(), "a non-pending id is checked once and retired")
}

// TestProcess_PendingWithResultSkipped: the contract-bug surface (pending
// status with a non-empty result) is skipped with a warning, not processed.
func TestProcess_PendingWithResultSkipped(t *testing.T) {
	fc := &fakeContract{
		pending: singlePending(8),
		record: func(id *big.Int) (*request.AnalysisRequest, error) {
			return &request.AnalysisRequest{ID: id, Status: request.StatusPending, Result: "{}"}, nil
		},
		snpData: func(*big.Int) (string, string, error) { return "", "", nil },
	}
	startEngine(t, fc, nil)

	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, fc.snpCallCount())
	assert.Empty(t, fc.submitted())
	assert.Empty(t, fc.marked())
}

// TestProcess_FetchFailureMarksFailed: persistent host errors on the data
// fetch exhaust the retry budget and mark the request failed.
func TestProcess_FetchFailureMarksFailed(t *testing.T) {
	fc := &fakeContract{
		pending: singlePending(4),
		snpData: func(*big.Int) (string, string, error) {
			return "", "", &rofl.HostError{Code: 1, Message: "fetch exploded"}
		},
	}
	startEngine(t, fc, nil)

	require.Eventually(t, func() bool { return len(fc.marked()) == 1 }, 2*time.Second, 10*time.Millisecond)
	reason := fc.marked()[0].reason
	assert.True(t, strings.HasPrefix(reason, "fetch failed:"), "reason %q", reason)
	// RetryMax=1 means the initial attempt plus one retry
	assert.Equal(t, 2, fc.snpCallCount())
}

// TestProcess_ReleaseAfterDoubleFailure: when both the data fetch and
// markAnalysisFailed fail, the id is released and retried by a later poll.
func TestProcess_ReleaseAfterDoubleFailure(t *testing.T) {
	fc := &fakeContract{
		pending: singlePending(6),
		snpData: func(*big.Int) (string, string, error) {
			return "", "", &rofl.HostError{Code: 1, Message: "fetch exploded"}
		},
		markFailed: func() error {
			return &rofl.HostError{Code: 2, Message: "mark exploded"}
		},
	}
	startEngine(t, fc, nil)

	// at least two full fetch rounds prove the id was released and re-polled
	require.Eventually(t, func() bool { return fc.snpCallCount() >= 4 }, 3*time.Second, 10*time.Millisecond)
	assert.Empty(t, fc.marked())
	assert.Empty(t, fc.submitted())
}

// blockingAnalyzer parks in Analyze until released, so tests can cancel the
// engine mid-analysis.
type blockingAnalyzer struct {
	startedOnce sync.Once
	started     chan struct{}
	release     chan struct{}
}

func newBlockingAnalyzer() *blockingAnalyzer {
	return &blockingAnalyzer{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (b *blockingAnalyzer) Analyze(string, string) (*genetics.Result, error) {
	b.startedOnce.Do(func() { close(b.started) })
	<-b.release
	return &genetics.Result{
		Status:       "success",
		Relationship: "unrelated",
		Confidence:   0.5,
	}, nil
}

// TestProcess_ShutdownDuringAnalysis: a shutdown delivered while analyzing
// must prevent any subsequent submission for that id.
func TestProcess_ShutdownDuringAnalysis(t *testing.T) {
	data := unittest.UniformSNPLines(1000, "AG")
	analyzer := newBlockingAnalyzer()
	fc := &fakeContract{
		pending: singlePending(9),
		snpData: func(*big.Int) (string, string, error) { return data, data, nil },
	}
	_, group, cancel := startEngine(t, fc, analyzer)

	unittest.RequireCloseBefore(t, analyzer.started, 2*time.Second, "analysis started")
	cancel()
	close(analyzer.release)

	unittest.RequireCloseBefore(t, group.Done(), 5*time.Second, "engine done")
	assert.Empty(t, fc.submitted(), "no submission may follow a shutdown during analysis")
	assert.Empty(t, fc.marked())
}
