package processor

import (
	"context"

	"github.com/worldtree/genetics-worker/model/genetics"
)

// TipsProvider contributes optional guidance strings appended to a result's
// recommendations before submission. Implementations must be non-critical:
// a provider returning nothing (or being slow until its context lapses) must
// never fail an analysis.
type TipsProvider interface {
	Tips(ctx context.Context, result *genetics.Result) []string
}

// NoopTips is the default provider: no extra guidance.
type NoopTips struct{}

func (NoopTips) Tips(_ context.Context, _ *genetics.Result) []string {
	return nil
}
