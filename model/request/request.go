package request

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Status is the lifecycle state of an analysis request as recorded by the
// contract. The contract owns the record; the worker only ever observes a
// pending request become completed or failed, never the reverse.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusCompleted
	StatusFailed
)

// StatusFromString parses the status field of the on-chain request tuple.
// Unknown values map to StatusUnknown, which the worker treats the same as
// any non-pending state.
func StatusFromString(s string) Status {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending
	case "completed":
		return StatusCompleted
	case "failed":
		return StatusFailed
	}
	return StatusUnknown
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	}
	return "unknown"
}

// AnalysisRequest mirrors the contract's request record.
type AnalysisRequest struct {
	ID             *big.Int
	Requester      common.Address
	User1          common.Address
	User2          common.Address
	Status         Status
	Result         string
	RequestTime    uint64
	CompletionTime uint64
}
