// Package contract adapts the worldtree analysis contract's ABI surface into
// typed Go calls. It is pure composition: call data is built by the abi
// package and dispatched through the host runtime client; return data flows
// back the same way.
package contract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/worldtree/genetics-worker/abi"
	"github.com/worldtree/genetics-worker/model/request"
)

// HostClient is the subset of the host runtime client the adapter needs.
type HostClient interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	SignSubmit(ctx context.Context, to common.Address, data []byte) (string, error)
}

// Worldtree is a typed view over one deployed analysis contract.
type Worldtree struct {
	log     zerolog.Logger
	host    HostClient
	address common.Address
}

func NewWorldtree(log zerolog.Logger, host HostClient, address common.Address) *Worldtree {
	return &Worldtree{
		log:     log.With().Str("component", "contract").Logger(),
		host:    host,
		address: address,
	}
}

// PendingRequests returns the ids of all requests the contract currently
// reports as pending.
func (w *Worldtree) PendingRequests(ctx context.Context) ([]*big.Int, error) {
	values, err := w.view(ctx, abi.SigGetPendingRequests)
	if err != nil {
		return nil, err
	}
	ids, ok := values[0].AsUint256Array()
	if !ok {
		return nil, fmt.Errorf("unexpected return shape for %s", abi.SigGetPendingRequests)
	}
	return ids, nil
}

// AnalysisRequest fetches the full request record for one id.
func (w *Worldtree) AnalysisRequest(ctx context.Context, id *big.Int) (*request.AnalysisRequest, error) {
	values, err := w.view(ctx, abi.SigGetAnalysisRequest, abi.Uint256(id))
	if err != nil {
		return nil, err
	}

	requester, ok1 := values[0].AsAddress()
	user1, ok2 := values[1].AsAddress()
	user2, ok3 := values[2].AsAddress()
	status, ok4 := values[3].AsString()
	result, ok5 := values[4].AsString()
	requestTime, ok6 := values[5].AsUint256()
	completionTime, ok7 := values[6].AsUint256()
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		return nil, fmt.Errorf("unexpected return shape for %s", abi.SigGetAnalysisRequest)
	}

	return &request.AnalysisRequest{
		ID:             new(big.Int).Set(id),
		Requester:      requester,
		User1:          user1,
		User2:          user2,
		Status:         request.StatusFromString(status),
		Result:         result,
		RequestTime:    requestTime.Uint64(),
		CompletionTime: completionTime.Uint64(),
	}, nil
}

// SNPDataForAnalysis fetches both users' raw genotype dumps for a request.
// The contract only answers this call for the TEE identity, which the host
// runtime attaches; from anywhere else it reverts.
func (w *Worldtree) SNPDataForAnalysis(ctx context.Context, id *big.Int) (string, string, error) {
	values, err := w.view(ctx, abi.SigGetSNPDataForAnalysis, abi.Uint256(id))
	if err != nil {
		return "", "", err
	}
	user1Data, ok1 := values[0].AsString()
	user2Data, ok2 := values[1].AsString()
	if !(ok1 && ok2) {
		return "", "", fmt.Errorf("unexpected return shape for %s", abi.SigGetSNPDataForAnalysis)
	}
	return user1Data, user2Data, nil
}

// SubmitAnalysisResult records a completed analysis on-chain. Confidence is
// a percentage in [0,100]. Returns the transaction hash.
func (w *Worldtree) SubmitAnalysisResult(ctx context.Context, id *big.Int, resultJSON string, confidence uint64, relationship string) (string, error) {
	data, err := abi.EncodeCall(abi.SigSubmitAnalysisResult,
		abi.Uint256(id),
		abi.String(resultJSON),
		abi.Uint64(confidence),
		abi.String(relationship),
	)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", abi.SigSubmitAnalysisResult, err)
	}
	return w.host.SignSubmit(ctx, w.address, data)
}

// MarkAnalysisFailed records a failed analysis on-chain with a
// human-readable reason. Returns the transaction hash.
func (w *Worldtree) MarkAnalysisFailed(ctx context.Context, id *big.Int, reason string) (string, error) {
	data, err := abi.EncodeCall(abi.SigMarkAnalysisFailed,
		abi.Uint256(id),
		abi.String(reason),
	)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", abi.SigMarkAnalysisFailed, err)
	}
	return w.host.SignSubmit(ctx, w.address, data)
}

func (w *Worldtree) view(ctx context.Context, signature string, args ...abi.Value) ([]abi.Value, error) {
	data, err := abi.EncodeCall(signature, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", signature, err)
	}
	raw, err := w.host.Call(ctx, w.address, data)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", signature, err)
	}
	values, err := abi.DecodeReturn(signature, raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s return: %w", signature, err)
	}
	return values, nil
}
