package abi

import (
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// The full set of contract functions the worker encodes or decodes.
const (
	SigGetPendingRequests    = "getPendingRequests()"
	SigGetAnalysisRequest    = "getAnalysisRequest(uint256)"
	SigGetSNPDataForAnalysis = "getSNPDataForAnalysis(uint256)"
	SigSubmitAnalysisResult  = "submitAnalysisResult(uint256,string,uint256,string)"
	SigMarkAnalysisFailed    = "markAnalysisFailed(uint256,string)"
)

// returnTypes fixes the shape of each supported function's return tuple.
var returnTypes = map[string][]Kind{
	SigGetPendingRequests: {KindUint256Array},
	SigGetAnalysisRequest: {
		KindAddress, // requester
		KindAddress, // user1
		KindAddress, // user2
		KindString,  // status
		KindString,  // result
		KindUint256, // requestTime
		KindUint256, // completionTime
	},
	SigGetSNPDataForAnalysis: {KindString, KindString},
}

// Selector returns the first four bytes of the Keccak-256 hash of the
// canonical signature string.
func Selector(signature string) [4]byte {
	var sel [4]byte
	copy(sel[:], crypto.Keccak256([]byte(signature)))
	return sel
}

// parseArgKinds extracts the parameter kinds from a canonical signature such
// as "submitAnalysisResult(uint256,string,uint256,string)".
func parseArgKinds(signature string) ([]Kind, error) {
	open := strings.IndexByte(signature, '(')
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return nil, newEncodeErrorf("malformed signature %q", signature)
	}
	inner := signature[open+1 : len(signature)-1]
	if inner == "" {
		return nil, nil
	}
	parts := strings.Split(inner, ",")
	kinds := make([]Kind, 0, len(parts))
	for _, p := range parts {
		k, err := kindFromTypeName(p)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func kindFromTypeName(name string) (Kind, error) {
	switch name {
	case "uint256":
		return KindUint256, nil
	case "address":
		return KindAddress, nil
	case "bytes21":
		return KindBytes21, nil
	case "string":
		return KindString, nil
	case "uint256[]":
		return KindUint256Array, nil
	}
	return 0, newEncodeErrorf("unsupported type %q", name)
}
