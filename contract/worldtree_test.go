package contract

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worldtree/genetics-worker/abi"
	"github.com/worldtree/genetics-worker/model/request"
	"github.com/worldtree/genetics-worker/utils/unittest"
)

var contractAddr = common.HexToAddress("0xDF4A26832c770EeC30442337a4F9dd51bbC0a832")

// fakeHost scripts the two host operations.
type fakeHost struct {
	call       func(to common.Address, data []byte) ([]byte, error)
	signSubmit func(to common.Address, data []byte) (string, error)
}

func (f *fakeHost) Call(_ context.Context, to common.Address, data []byte) ([]byte, error) {
	return f.call(to, data)
}

func (f *fakeHost) SignSubmit(_ context.Context, to common.Address, data []byte) (string, error) {
	return f.signSubmit(to, data)
}

// returnTuple builds return data for a view call: an argument block without
// a selector.
func returnTuple(t *testing.T, signature string, args ...abi.Value) []byte {
	t.Helper()
	data, err := abi.EncodeCall(signature, args...)
	require.NoError(t, err)
	return data[4:]
}

func TestPendingRequests(t *testing.T) {
	ids := []*big.Int{big.NewInt(3), big.NewInt(5)}
	host := &fakeHost{
		call: func(to common.Address, data []byte) ([]byte, error) {
			assert.Equal(t, contractAddr, to)
			sel := abi.Selector(abi.SigGetPendingRequests)
			assert.Equal(t, sel[:], data)
			return returnTuple(t, "f(uint256[])", abi.Uint256Array(ids)), nil
		},
	}

	worldtree := NewWorldtree(unittest.Logger(), host, contractAddr)
	got, err := worldtree.PendingRequests(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Zero(t, got[0].Cmp(big.NewInt(3)))
	assert.Zero(t, got[1].Cmp(big.NewInt(5)))
}

func TestAnalysisRequest(t *testing.T) {
	requester := common.HexToAddress("0x0000000000000000000000000000000000000001")
	user1 := common.HexToAddress("0x0000000000000000000000000000000000000002")
	user2 := common.HexToAddress("0x0000000000000000000000000000000000000003")

	host := &fakeHost{
		call: func(_ common.Address, data []byte) ([]byte, error) {
			sel := abi.Selector(abi.SigGetAnalysisRequest)
			require.Equal(t, sel[:], data[:4])
			// argument: the request id
			values, err := abi.DecodeValues([]abi.Kind{abi.KindUint256}, data[4:])
			require.NoError(t, err)
			id, _ := values[0].AsUint256()
			require.EqualValues(t, 9, id.Uint64())

			return returnTuple(t, "f(address,address,address,string,string,uint256,uint256)",
				abi.Address(requester),
				abi.Address(user1),
				abi.Address(user2),
				abi.String("Pending"),
				abi.String(""),
				abi.Uint64(1700000001),
				abi.Uint64(0),
			), nil
		},
	}

	worldtree := NewWorldtree(unittest.Logger(), host, contractAddr)
	rec, err := worldtree.AnalysisRequest(context.Background(), big.NewInt(9))
	require.NoError(t, err)

	assert.Zero(t, rec.ID.Cmp(big.NewInt(9)))
	assert.Equal(t, requester, rec.Requester)
	assert.Equal(t, user1, rec.User1)
	assert.Equal(t, user2, rec.User2)
	assert.Equal(t, request.StatusPending, rec.Status)
	assert.Empty(t, rec.Result)
	assert.Equal(t, uint64(1700000001), rec.RequestTime)
	assert.Zero(t, rec.CompletionTime)
}

func TestSNPDataForAnalysis(t *testing.T) {
	host := &fakeHost{
		call: func(_ common.Address, data []byte) ([]byte, error) {
			sel := abi.Selector(abi.SigGetSNPDataForAnalysis)
			require.Equal(t, sel[:], data[:4])
			return returnTuple(t, "f(string,string)",
				abi.String("rs1 100 1 AA"),
				abi.String("rs1 100 1 AT"),
			), nil
		},
	}

	worldtree := NewWorldtree(unittest.Logger(), host, contractAddr)
	user1Data, user2Data, err := worldtree.SNPDataForAnalysis(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "rs1 100 1 AA", user1Data)
	assert.Equal(t, "rs1 100 1 AT", user2Data)
}

func TestSubmitAnalysisResult_CallData(t *testing.T) {
	var captured []byte
	host := &fakeHost{
		signSubmit: func(to common.Address, data []byte) (string, error) {
			assert.Equal(t, contractAddr, to)
			captured = data
			return "0xhash", nil
		},
	}

	worldtree := NewWorldtree(unittest.Logger(), host, contractAddr)
	hash, err := worldtree.SubmitAnalysisResult(context.Background(), big.NewInt(1), `{"status":"success"}`, 95, "parent-child")
	require.NoError(t, err)
	assert.Equal(t, "0xhash", hash)

	sel := abi.Selector(abi.SigSubmitAnalysisResult)
	require.Equal(t, sel[:], captured[:4])

	values, err := abi.DecodeValues([]abi.Kind{
		abi.KindUint256, abi.KindString, abi.KindUint256, abi.KindString,
	}, captured[4:])
	require.NoError(t, err)

	id, _ := values[0].AsUint256()
	resultJSON, _ := values[1].AsString()
	confidence, _ := values[2].AsUint256()
	relationship, _ := values[3].AsString()
	assert.EqualValues(t, 1, id.Uint64())
	assert.Equal(t, `{"status":"success"}`, resultJSON)
	assert.EqualValues(t, 95, confidence.Uint64())
	assert.Equal(t, "parent-child", relationship)
}

func TestMarkAnalysisFailed_CallData(t *testing.T) {
	var captured []byte
	host := &fakeHost{
		signSubmit: func(_ common.Address, data []byte) (string, error) {
			captured = data
			return "0x01", nil
		},
	}

	worldtree := NewWorldtree(unittest.Logger(), host, contractAddr)
	_, err := worldtree.MarkAnalysisFailed(context.Background(), big.NewInt(4), "insufficient overlap: 0")
	require.NoError(t, err)

	sel := abi.Selector(abi.SigMarkAnalysisFailed)
	require.Equal(t, sel[:], captured[:4])

	values, err := abi.DecodeValues([]abi.Kind{abi.KindUint256, abi.KindString}, captured[4:])
	require.NoError(t, err)
	reason, _ := values[1].AsString()
	assert.Equal(t, "insufficient overlap: 0", reason)
}

func TestView_PropagatesHostError(t *testing.T) {
	hostErr := errors.New("boom")
	host := &fakeHost{
		call: func(common.Address, []byte) ([]byte, error) { return nil, hostErr },
	}
	worldtree := NewWorldtree(unittest.Logger(), host, contractAddr)
	_, err := worldtree.PendingRequests(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, hostErr))
}

func TestView_DecodeErrorSurfaces(t *testing.T) {
	host := &fakeHost{
		call: func(common.Address, []byte) ([]byte, error) { return []byte{0x01}, nil },
	}
	worldtree := NewWorldtree(unittest.Logger(), host, contractAddr)
	_, err := worldtree.PendingRequests(context.Background())
	require.Error(t, err)
	assert.True(t, abi.IsDecodeError(err))
}
