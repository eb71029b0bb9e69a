package abi

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEncodeCall_SubmitAnalysisResult reproduces the canonical layout of a
// submitAnalysisResult call: id, offset to the result string, confidence,
// offset to the relationship string, then the two length-prefixed payloads.
func TestEncodeCall_SubmitAnalysisResult(t *testing.T) {
	data, err := EncodeCall(SigSubmitAnalysisResult,
		Uint64(1),
		String("{}"),
		Uint64(80),
		String("first cousins"),
	)
	require.NoError(t, err)

	sel := Selector(SigSubmitAnalysisResult)
	require.Equal(t, sel[:], data[:4])

	words := data[4:]
	wordHex := func(i int) string {
		return hex.EncodeToString(words[i*32 : (i+1)*32])
	}

	// head: id = 1, offset 0x80, confidence = 0x50, offset 0xC0
	assert.Equal(t, strings.Repeat("0", 63)+"1", wordHex(0))
	assert.Equal(t, strings.Repeat("0", 62)+"80", wordHex(1))
	assert.Equal(t, strings.Repeat("0", 62)+"50", wordHex(2))
	assert.Equal(t, strings.Repeat("0", 62)+"c0", wordHex(3))

	// tail: "{}" has length 2, then the padded payload
	assert.Equal(t, strings.Repeat("0", 63)+"2", wordHex(4))
	assert.Equal(t, "7b7d"+strings.Repeat("0", 60), wordHex(5))

	// then "first cousins" with length 13
	assert.Equal(t, strings.Repeat("0", 63)+"d", wordHex(6))
	assert.Equal(t, hex.EncodeToString([]byte("first cousins"))+strings.Repeat("0", 64-2*13), wordHex(7))

	require.Len(t, words, 8*32)
}

func TestEncodeCall_NoArguments(t *testing.T) {
	data, err := EncodeCall(SigGetPendingRequests)
	require.NoError(t, err)
	sel := Selector(SigGetPendingRequests)
	require.Equal(t, sel[:], data)
}

func TestEncodeCall_AddressPadding(t *testing.T) {
	addr := common.HexToAddress("0xDF4A26832c770EeC30442337a4F9dd51bbC0a832")
	data, err := EncodeCall("f(address)", Address(addr))
	require.NoError(t, err)
	word := data[4:]
	require.Len(t, word, 32)
	assert.Equal(t, make([]byte, 12), word[:12], "address is left-padded")
	assert.Equal(t, addr[:], word[12:])
}

func TestEncodeCall_EmptyString(t *testing.T) {
	data, err := EncodeCall(SigMarkAnalysisFailed, Uint64(7), String(""))
	require.NoError(t, err)
	// head (2 words) + a single zero length word for the empty string
	require.Len(t, data[4:], 3*32)
	assert.Equal(t, make([]byte, 32), data[4+2*32:])
}

func TestEncodeCall_Errors(t *testing.T) {
	t.Run("argument count mismatch", func(t *testing.T) {
		_, err := EncodeCall(SigMarkAnalysisFailed, Uint64(1))
		require.Error(t, err)
		assert.True(t, IsEncodeError(err))
	})

	t.Run("argument kind mismatch", func(t *testing.T) {
		_, err := EncodeCall(SigMarkAnalysisFailed, String("1"), String("reason"))
		require.Error(t, err)
		assert.True(t, IsEncodeError(err))
	})

	t.Run("unsupported type in signature", func(t *testing.T) {
		_, err := EncodeCall("f(bool)", Uint64(1))
		require.Error(t, err)
		assert.True(t, IsEncodeError(err))
	})

	t.Run("negative uint256", func(t *testing.T) {
		_, err := EncodeCall("f(uint256)", Uint256(big.NewInt(-1)))
		require.Error(t, err)
		assert.True(t, IsEncodeError(err))
	})

	t.Run("uint256 overflow", func(t *testing.T) {
		tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
		_, err := EncodeCall("f(uint256)", Uint256(tooBig))
		require.Error(t, err)
		assert.True(t, IsEncodeError(err))
	})

	t.Run("malformed signature", func(t *testing.T) {
		_, err := EncodeCall("nope")
		require.Error(t, err)
		assert.True(t, IsEncodeError(err))
	})
}
