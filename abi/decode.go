package abi

import (
	"math/big"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// DecodeReturn decodes the return data of one of the supported view
// functions into its tuple of values. The signature must be one with a
// registered return shape.
func DecodeReturn(signature string, data []byte) ([]Value, error) {
	kinds, ok := returnTypes[signature]
	if !ok {
		return nil, newDecodeErrorf("no return shape registered for %q", signature)
	}
	return DecodeValues(kinds, data)
}

// DecodeValues decodes a top-level tuple of the given kinds from ABI-encoded
// data. Offsets of dynamic members are measured from the start of data.
func DecodeValues(kinds []Kind, data []byte) ([]Value, error) {
	values := make([]Value, 0, len(kinds))
	for i, kind := range kinds {
		word, err := wordAt(data, i*wordSize)
		if err != nil {
			return nil, err
		}
		if !kind.dynamic() {
			values = append(values, decodeStatic(kind, word))
			continue
		}
		offset, err := wordToOffset(word, len(data))
		if err != nil {
			return nil, err
		}
		v, err := decodeTail(kind, data, offset)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

func decodeStatic(kind Kind, word []byte) Value {
	switch kind {
	case KindUint256:
		return Uint256(new(big.Int).SetBytes(word))
	case KindAddress:
		var a common.Address
		copy(a[:], word[wordSize-len(a):])
		return Address(a)
	case KindBytes21:
		var b [21]byte
		copy(b[:], word)
		return Bytes21(b)
	}
	// kinds are produced by this package only; a dynamic kind here is a bug
	panic("abi: decodeStatic called with dynamic kind " + kind.String())
}

func decodeTail(kind Kind, data []byte, offset int) (Value, error) {
	lengthWord, err := wordAt(data, offset)
	if err != nil {
		return Value{}, err
	}
	length, err := wordToOffset(lengthWord, len(data))
	if err != nil {
		return Value{}, err
	}

	switch kind {
	case KindString:
		start := offset + wordSize
		if start+length > len(data) {
			return Value{}, newDecodeErrorf("string of %d bytes at offset %d exceeds data of %d bytes", length, offset, len(data))
		}
		raw := data[start : start+length]
		if !utf8.Valid(raw) {
			return Value{}, newDecodeErrorf("string at offset %d is not valid UTF-8", offset)
		}
		return String(string(raw)), nil
	case KindUint256Array:
		start := offset + wordSize
		if start+length*wordSize > len(data) {
			return Value{}, newDecodeErrorf("array of %d elements at offset %d exceeds data of %d bytes", length, offset, len(data))
		}
		xs := make([]*big.Int, 0, length)
		for i := 0; i < length; i++ {
			word := data[start+i*wordSize : start+(i+1)*wordSize]
			xs = append(xs, new(big.Int).SetBytes(word))
		}
		return Uint256Array(xs), nil
	}
	panic("abi: decodeTail called with static kind " + kind.String())
}

func wordAt(data []byte, offset int) ([]byte, error) {
	if offset < 0 || offset+wordSize > len(data) {
		return nil, newDecodeErrorf("truncated: word at offset %d exceeds data of %d bytes", offset, len(data))
	}
	return data[offset : offset+wordSize], nil
}

// wordToOffset interprets a word as an offset or length and bounds it by the
// size of the buffer, which also guarantees it fits in an int.
func wordToOffset(word []byte, limit int) (int, error) {
	x := new(big.Int).SetBytes(word)
	if !x.IsUint64() || x.Uint64() > uint64(limit) {
		return 0, newDecodeErrorf("offset %s exceeds data of %d bytes", x, limit)
	}
	return int(x.Uint64()), nil
}
