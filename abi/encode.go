package abi

import (
	"math/big"
)

const wordSize = 32

// EncodeCall builds call data for the given signature: the 4-byte selector
// followed by the argument block. Each argument occupies one 32-byte head
// word; dynamic arguments place an offset in the head and their
// length-prefixed, padded payload in the tail. Offsets are measured from the
// start of the argument block, excluding the selector.
func EncodeCall(signature string, args ...Value) ([]byte, error) {
	kinds, err := parseArgKinds(signature)
	if err != nil {
		return nil, err
	}
	if len(kinds) != len(args) {
		return nil, newEncodeErrorf("%s: have %d arguments, want %d", signature, len(args), len(kinds))
	}

	headSize := wordSize * len(args)
	head := make([]byte, 0, headSize)
	var tail []byte

	for i, arg := range args {
		if arg.kind != kinds[i] {
			return nil, newEncodeErrorf("%s: argument %d is %s, want %s", signature, i, arg.kind, kinds[i])
		}
		if arg.kind.dynamic() {
			offset, err := uint256Word(new(big.Int).SetInt64(int64(headSize + len(tail))))
			if err != nil {
				return nil, err
			}
			head = append(head, offset...)
			payload, err := encodeTail(arg)
			if err != nil {
				return nil, err
			}
			tail = append(tail, payload...)
			continue
		}
		word, err := encodeStatic(arg)
		if err != nil {
			return nil, err
		}
		head = append(head, word...)
	}

	sel := Selector(signature)
	out := make([]byte, 0, len(sel)+len(head)+len(tail))
	out = append(out, sel[:]...)
	out = append(out, head...)
	out = append(out, tail...)
	return out, nil
}

func encodeStatic(v Value) ([]byte, error) {
	switch v.kind {
	case KindUint256:
		return uint256Word(v.num)
	case KindAddress:
		word := make([]byte, wordSize)
		copy(word[wordSize-len(v.addr):], v.addr[:])
		return word, nil
	case KindBytes21:
		word := make([]byte, wordSize)
		copy(word, v.fixed[:])
		return word, nil
	}
	return nil, newEncodeErrorf("%s is not a static type", v.kind)
}

func encodeTail(v Value) ([]byte, error) {
	switch v.kind {
	case KindString:
		data := []byte(v.str)
		length, err := uint256Word(new(big.Int).SetInt64(int64(len(data))))
		if err != nil {
			return nil, err
		}
		out := append(length, data...)
		if pad := len(data) % wordSize; pad != 0 {
			out = append(out, make([]byte, wordSize-pad)...)
		}
		return out, nil
	case KindUint256Array:
		length, err := uint256Word(new(big.Int).SetInt64(int64(len(v.nums))))
		if err != nil {
			return nil, err
		}
		out := length
		for i, x := range v.nums {
			word, err := uint256Word(x)
			if err != nil {
				return nil, newEncodeErrorf("array element %d: %v", i, err)
			}
			out = append(out, word...)
		}
		return out, nil
	}
	return nil, newEncodeErrorf("%s is not a dynamic type", v.kind)
}

// uint256Word encodes a non-negative integer as a big-endian 32-byte word.
func uint256Word(x *big.Int) ([]byte, error) {
	if x == nil {
		return nil, newEncodeErrorf("nil uint256")
	}
	if x.Sign() < 0 {
		return nil, newEncodeErrorf("negative value %s for uint256", x)
	}
	if x.BitLen() > 256 {
		return nil, newEncodeErrorf("value %s overflows uint256", x)
	}
	word := make([]byte, wordSize)
	x.FillBytes(word)
	return word, nil
}
