// Package abi implements the subset of the contract ABI used by the worker:
// function selectors, call-data encoding and return-tuple decoding for a
// closed set of argument kinds. It is deliberately not a general-purpose EVM
// ABI implementation; unsupported shapes are rejected at encode time.
package abi

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind enumerates the supported ABI types.
type Kind int

const (
	KindUint256 Kind = iota
	KindAddress
	KindBytes21
	KindString
	KindUint256Array
)

func (k Kind) String() string {
	switch k {
	case KindUint256:
		return "uint256"
	case KindAddress:
		return "address"
	case KindBytes21:
		return "bytes21"
	case KindString:
		return "string"
	case KindUint256Array:
		return "uint256[]"
	}
	return "invalid"
}

// dynamic reports whether values of this kind are placed in the tail area
// with an offset in the head.
func (k Kind) dynamic() bool {
	return k == KindString || k == KindUint256Array
}

// Value is a tagged ABI value. The zero Value is an invalid argument;
// construct values with the typed constructors below.
type Value struct {
	kind  Kind
	num   *big.Int
	addr  common.Address
	fixed [21]byte
	str   string
	nums  []*big.Int
}

// Uint256 wraps a non-negative big integer. The integer is not copied;
// callers must not mutate it afterwards.
func Uint256(x *big.Int) Value {
	return Value{kind: KindUint256, num: x}
}

// Uint64 wraps a machine integer as a uint256 value.
func Uint64(x uint64) Value {
	return Value{kind: KindUint256, num: new(big.Int).SetUint64(x)}
}

func Address(a common.Address) Value {
	return Value{kind: KindAddress, addr: a}
}

func Bytes21(b [21]byte) Value {
	return Value{kind: KindBytes21, fixed: b}
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

func Uint256Array(xs []*big.Int) Value {
	return Value{kind: KindUint256Array, nums: xs}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsUint256() (*big.Int, bool) {
	if v.kind != KindUint256 {
		return nil, false
	}
	return v.num, true
}

func (v Value) AsAddress() (common.Address, bool) {
	if v.kind != KindAddress {
		return common.Address{}, false
	}
	return v.addr, true
}

func (v Value) AsBytes21() ([21]byte, bool) {
	if v.kind != KindBytes21 {
		return [21]byte{}, false
	}
	return v.fixed, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

func (v Value) AsUint256Array() ([]*big.Int, bool) {
	if v.kind != KindUint256Array {
		return nil, false
	}
	return v.nums, true
}
