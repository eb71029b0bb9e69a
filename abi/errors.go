package abi

import (
	"errors"
	"fmt"
)

// EncodeError indicates an unsupported type or a value outside the encodable
// range. This is a bug-class error: it means the caller constructed an
// invalid call, not that the input data was bad.
type EncodeError struct {
	msg string
}

func newEncodeErrorf(format string, args ...interface{}) error {
	return EncodeError{msg: fmt.Sprintf(format, args...)}
}

func (e EncodeError) Error() string {
	return "abi encode: " + e.msg
}

func IsEncodeError(err error) bool {
	var target EncodeError
	return errors.As(err, &target)
}

// DecodeError indicates malformed return data: truncated input, an offset or
// length pointing outside the buffer, or a string payload that is not valid
// UTF-8.
type DecodeError struct {
	msg string
}

func newDecodeErrorf(format string, args ...interface{}) error {
	return DecodeError{msg: fmt.Sprintf(format, args...)}
}

func (e DecodeError) Error() string {
	return "abi decode: " + e.msg
}

func IsDecodeError(err error) bool {
	var target DecodeError
	return errors.As(err, &target)
}
