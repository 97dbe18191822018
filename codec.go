// Package localsocket implements newline-delimited JSON messaging over
// local (unix domain) sockets. A long-lived supervisor process accepts
// session processes and both sides exchange one JSON value per line.
package localsocket

import (
	"encoding/json"
)

// Delimiter terminates every frame on the wire.
const Delimiter = '\n'

// Encode serializes v to a compact JSON text fragment without a terminator.
// encoding/json escapes control characters inside strings, so the result
// never contains a raw newline byte.
func Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return data, nil
}

// Frame encodes v and appends the frame terminator.
func Frame(v any) ([]byte, error) {
	data, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return append(data, Delimiter), nil
}

// Decode parses one JSON text fragment into v.
// The line must not include the terminator.
func Decode(line []byte, v any) error {
	if err := json.Unmarshal(line, v); err != nil {
		return &DecodingError{Raw: string(line), Err: err}
	}
	return nil
}

// DecodeAs is the typed form of Decode.
func DecodeAs[T any](line []byte) (T, error) {
	var v T
	if err := Decode(line, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
