/*
 * Copyright 2019 Dgraph Labs, Inc. and Contributors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package datasketches

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies the category of a SketchError, following the taxonomy
// every sketch family shares: malformed input on deserialize, bad
// parameters on construction, or a structural/semantic corruption found
// after a read succeeded.
type Kind int

const (
	// KindInsufficientData: serialized input ended before a required field.
	KindInsufficientData Kind = iota
	// KindInvalidFamily: family byte mismatch.
	KindInvalidFamily
	// KindUnsupportedSerialVersion: serial_version byte not recognized.
	KindUnsupportedSerialVersion
	// KindInvalidPreambleLongs: preamble size not permitted for the
	// family/flags combination.
	KindInvalidPreambleLongs
	// KindInvalidArgument: out-of-range parameter, incompatible merge
	// operands, seed-hash mismatch on non-empty input, or duplicate keys
	// into an Xor filter after exhausting build attempts.
	KindInvalidArgument
	// KindInvalidData: structural corruption, e.g. non-monotonic KLL level
	// offsets or a negative Frequent-Items count field.
	KindInvalidData
	// KindDeserializationFailed: catch-all for semantic failures discovered
	// after structural reads succeeded.
	KindDeserializationFailed
)

func (k Kind) String() string {
	switch k {
	case KindInsufficientData:
		return "insufficient data"
	case KindInvalidFamily:
		return "invalid family"
	case KindUnsupportedSerialVersion:
		return "unsupported serial version"
	case KindInvalidPreambleLongs:
		return "invalid preamble longs"
	case KindInvalidArgument:
		return "invalid argument"
	case KindInvalidData:
		return "invalid data"
	case KindDeserializationFailed:
		return "deserialization failed"
	default:
		return "unknown"
	}
}

// SketchError is the concrete error type returned by every family's
// Serialize/Deserialize/Merge/Union operation. Arithmetic operations that
// receive already-validated input (Update, Insert, Contains) panic instead
// of returning a SketchError: those are contract violations by the caller,
// not recoverable conditions.
type SketchError struct {
	Kind Kind
	msg  string
	err  error
}

func (e *SketchError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

// Unwrap exposes the wrapped cause, if any, to errors.Is/errors.As.
func (e *SketchError) Unwrap() error {
	return e.err
}

func newError(kind Kind, msg string) error {
	return &SketchError{Kind: kind, msg: msg}
}

// NewInsufficientData reports a short read while decoding field tag.
func NewInsufficientData(tag string) error {
	return newError(KindInsufficientData, fmt.Sprintf("field %q", tag))
}

// NewInvalidFamily reports a family-id mismatch on deserialize.
func NewInvalidFamily(expected, got byte, name string) error {
	return newError(KindInvalidFamily,
		fmt.Sprintf("%s: expected family id %d, got %d", name, expected, got))
}

// NewUnsupportedSerialVersion reports a serial_version byte this build does
// not know how to decode.
func NewUnsupportedSerialVersion(expected, got byte) error {
	return newError(KindUnsupportedSerialVersion,
		fmt.Sprintf("expected serial version %d, got %d", expected, got))
}

// NewInvalidPreambleLongs reports a preamble-longs value outside the set
// permitted for the family and its flags.
func NewInvalidPreambleLongs(expected []byte, got byte) error {
	return newError(KindInvalidPreambleLongs,
		fmt.Sprintf("preamble longs %d not in %v", got, expected))
}

// NewInvalidArgument wraps an out-of-range parameter or incompatible
// operand with errors.WithMessage-style context, per the teacher's
// pkg/errors idiom.
func NewInvalidArgument(format string, args ...interface{}) error {
	return newError(KindInvalidArgument, fmt.Sprintf(format, args...))
}

// NewInvalidData reports structural corruption found after a successful
// byte-level read (e.g. a non-monotonic offset table).
func NewInvalidData(format string, args ...interface{}) error {
	return newError(KindInvalidData, fmt.Sprintf(format, args...))
}

// NewDeserializationFailed is the catch-all for semantic failures
// discovered after structural reads succeeded.
func NewDeserializationFailed(format string, args ...interface{}) error {
	return newError(KindDeserializationFailed, fmt.Sprintf(format, args...))
}

// WithContext attaches additional key/value context to err, mirroring
// pkg/errors.WithMessage so error chains remain inspectable with
// errors.Cause/errors.Is.
func WithContext(err error, key string, value interface{}) error {
	return errors.WithMessage(err, fmt.Sprintf("%s=%v", key, value))
}

// Is reports whether err (or any error it wraps) has the given Kind.
func Is(err error, kind Kind) bool {
	var se *SketchError
	for err != nil {
		if s, ok := err.(*SketchError); ok {
			se = s
			break
		}
		err = errors.Unwrap(err)
	}
	return se != nil && se.Kind == kind
}
