// Package codec defines the message decoding contract of the presentation
// layer and provides JSON and YAML decoders.
//
// A Decoder converts the fragmented payload of a transfer into a typed
// message. The shared receiver decodes each transfer exactly once and fans
// the decoded object out by reference to every subscriber of the subject.
package codec

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Decoder converts a fragmented payload into a message of type T.
//
// A decoding error means the payload is malformed; the presentation layer
// drops the transfer and counts the failure without surfacing it to
// subscribers.
type Decoder[T any] interface {
	// Decode deserializes the ordered payload fragments into a message.
	Decode(fragments [][]byte) (T, error)
}

// DecoderFunc is a function adapter for Decoder.
type DecoderFunc[T any] func(fragments [][]byte) (T, error)

// Decode implements the Decoder interface.
func (f DecoderFunc[T]) Decode(fragments [][]byte) (T, error) { return f(fragments) }

// JSON returns a Decoder that unmarshals the payload as JSON into T.
func JSON[T any]() Decoder[T] {
	return DecoderFunc[T](func(fragments [][]byte) (T, error) {
		var msg T
		if err := json.Unmarshal(joinFragments(fragments), &msg); err != nil {
			return msg, err
		}

		return msg, nil
	})
}

// YAML returns a Decoder that unmarshals the payload as YAML into T.
func YAML[T any]() Decoder[T] {
	return DecoderFunc[T](func(fragments [][]byte) (T, error) {
		var msg T
		if err := yaml.Unmarshal(joinFragments(fragments), &msg); err != nil {
			return msg, err
		}

		return msg, nil
	})
}

// Bytes returns a Decoder that yields the raw payload without interpretation.
// Multi-fragment payloads are flattened into a single slice.
func Bytes() Decoder[[]byte] {
	return DecoderFunc[[]byte](func(fragments [][]byte) ([]byte, error) {
		return joinFragments(fragments), nil
	})
}

// joinFragments flattens a fragmented payload. The single-fragment case is
// returned as-is to avoid a copy.
func joinFragments(fragments [][]byte) []byte {
	if len(fragments) == 1 {
		return fragments[0]
	}

	return bytes.Join(fragments, nil)
}
