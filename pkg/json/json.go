// Package json is the project's JSON codec: a single frozen json-iterator
// configuration shared by the metrics endpoint and the command-line tools,
// with encoding/json compatible output and sorted map keys.
package json

import (
	"io"

	jsoniter "github.com/json-iterator/go"
)

var api = jsoniter.Config{
	SortMapKeys:             true,
	EscapeHTML:              true,
	ValidateJsonRawMessage:  true,
	MarshalFloatWith6Digits: true,
}.Froze()

func Marshal(v any) ([]byte, error) {
	return api.Marshal(v)
}

func MarshalIndent(v any, prefix, indent string) ([]byte, error) {
	return api.MarshalIndent(v, prefix, indent)
}

func Unmarshal(data []byte, v any) error {
	return api.Unmarshal(data, v)
}

func NewEncoder(w io.Writer) *jsoniter.Encoder {
	return api.NewEncoder(w)
}

func NewDecoder(r io.Reader) *jsoniter.Decoder {
	return api.NewDecoder(r)
}
