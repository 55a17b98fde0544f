// Package storerpc defines the shoestore.StoreService gRPC contract.
//
// Messages travel as JSON through a codec registered under the "json"
// content subtype, so clients must dial with CallContentSubtype(Codec).
package storerpc

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Codec is the content subtype clients pass to grpc.CallContentSubtype.
const Codec = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return Codec
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
