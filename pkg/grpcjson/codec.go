// Package grpcjson registers a JSON codec for gRPC so services can exchange
// plain Go structs. Clients select it with grpc.CallContentSubtype(Name).
package grpcjson

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

const Name = "json"

type codec struct{}

func (codec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (codec) Name() string                       { return Name }

func init() {
	encoding.RegisterCodec(codec{})
}
