package triton

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// jsonCodec is a grpc/encoding.Codec that marshals plain Go structs as
// JSON instead of protobuf wire format. This lets *grpc.ClientConn.Invoke
// drive the real Triton gRPC service without a protoc-generated stub: the
// request/response types in messages.go travel over genuine gRPC/HTTP2
// framing, just encoded as JSON rather than protobuf bytes.
type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string { return Name }

// Name is the codec name this package registers with grpc/encoding; callers
// select it per call with grpc.CallContentSubtype.
const Name = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
