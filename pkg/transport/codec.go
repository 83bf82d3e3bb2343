package transport

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// jsonCodec implements encoding.Codec over plain Go structs. grpc-go
// hardcodes "proto" as the content-subtype used when a call specifies
// none, so registering under that name is how a non-protobuf wire
// format is plugged into an unmodified grpc.Server/grpc.ClientConn
// without a protoc step (documented on encoding.RegisterCodec).
type jsonCodec struct{}

func (jsonCodec) Name() string { return "proto" }

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("transport: json marshal: %w", err)
	}
	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("transport: json unmarshal: %w", err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
