package grpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodeStruct fills v from a Struct by way of its JSON form.
func decodeStruct(in *structpb.Struct, v any) error {
	if in == nil {
		in = &structpb.Struct{}
	}

	data, err := protojson.Marshal(in)
	if err != nil {
		return fmt.Errorf("grpc: marshal struct: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("grpc: decode struct: %w", err)
	}
	return nil
}

// encodeStruct converts any JSON-encodable value with an object shape into a Struct.
func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("grpc: encode %T: %w", v, err)
	}

	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("grpc: build struct: %w", err)
	}
	return out, nil
}

func valueJSON(value *structpb.Value) (json.RawMessage, error) {
	if value == nil {
		return nil, nil
	}

	data, err := protojson.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("grpc: marshal value: %w", err)
	}
	return data, nil
}
