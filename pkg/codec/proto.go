package codec

import (
	"encoding/base64"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// ProtoRequestFactory creates new instances of protobuf messages.
// T must be a pointer type (e.g., *MyMessage) that implements proto.Message.
type ProtoRequestFactory[T proto.Message] func() T

// For testing purposes, we expose these variables so they can be overridden in tests
var protoUnmarshal = proto.Unmarshal
var protoMarshal = proto.Marshal

// ProtoCodec carries binary protobuf messages as base64 lines.
type ProtoCodec[T proto.Message] struct {
	newRequest ProtoRequestFactory[T]
}

// NewProtoCodec creates a ProtoCodec using factory to create messages for decoding.
//
// Example:
//
//	c := codec.NewProtoCodec(func() *pb.Event { return &pb.Event{} })
func NewProtoCodec[T proto.Message](factory ProtoRequestFactory[T]) *ProtoCodec[T] {
	if factory == nil {
		panic("codec: nil ProtoRequestFactory")
	}
	return &ProtoCodec[T]{newRequest: factory}
}

// NewRequest creates a new message using the factory.
func (c *ProtoCodec[T]) NewRequest() T {
	return c.newRequest()
}

// Decode base64-decodes line and unmarshals the protobuf wire bytes into a new message.
func (c *ProtoCodec[T]) Decode(line string) (T, error) {
	var zero T
	data, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		return zero, err
	}
	msg := c.NewRequest()
	if err := protoUnmarshal(data, msg); err != nil {
		return zero, err
	}
	return msg, nil
}

// Encode marshals a proto.Message and returns it base64 encoded.
func (c *ProtoCodec[T]) Encode(v any) (string, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return "", fmt.Errorf("codec: cannot encode %T as protobuf", v)
	}
	data, err := protoMarshal(msg)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// ProtoJSONCodec reads and writes protobuf messages in their canonical JSON form.
type ProtoJSONCodec[T proto.Message] struct {
	newRequest ProtoRequestFactory[T]
	unmarshal  protojson.UnmarshalOptions
	marshal    protojson.MarshalOptions
}

// NewProtoJSONCodec creates a ProtoJSONCodec. Unknown JSON fields are rejected.
func NewProtoJSONCodec[T proto.Message](factory ProtoRequestFactory[T]) *ProtoJSONCodec[T] {
	if factory == nil {
		panic("codec: nil ProtoRequestFactory")
	}
	return &ProtoJSONCodec[T]{
		newRequest: factory,
		marshal:    protojson.MarshalOptions{Multiline: false},
	}
}

// NewRequest creates a new message using the factory.
func (c *ProtoJSONCodec[T]) NewRequest() T {
	return c.newRequest()
}

// Decode unmarshals a protobuf JSON line into a new message.
func (c *ProtoJSONCodec[T]) Decode(line string) (T, error) {
	msg := c.NewRequest()
	if err := c.unmarshal.Unmarshal([]byte(line), msg); err != nil {
		var zero T
		return zero, err
	}
	return msg, nil
}

// Encode marshals a proto.Message to single-line protobuf JSON.
func (c *ProtoJSONCodec[T]) Encode(v any) (string, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return "", fmt.Errorf("codec: cannot encode %T as protobuf JSON", v)
	}
	b, err := c.marshal.Marshal(msg)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
