// Package codec encodes response payloads as JSON or protobuf.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"

	"google.golang.org/protobuf/proto"
)

var (
	ErrUnsupportedCodec = errors.New("unsupported codec")
)

// Codec encodes and decodes payloads
type Codec interface {
	// Encode encodes a value to bytes
	Encode(v any) ([]byte, error)

	// Decode decodes bytes to a value
	Decode(data []byte, v any) error

	// Name returns the codec name
	Name() string

	// ContentType returns the media type written with encoded payloads
	ContentType() string
}

const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
)

// ByName returns a codec by name
func ByName(name string) (Codec, error) {
	switch name {
	case "json":
		return JSONCodec{}, nil
	case "protobuf", "proto":
		return ProtobufCodec{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCodec, name)
	}
}

// Negotiate picks a codec from an Accept header. The first recognised media
// type wins; anything else gets JSON.
func Negotiate(accept string) Codec {
	for _, part := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case ContentTypeProtobuf, "application/protobuf", "application/vnd.google.protobuf":
			return ProtobufCodec{}
		case ContentTypeJSON:
			return JSONCodec{}
		}
	}
	return JSONCodec{}
}

// JSONCodec implements JSON encoding/decoding
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) Name() string { return "json" }

func (JSONCodec) ContentType() string { return ContentTypeJSON }

// ProtobufCodec implements Protocol Buffers encoding/decoding. Values that
// are not proto messages are encoded as a google.protobuf.Struct.
type ProtobufCodec struct{}

func (ProtobufCodec) Encode(v any) ([]byte, error) {
	if msg, ok := v.(proto.Message); ok {
		return proto.Marshal(msg)
	}
	s, err := ToStruct(v)
	if err != nil {
		return nil, err
	}
	return proto.Marshal(s)
}

func (ProtobufCodec) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("value must implement proto.Message interface, got %T", v)
	}
	return proto.Unmarshal(data, msg)
}

func (ProtobufCodec) Name() string { return "protobuf" }

func (ProtobufCodec) ContentType() string { return ContentTypeProtobuf }
