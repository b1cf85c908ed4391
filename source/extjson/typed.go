package extjson

import (
	"context"

	"github.com/reoring/bsonmap"
)

// MarshalTyped encodes v via the registry and renders it as relaxed Extended JSON.
func MarshalTyped[T any](ctx context.Context, reg *bsonmap.Registry, v T, opts ...bsonmap.EncodeOpt) ([]byte, error) {
	val, err := bsonmap.Marshal(ctx, reg, v, opts...)
	if err != nil {
		return nil, err
	}
	return Marshal(val)
}

// UnmarshalTyped parses Extended JSON and decodes it into a T.
func UnmarshalTyped[T any](ctx context.Context, reg *bsonmap.Registry, b []byte, opts ...bsonmap.DecodeOpt) (T, error) {
	var zero T
	v, err := Unmarshal(b)
	if err != nil {
		return zero, err
	}
	return bsonmap.Unmarshal[T](ctx, reg, v, opts...)
}
