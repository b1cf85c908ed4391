package bsonbin

import (
	"context"
	"reflect"
	"strconv"

	"github.com/reoring/bsonmap"
)

// Marshal encodes v straight into BSON bytes.
func Marshal[T any](ctx context.Context, reg *bsonmap.Registry, v T, opts ...bsonmap.EncodeOpt) ([]byte, error) {
	w := NewWriter()
	if err := bsonmap.Encode(ctx, reg, w, reflect.TypeFor[T](), v, opts...); err != nil {
		return nil, err
	}
	return w.Bytes()
}

// Unmarshal decodes BSON bytes into a T.
func Unmarshal[T any](ctx context.Context, reg *bsonmap.Registry, b []byte, opts ...bsonmap.DecodeOpt) (T, error) {
	var zero T
	v, err := ToValue(b)
	if err != nil {
		return zero, err
	}
	return bsonmap.Unmarshal[T](ctx, reg, v, opts...)
}

func itoa(i int) string { return strconv.Itoa(i) }
