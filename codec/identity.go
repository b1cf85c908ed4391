package codec

import (
	"fmt"
	"reflect"

	"github.com/reoring/bsonmap"
)

// Validated returns a serializer that keeps the wire form of base and runs
// validate on the domain value in both directions.
func Validated[T any](base bsonmap.Serializer, validate func(T) error) bsonmap.Serializer {
	return &validatedSerializer[T]{base: base, validate: validate}
}

type validatedSerializer[T any] struct {
	base     bsonmap.Serializer
	validate func(T) error
}

func (s *validatedSerializer[T]) ValueType() reflect.Type { return reflect.TypeFor[T]() }

func (s *validatedSerializer[T]) check(v any) error {
	t, ok := v.(T)
	if !ok {
		return &bsonmap.ShapeError{Type: s.ValueType(), Detail: "unexpected value of type " + fmt.Sprintf("%T", v)}
	}
	return s.validate(t)
}

func (s *validatedSerializer[T]) Encode(ctx *bsonmap.EncodeContext, w bsonmap.Writer, v any) error {
	if err := s.check(v); err != nil {
		return err
	}
	return s.base.Encode(ctx, w, v)
}

func (s *validatedSerializer[T]) Decode(ctx *bsonmap.DecodeContext, r bsonmap.Reader) (any, error) {
	v, err := s.base.Decode(ctx, r)
	if err != nil {
		return nil, err
	}
	if err := s.check(v); err != nil {
		return nil, err
	}
	return v, nil
}
