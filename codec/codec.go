// Package codec provides member serializers with alternate wire
// representations. They carry no discriminator, so interface slots write them
// with the wrapper shape.
package codec

import (
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/reoring/bsonmap"
)

// stringCodec stores T as a string produced by format and read by parse.
type stringCodec[T any] struct {
	name   string
	parse  func(string) (T, error)
	format func(T) string
}

func (c *stringCodec[T]) ValueType() reflect.Type { return reflect.TypeFor[T]() }

func (c *stringCodec[T]) Encode(_ *bsonmap.EncodeContext, w bsonmap.Writer, v any) error {
	t, ok := v.(T)
	if !ok {
		return &bsonmap.ShapeError{Type: c.ValueType(), Detail: "cannot encode " + fmt.Sprintf("%T", v) + " as " + c.name}
	}
	return w.WriteString(c.format(t))
}

func (c *stringCodec[T]) Decode(_ *bsonmap.DecodeContext, r bsonmap.Reader) (any, error) {
	if k := r.CurrentKind(); k != bsonmap.KindString {
		return nil, &bsonmap.ShapeError{Type: c.ValueType(), Expected: c.name + " string", Got: k}
	}
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	t, err := c.parse(s)
	if err != nil {
		return nil, &bsonmap.ShapeError{Type: c.ValueType(), Detail: errors.Wrapf(err, "invalid %s %q", c.name, s).Error()}
	}
	return t, nil
}
