package bsonmap

import (
	"context"
	"reflect"
)

// Serializer encodes and decodes values of one Go type.
//
// Encode receives a value whose dynamic type is ValueType (or, for interface
// types, any type assignable to it). Decode returns such a value.
type Serializer interface {
	ValueType() reflect.Type
	Encode(ctx *EncodeContext, w Writer, v any) error
	Decode(ctx *DecodeContext, r Reader) (any, error)
}

// DiscriminatedSerializer is implemented by serializers that can interleave a
// discriminator element into their own document output.
type DiscriminatedSerializer interface {
	Serializer
	Convention() DiscriminatorConvention
}

// NullDecoder is implemented by serializers that want to see wire nulls in
// member position instead of having them assigned as the zero value.
type NullDecoder interface {
	DecodesNull() bool
}

// MemberInfo describes a serialized member for upstream layers.
type MemberInfo struct {
	MemberName  string
	ElementName string
	NominalType reflect.Type
	Serializer  Serializer
}

// DocumentSerializer exposes member introspection by member name.
type DocumentSerializer interface {
	Serializer
	MemberInfo(memberName string) (MemberInfo, bool)
}

// IDProvider exposes the document id of instances.
type IDProvider interface {
	DocumentID(v any) (id any, idType reflect.Type, gen IDGenerator, ok bool)
	SetDocumentID(v any, id any) error
}

// EncodeContext carries registry and position state down an encode.
type EncodeContext struct {
	Context  context.Context
	Registry *Registry
	// NominalType is the declared type of the slot being written.
	NominalType reflect.Type
	IDFirst     bool
	depth       int
}

// Depth reports the nesting level; zero is the root value.
func (c *EncodeContext) Depth() int { return c.depth }

// ValuePosition reports whether the value is nested inside another value.
func (c *EncodeContext) ValuePosition() bool { return c.depth > 0 }

// Child returns the context for a nested value of the given nominal type.
// The id-first policy only applies to the root document.
func (c *EncodeContext) Child(nominal reflect.Type) *EncodeContext {
	return &EncodeContext{Context: c.Context, Registry: c.Registry, NominalType: nominal, depth: c.depth + 1}
}

// withNominal returns a copy at the same depth with a different nominal type.
func (c *EncodeContext) withNominal(nominal reflect.Type) *EncodeContext {
	cp := *c
	cp.NominalType = nominal
	return &cp
}

// DecodeContext carries registry and position state down a decode.
type DecodeContext struct {
	Context     context.Context
	Registry    *Registry
	NominalType reflect.Type
	depth       int
}

func (c *DecodeContext) Depth() int { return c.depth }

// Child returns the context for a nested value of the given nominal type.
func (c *DecodeContext) Child(nominal reflect.Type) *DecodeContext {
	return &DecodeContext{Context: c.Context, Registry: c.Registry, NominalType: nominal, depth: c.depth + 1}
}

func (c *DecodeContext) withNominal(nominal reflect.Type) *DecodeContext {
	cp := *c
	cp.NominalType = nominal
	return &cp
}

func (c *EncodeContext) err() error {
	if c.Context == nil {
		return nil
	}
	return c.Context.Err()
}

func (c *DecodeContext) err() error {
	if c.Context == nil {
		return nil
	}
	return c.Context.Err()
}

// EncodeValue writes v as a nested value of the nominal type.
func EncodeValue(ctx *EncodeContext, w Writer, nominal reflect.Type, v any) error {
	s, err := ctx.Registry.Lookup(nominal)
	if err != nil {
		return err
	}
	return s.Encode(ctx.Child(nominal), w, v)
}

// DecodeValue reads a nested value of the nominal type.
func DecodeValue(ctx *DecodeContext, r Reader, nominal reflect.Type) (any, error) {
	s, err := ctx.Registry.Lookup(nominal)
	if err != nil {
		return nil, err
	}
	return s.Decode(ctx.Child(nominal), r)
}

// assignable converts a decoded value into a reflect.Value settable on a slot
// of type t. nil becomes the zero value of t.
func assignable(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if rv.Type().ConvertibleTo(t) && rv.Kind() == t.Kind() {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, &ShapeError{Type: t, Detail: "cannot assign a value of type " + rv.Type().String()}
}

// isNil reports nil interfaces and nil pointer-like values.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
		return rv.IsNil()
	}
	return false
}
