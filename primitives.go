package bsonmap

import (
	"math"
	"reflect"
	"strconv"
	"time"
)

type builtinEntry struct {
	s   Serializer
	tag string
}

// builtinSerializers are installed in every registry. Tagged entries can be
// written through interface slots with the wrapper shape.
func builtinSerializers() []builtinEntry {
	return []builtinEntry{
		{stringSerializer{}, "string"},
		{boolSerializer{}, "bool"},
		{int32Serializer{}, "int32"},
		{int64Serializer{}, "int64"},
		{intSerializer{}, "int"},
		{float64Serializer{}, "double"},
		{timeSerializer{}, "date"},
		{bytesSerializer{}, "bytes"},
		{binarySerializer{}, "binary"},
		{objectIDSerializer{}, "objectId"},
		{rawDocumentSerializer{}, ""},
		{valueSerializer{}, ""},
	}
}

func scalarShape(t reflect.Type, expected string, got Kind) error {
	return &ShapeError{Type: t, Expected: expected, Got: got}
}

type stringSerializer struct{}

func (stringSerializer) ValueType() reflect.Type { return reflect.TypeFor[string]() }

func (stringSerializer) Encode(_ *EncodeContext, w Writer, v any) error {
	return w.WriteString(v.(string))
}

func (s stringSerializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	if k := r.CurrentKind(); k != KindString {
		return nil, scalarShape(s.ValueType(), "string", k)
	}
	return r.ReadString()
}

type boolSerializer struct{}

func (boolSerializer) ValueType() reflect.Type { return reflect.TypeFor[bool]() }

func (boolSerializer) Encode(_ *EncodeContext, w Writer, v any) error {
	return w.WriteBoolean(v.(bool))
}

func (s boolSerializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	if k := r.CurrentKind(); k != KindBoolean {
		return nil, scalarShape(s.ValueType(), "boolean", k)
	}
	return r.ReadBoolean()
}

// readInteger accepts any numeric wire kind holding an integral value in
// [lo, hi].
func readInteger(r Reader, t reflect.Type, lo, hi int64) (int64, error) {
	var n int64
	switch k := r.CurrentKind(); k {
	case KindInt32:
		i, err := r.ReadInt32()
		if err != nil {
			return 0, err
		}
		n = int64(i)
	case KindInt64:
		i, err := r.ReadInt64()
		if err != nil {
			return 0, err
		}
		n = i
	case KindDouble:
		f, err := r.ReadDouble()
		if err != nil {
			return 0, err
		}
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, &ShapeError{Type: t, Detail: "double " + strconv.FormatFloat(f, 'g', -1, 64) + " is not an integer"}
		}
		n = int64(f)
	default:
		return 0, scalarShape(t, "integer", k)
	}
	if n < lo || n > hi {
		return 0, &ShapeError{Type: t, Detail: strconv.FormatInt(n, 10) + " overflows " + t.String()}
	}
	return n, nil
}

type int32Serializer struct{}

func (int32Serializer) ValueType() reflect.Type { return reflect.TypeFor[int32]() }

func (int32Serializer) Encode(_ *EncodeContext, w Writer, v any) error {
	return w.WriteInt32(v.(int32))
}

func (s int32Serializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	n, err := readInteger(r, s.ValueType(), math.MinInt32, math.MaxInt32)
	return int32(n), err
}

type int64Serializer struct{}

func (int64Serializer) ValueType() reflect.Type { return reflect.TypeFor[int64]() }

func (int64Serializer) Encode(_ *EncodeContext, w Writer, v any) error {
	return w.WriteInt64(v.(int64))
}

func (s int64Serializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	return readInteger(r, s.ValueType(), math.MinInt64, math.MaxInt64)
}

// intSerializer writes int as Int32 when it fits and as Int64 otherwise.
type intSerializer struct{}

func (intSerializer) ValueType() reflect.Type { return reflect.TypeFor[int]() }

func (intSerializer) Encode(_ *EncodeContext, w Writer, v any) error {
	n := v.(int)
	if n >= math.MinInt32 && n <= math.MaxInt32 {
		return w.WriteInt32(int32(n))
	}
	return w.WriteInt64(int64(n))
}

func (s intSerializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	n, err := readInteger(r, s.ValueType(), math.MinInt, math.MaxInt)
	return int(n), err
}

type float64Serializer struct{}

func (float64Serializer) ValueType() reflect.Type { return reflect.TypeFor[float64]() }

func (float64Serializer) Encode(_ *EncodeContext, w Writer, v any) error {
	return w.WriteDouble(v.(float64))
}

func (s float64Serializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	switch k := r.CurrentKind(); k {
	case KindDouble:
		return r.ReadDouble()
	case KindInt32:
		i, err := r.ReadInt32()
		return float64(i), err
	case KindInt64:
		i, err := r.ReadInt64()
		return float64(i), err
	default:
		return nil, scalarShape(s.ValueType(), "double", k)
	}
}

// timeSerializer stores millisecond precision and decodes in UTC.
type timeSerializer struct{}

func (timeSerializer) ValueType() reflect.Type { return reflect.TypeFor[time.Time]() }

func (timeSerializer) Encode(_ *EncodeContext, w Writer, v any) error {
	return w.WriteDateTime(v.(time.Time))
}

func (s timeSerializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	if k := r.CurrentKind(); k != KindDateTime {
		return nil, scalarShape(s.ValueType(), "date", k)
	}
	return r.ReadDateTime()
}

type bytesSerializer struct{}

func (bytesSerializer) ValueType() reflect.Type { return reflect.TypeFor[[]byte]() }

func (bytesSerializer) Encode(_ *EncodeContext, w Writer, v any) error {
	b := v.([]byte)
	if b == nil {
		return w.WriteNull()
	}
	return w.WriteBinary(Binary{Data: b})
}

func (s bytesSerializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	switch k := r.CurrentKind(); k {
	case KindNull:
		return []byte(nil), r.ReadNull()
	case KindBinary:
		b, err := r.ReadBinary()
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), b.Data...), nil
	default:
		return nil, scalarShape(s.ValueType(), "binary", k)
	}
}

type binarySerializer struct{}

func (binarySerializer) ValueType() reflect.Type { return reflect.TypeFor[Binary]() }

func (binarySerializer) Encode(_ *EncodeContext, w Writer, v any) error {
	return w.WriteBinary(v.(Binary))
}

func (s binarySerializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	if k := r.CurrentKind(); k != KindBinary {
		return nil, scalarShape(s.ValueType(), "binary", k)
	}
	return r.ReadBinary()
}

type objectIDSerializer struct{}

func (objectIDSerializer) ValueType() reflect.Type { return reflect.TypeFor[ObjectID]() }

func (objectIDSerializer) Encode(_ *EncodeContext, w Writer, v any) error {
	return w.WriteObjectID(v.(ObjectID))
}

func (s objectIDSerializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	if k := r.CurrentKind(); k != KindObjectID {
		return nil, scalarShape(s.ValueType(), "objectId", k)
	}
	return r.ReadObjectID()
}

// rawDocumentSerializer passes *Document trees through untouched.
type rawDocumentSerializer struct{}

func (rawDocumentSerializer) ValueType() reflect.Type { return documentPtrType }

func (rawDocumentSerializer) Encode(_ *EncodeContext, w Writer, v any) error {
	d := v.(*Document)
	if d == nil {
		return w.WriteNull()
	}
	return w.WriteValue(DocumentValue(d))
}

func (rawDocumentSerializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	switch k := r.CurrentKind(); k {
	case KindNull:
		return (*Document)(nil), r.ReadNull()
	case KindDocument:
		v, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		d, _ := v.Document()
		return d, nil
	default:
		return nil, scalarShape(documentPtrType, "document", k)
	}
}

// valueSerializer maps any wire value, null included, onto Value.
type valueSerializer struct{}

func (valueSerializer) ValueType() reflect.Type { return reflect.TypeFor[Value]() }
func (valueSerializer) DecodesNull() bool       { return true }

func (valueSerializer) Encode(_ *EncodeContext, w Writer, v any) error {
	return w.WriteValue(v.(Value))
}

func (valueSerializer) Decode(_ *DecodeContext, r Reader) (any, error) {
	return r.ReadValue()
}

// convertSerializer serves a named type through the serializer of its
// underlying builtin type.
type convertSerializer struct {
	t    reflect.Type
	base Serializer
}

func newConvertSerializer(t reflect.Type, base Serializer) Serializer {
	if t == base.ValueType() {
		return base
	}
	return &convertSerializer{t: t, base: base}
}

func (s *convertSerializer) ValueType() reflect.Type { return s.t }

func (s *convertSerializer) Encode(ctx *EncodeContext, w Writer, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && rv.IsNil() {
		return w.WriteNull()
	}
	return s.base.Encode(ctx, w, rv.Convert(s.base.ValueType()).Interface())
}

func (s *convertSerializer) Decode(ctx *DecodeContext, r Reader) (any, error) {
	v, err := s.base.Decode(ctx, r)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(v)
	switch s.t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		if reflect.Zero(s.t).OverflowInt(rv.Int()) {
			return nil, &ShapeError{Type: s.t, Detail: strconv.FormatInt(rv.Int(), 10) + " overflows " + s.t.String()}
		}
	}
	return rv.Convert(s.t).Interface(), nil
}

// pointerSerializer writes nil as null and otherwise the pointed-to value.
type pointerSerializer struct {
	t reflect.Type
}

func (s *pointerSerializer) ValueType() reflect.Type { return s.t }

func (s *pointerSerializer) Encode(ctx *EncodeContext, w Writer, v any) error {
	if isNil(v) {
		return w.WriteNull()
	}
	elem, err := ctx.Registry.Lookup(s.t.Elem())
	if err != nil {
		return err
	}
	return elem.Encode(ctx.withNominal(s.t.Elem()), w, reflect.ValueOf(v).Elem().Interface())
}

func (s *pointerSerializer) Decode(ctx *DecodeContext, r Reader) (any, error) {
	if r.CurrentKind() == KindNull {
		return reflect.Zero(s.t).Interface(), r.ReadNull()
	}
	elem, err := ctx.Registry.Lookup(s.t.Elem())
	if err != nil {
		return nil, err
	}
	v, err := elem.Decode(ctx.withNominal(s.t.Elem()), r)
	if err != nil {
		return nil, err
	}
	rv, err := assignable(v, s.t.Elem())
	if err != nil {
		return nil, err
	}
	p := reflect.New(s.t.Elem())
	p.Elem().Set(rv)
	return p.Interface(), nil
}

// sliceSerializer writes slices as arrays; a nil slice is null.
type sliceSerializer struct {
	t reflect.Type
}

func (s *sliceSerializer) ValueType() reflect.Type { return s.t }

func (s *sliceSerializer) Encode(ctx *EncodeContext, w Writer, v any) error {
	if isNil(v) {
		return w.WriteNull()
	}
	rv := reflect.ValueOf(v)
	if err := w.WriteStartArray(); err != nil {
		return err
	}
	elem := s.t.Elem()
	for i := range rv.Len() {
		if err := EncodeValue(ctx, w, elem, rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return w.WriteEndArray()
}

func (s *sliceSerializer) Decode(ctx *DecodeContext, r Reader) (any, error) {
	switch k := r.CurrentKind(); k {
	case KindNull:
		return reflect.Zero(s.t).Interface(), r.ReadNull()
	case KindArray:
	default:
		return nil, scalarShape(s.t, "array", k)
	}
	if err := r.ReadStartArray(); err != nil {
		return nil, err
	}
	elem := s.t.Elem()
	out := reflect.MakeSlice(s.t, 0, 0)
	for {
		k, err := r.ReadType()
		if err != nil {
			return nil, err
		}
		if k == KindEndOfDocument {
			break
		}
		v, err := DecodeValue(ctx, r, elem)
		if err != nil {
			return nil, err
		}
		rv, err := assignable(v, elem)
		if err != nil {
			return nil, err
		}
		out = reflect.Append(out, rv)
	}
	if err := r.ReadEndArray(); err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// structValueSerializer maps a value-typed field of a class through the
// class map registered for its pointer type. Decoding it into an interface
// slot yields the pointer.
type structValueSerializer struct {
	reg *Registry
	t   reflect.Type
	ptr reflect.Type
}

func (s *structValueSerializer) ValueType() reflect.Type { return s.t }

func (s *structValueSerializer) Convention() DiscriminatorConvention { return s.reg.Convention(s.ptr) }

func (s *structValueSerializer) nominal(t reflect.Type) reflect.Type {
	if t == nil || t == s.t {
		return s.ptr
	}
	return t
}

func (s *structValueSerializer) Encode(ctx *EncodeContext, w Writer, v any) error {
	cls, err := s.reg.Lookup(s.ptr)
	if err != nil {
		return err
	}
	p := reflect.New(s.t)
	p.Elem().Set(reflect.ValueOf(v))
	return cls.Encode(ctx.withNominal(s.nominal(ctx.NominalType)), w, p.Interface())
}

func (s *structValueSerializer) Decode(ctx *DecodeContext, r Reader) (any, error) {
	if r.CurrentKind() == KindNull {
		return reflect.Zero(s.t).Interface(), r.ReadNull()
	}
	cls, err := s.reg.Lookup(s.ptr)
	if err != nil {
		return nil, err
	}
	v, err := cls.Decode(ctx.withNominal(s.nominal(ctx.NominalType)), r)
	if err != nil {
		return nil, err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.Type().Elem() != s.t {
		return v, nil
	}
	if rv.IsNil() {
		return reflect.Zero(s.t).Interface(), nil
	}
	return rv.Elem().Interface(), nil
}
