package bsonmap

import (
	"context"
	"reflect"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	eng "github.com/reoring/bsonmap/internal/engine"
)

// Encode writes v to w as a value of the nominal type. A nil registry means
// Default().
func Encode(ctx context.Context, reg *Registry, w Writer, nominal reflect.Type, v any, opts ...EncodeOpt) error {
	reg = orDefault(reg)
	if err := ctx.Err(); err != nil {
		return err
	}
	if nominal == nil {
		if v == nil {
			return w.WriteNull()
		}
		nominal = reflect.TypeOf(v)
	}
	ser, err := reg.Lookup(nominal)
	if err != nil {
		return err
	}
	ectx := &EncodeContext{Context: ctx, Registry: reg, NominalType: nominal, IDFirst: reg.IDFirst()}
	for _, o := range opts {
		ectx.IDFirst = ectx.IDFirst || o.IDFirst
	}
	return ser.Encode(ectx, w, v)
}

// Decode reads one value of the nominal type from r. Duplicate element and
// depth policies from opts are enforced on the cursor.
func Decode(ctx context.Context, reg *Registry, r Reader, nominal reflect.Type, opts ...DecodeOpt) (any, error) {
	reg = orDefault(reg)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if nominal == nil {
		nominal = anyType
	}
	ser, err := reg.Lookup(nominal)
	if err != nil {
		return nil, err
	}
	r = Enforce(reg, r, opts...)
	return ser.Decode(&DecodeContext{Context: ctx, Registry: reg, NominalType: nominal}, r)
}

// Enforce wraps r with the duplicate element and depth policies of opts.
// Values taken whole with ReadValue or SkipValue are not inspected.
func Enforce(reg *Registry, r Reader, opts ...DecodeOpt) Reader {
	reg = orDefault(reg)
	var opt DecodeOpt
	for _, o := range opts {
		if o.OnDuplicate > opt.OnDuplicate {
			opt.OnDuplicate = o.OnDuplicate
		}
		if o.MaxDepth > 0 {
			opt.MaxDepth = o.MaxDepth
		}
	}
	eo := eng.EnforceOptions{MaxDepth: opt.MaxDepth}
	switch opt.OnDuplicate {
	case Warn:
		eo.OnDuplicate = eng.DupWarn
	case Error:
		eo.OnDuplicate = eng.DupError
	}
	if eo.OnDuplicate == eng.DupWarn {
		log := reg.Logger()
		eo.IssueSink = func(is eng.SimpleIssue) {
			log.Warn(is.Message, zap.String("code", is.Code), zap.String("path", is.Path))
		}
	}
	return eng.WrapWithEnforcement(r, eo)
}

// Marshal encodes v as a tree value.
func Marshal[T any](ctx context.Context, reg *Registry, v T, opts ...EncodeOpt) (Value, error) {
	w := NewTreeWriter()
	if err := Encode(ctx, reg, w, reflect.TypeFor[T](), v, opts...); err != nil {
		return Value{}, err
	}
	return w.Value()
}

// MarshalDocument encodes v and requires the result to be a document.
func MarshalDocument[T any](ctx context.Context, reg *Registry, v T, opts ...EncodeOpt) (*Document, error) {
	out, err := Marshal(ctx, reg, v, opts...)
	if err != nil {
		return nil, err
	}
	d, ok := out.Document()
	if !ok {
		return nil, &ShapeError{Type: reflect.TypeFor[T](), Expected: "document", Got: out.Kind()}
	}
	return d, nil
}

// Unmarshal decodes v into a T.
func Unmarshal[T any](ctx context.Context, reg *Registry, v Value, opts ...DecodeOpt) (T, error) {
	var zero T
	out, err := Decode(ctx, reg, NewTreeReader(v), reflect.TypeFor[T](), opts...)
	if err != nil {
		return zero, err
	}
	if out == nil {
		return zero, nil
	}
	t, ok := out.(T)
	if !ok {
		return zero, &ShapeError{Type: reflect.TypeFor[T](), Detail: "decoded a value of type " + reflect.TypeOf(out).String()}
	}
	return t, nil
}

// UnmarshalDocument decodes d into a T.
func UnmarshalDocument[T any](ctx context.Context, reg *Registry, d *Document, opts ...DecodeOpt) (T, error) {
	return Unmarshal[T](ctx, reg, DocumentValue(d), opts...)
}

// EnsureDocumentID assigns a generated id to v when its class has an id
// member with a generator and the current id is empty. It returns the id.
func EnsureDocumentID(reg *Registry, v any) (any, error) {
	reg = orDefault(reg)
	if isNil(v) {
		return nil, errors.New("bsonmap: EnsureDocumentID requires a value")
	}
	ser, err := reg.Lookup(reflect.TypeOf(v))
	if err != nil {
		return nil, err
	}
	p, ok := ser.(IDProvider)
	if !ok {
		return nil, errors.Newf("bsonmap: %s has no id member", reflect.TypeOf(v))
	}
	id, _, gen, ok := p.DocumentID(v)
	if !ok {
		return nil, errors.Newf("bsonmap: %s has no id member", reflect.TypeOf(v))
	}
	if gen == nil || !gen.IsEmpty(id) {
		return id, nil
	}
	id, err = gen.Generate(v)
	if err != nil {
		return nil, errors.Wrapf(err, "generate id for %s", reflect.TypeOf(v))
	}
	if err := p.SetDocumentID(v, id); err != nil {
		return nil, err
	}
	return id, nil
}
