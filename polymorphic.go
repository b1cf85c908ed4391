package bsonmap

import (
	"reflect"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	anySliceType = reflect.TypeFor[[]any]()

	// naturalTypes are written bare at value positions and decoded back to
	// the same Go type without a tag.
	naturalTypes = map[reflect.Type]bool{
		reflect.TypeFor[string]():    true,
		reflect.TypeFor[bool]():      true,
		reflect.TypeFor[int32]():     true,
		reflect.TypeFor[int64]():     true,
		reflect.TypeFor[float64]():   true,
		reflect.TypeFor[time.Time](): true,
		reflect.TypeFor[Binary]():    true,
		reflect.TypeFor[ObjectID]():  true,
	}
)

// interfaceSerializer dispatches interface-typed slots to the serializer of
// the concrete type, recording it with a discriminator.
type interfaceSerializer struct {
	reg *Registry
	t   reflect.Type
}

func newInterfaceSerializer(reg *Registry, t reflect.Type) *interfaceSerializer {
	return &interfaceSerializer{reg: reg, t: t}
}

func (s *interfaceSerializer) ValueType() reflect.Type { return s.t }

func (s *interfaceSerializer) conv() DiscriminatorConvention { return s.reg.DefaultConvention() }

// resolve peeks with every convention the slot may have been written with
// and returns the first that finds a tag. A nil convention means no tag.
func (s *interfaceSerializer) resolve(r Reader) (DiscriminatorConvention, reflect.Type, error) {
	for _, conv := range s.reg.SlotConventions(s.t) {
		actual, err := conv.ActualType(s.reg, r, s.t)
		if err != nil {
			return nil, nil, err
		}
		if actual != s.t {
			return conv, actual, nil
		}
	}
	return nil, s.t, nil
}

func (s *interfaceSerializer) Encode(ctx *EncodeContext, w Writer, v any) error {
	if isNil(v) {
		return w.WriteNull()
	}
	actual := reflect.TypeOf(v)
	if !actual.AssignableTo(s.t) {
		return &ShapeError{Type: s.t, Detail: "value of type " + actual.String() + " does not implement the slot type"}
	}
	switch vv := v.(type) {
	case *Document:
		return w.WriteValue(DocumentValue(vv))
	case Value:
		return w.WriteValue(vv)
	case []any:
		return s.encodeWith(ctx, w, anySliceType, v)
	}
	if naturalTypes[actual] && ctx.ValuePosition() {
		return writeNatural(w, v)
	}
	if err := s.reg.checkAllowed(actual); err != nil {
		return err
	}
	ser, err := s.reg.Lookup(actual)
	if err != nil {
		return err
	}
	if _, ok := ser.(DiscriminatedSerializer); ok {
		return ser.Encode(ctx.withNominal(s.t), w, v)
	}

	conv := s.conv()
	tag, ok := conv.Discriminator(s.reg, s.t, actual)
	if !ok {
		return &DiscriminatorError{code: CodeDiscriminatorUnknown, Nominal: s.t, Discriminator: StringValue(actual.String())}
	}
	if err := w.WriteStartDocument(); err != nil {
		return err
	}
	if err := w.WriteName(conv.ElementName()); err != nil {
		return err
	}
	if err := w.WriteValue(tag); err != nil {
		return err
	}
	if err := w.WriteName(WrappedValueElement); err != nil {
		return err
	}
	if err := ser.Encode(ctx.Child(actual), w, v); err != nil {
		return err
	}
	return w.WriteEndDocument()
}

func (s *interfaceSerializer) encodeWith(ctx *EncodeContext, w Writer, t reflect.Type, v any) error {
	ser, err := s.reg.Lookup(t)
	if err != nil {
		return err
	}
	return ser.Encode(ctx.withNominal(t), w, v)
}

func (s *interfaceSerializer) Decode(ctx *DecodeContext, r Reader) (any, error) {
	switch k := r.CurrentKind(); k {
	case KindNull:
		return nil, r.ReadNull()
	case KindDocument:
		return s.decodeDocument(ctx, r)
	case KindArray:
		if !anySliceType.AssignableTo(s.t) {
			return nil, &ShapeError{Type: s.t, Expected: "document", Got: k}
		}
		ser, err := s.reg.Lookup(anySliceType)
		if err != nil {
			return nil, err
		}
		return ser.Decode(ctx.withNominal(anySliceType), r)
	default:
		v, err := readNatural(r)
		if err != nil {
			return nil, err
		}
		if !reflect.TypeOf(v).AssignableTo(s.t) {
			return nil, &ShapeError{Type: s.t, Expected: "document", Got: k}
		}
		return v, nil
	}
}

func (s *interfaceSerializer) decodeDocument(ctx *DecodeContext, r Reader) (any, error) {
	conv, actual, err := s.resolve(r)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		if !documentPtrType.AssignableTo(s.t) {
			elements := lo.Map(s.reg.SlotConventions(s.t), func(c DiscriminatorConvention, _ int) string { return c.ElementName() })
			return nil, &ShapeError{Type: s.t, Detail: "document has no " + strings.Join(elements, " or ") + " discriminator"}
		}
		v, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		d, _ := v.Document()
		return d, nil
	}
	ser, err := s.reg.Lookup(actual)
	if err != nil {
		return nil, err
	}
	if _, ok := ser.(DiscriminatedSerializer); ok {
		return ser.Decode(ctx.withNominal(s.t), r)
	}
	s.reg.Logger().Debug("decoding wrapped value",
		zap.Stringer("nominal", s.t), zap.Stringer("actual", actual))
	return s.decodeWrapped(ctx, r, ser, actual, conv.ElementName())
}

// decodeWrapped reads exactly {<element>: tag, "_v": value}.
func (s *interfaceSerializer) decodeWrapped(ctx *DecodeContext, r Reader, ser Serializer, actual reflect.Type, element string) (any, error) {
	shape := func(detail string) error {
		return &ShapeError{Type: s.t, Detail: "wrapped value: " + detail}
	}
	if err := r.ReadStartDocument(); err != nil {
		return nil, err
	}
	if err := expectElement(r, element); err != nil {
		return nil, shape(err.Error())
	}
	if err := r.SkipValue(); err != nil {
		return nil, err
	}
	if err := expectElement(r, WrappedValueElement); err != nil {
		return nil, shape(err.Error())
	}
	v, err := ser.Decode(ctx.Child(actual), r)
	if err != nil {
		return nil, err
	}
	k, err := r.ReadType()
	if err != nil {
		return nil, err
	}
	if k != KindEndOfDocument {
		name, _ := r.ReadName()
		return nil, shape("unexpected element " + name)
	}
	if err := r.ReadEndDocument(); err != nil {
		return nil, err
	}
	return v, nil
}

type elementMismatch struct{ want, got string }

func (e elementMismatch) Error() string {
	if e.got == "" {
		return "expected element " + e.want + ", got end of document"
	}
	return "expected element " + e.want + ", got " + e.got
}

func expectElement(r Reader, want string) error {
	k, err := r.ReadType()
	if err != nil {
		return err
	}
	if k == KindEndOfDocument {
		return elementMismatch{want: want}
	}
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	if name != want {
		return elementMismatch{want: want, got: name}
	}
	return nil
}

func writeNatural(w Writer, v any) error {
	switch x := v.(type) {
	case string:
		return w.WriteString(x)
	case bool:
		return w.WriteBoolean(x)
	case int32:
		return w.WriteInt32(x)
	case int64:
		return w.WriteInt64(x)
	case float64:
		return w.WriteDouble(x)
	case time.Time:
		return w.WriteDateTime(x)
	case Binary:
		return w.WriteBinary(x)
	case ObjectID:
		return w.WriteObjectID(x)
	}
	return &ShapeError{Type: reflect.TypeOf(v), Detail: "not a natural scalar"}
}

// readNatural decodes an untagged scalar into its natural Go type.
func readNatural(r Reader) (any, error) {
	switch k := r.CurrentKind(); k {
	case KindString:
		return r.ReadString()
	case KindBoolean:
		return r.ReadBoolean()
	case KindInt32:
		return r.ReadInt32()
	case KindInt64:
		return r.ReadInt64()
	case KindDouble:
		return r.ReadDouble()
	case KindDateTime:
		return r.ReadDateTime()
	case KindBinary:
		return r.ReadBinary()
	case KindObjectID:
		return r.ReadObjectID()
	default:
		return nil, &ShapeError{Type: anyType, Expected: "scalar", Got: k}
	}
}
