package bsonmap

import (
	"reflect"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var anyType = reflect.TypeFor[any]()

// Initializer provides optional hooks around decoding. BeginInit runs right
// after an instance is constructed directly (never for creator-built
// instances); EndInit runs once the instance is fully populated. If it is not
// implemented, both steps are skipped.
type Initializer interface {
	BeginInit()
	EndInit() error
}

type lazySerializer struct {
	once sync.Once
	s    Serializer
	err  error
}

// classMapSerializer encodes and decodes a class through its frozen map.
type classMapSerializer struct {
	reg     *Registry
	cm      *ClassMap
	conv    DiscriminatorConvention
	members []lazySerializer
}

func newClassMapSerializer(reg *Registry, cm *ClassMap) *classMapSerializer {
	return &classMapSerializer{
		reg:     reg,
		cm:      cm,
		conv:    reg.classConvention(cm),
		members: make([]lazySerializer, len(cm.members)),
	}
}

func (s *classMapSerializer) ValueType() reflect.Type             { return s.cm.typ }
func (s *classMapSerializer) Convention() DiscriminatorConvention { return s.conv }
func (s *classMapSerializer) ClassMap() *ClassMap                 { return s.cm }

// memberSerializer resolves lazily so that self-referential classes can be
// registered before their members' types are known.
func (s *classMapSerializer) memberSerializer(mm *MemberMap) (Serializer, error) {
	l := &s.members[mm.index]
	l.once.Do(func() {
		switch {
		case mm.serializer != nil:
			l.s = mm.serializer
		case mm.representation != RepresentationDefault:
			l.s, l.err = s.reg.dictionaryFor(mm.memberType, mm.representation)
		default:
			l.s, l.err = s.reg.Lookup(mm.memberType)
		}
	})
	return l.s, l.err
}

// MemberInfo implements DocumentSerializer.
func (s *classMapSerializer) MemberInfo(memberName string) (MemberInfo, bool) {
	mm, ok := s.cm.MemberByName(memberName)
	if !ok {
		return MemberInfo{}, false
	}
	ser, err := s.memberSerializer(mm)
	if err != nil {
		return MemberInfo{}, false
	}
	return MemberInfo{MemberName: mm.memberName, ElementName: mm.elementName, NominalType: mm.memberType, Serializer: ser}, true
}

// DocumentID implements IDProvider.
func (s *classMapSerializer) DocumentID(v any) (any, reflect.Type, IDGenerator, bool) {
	id := s.cm.id
	if id == nil || isNil(v) {
		return nil, nil, nil, false
	}
	return id.get(v), id.memberType, id.idGenerator, true
}

// SetDocumentID implements IDProvider.
func (s *classMapSerializer) SetDocumentID(v any, idValue any) error {
	id := s.cm.id
	if id == nil {
		return &ClassMapError{Class: s.cm.typ, Detail: "class has no id member"}
	}
	return wrapMember(s.cm, id, id.Set(v, idValue))
}

func (s *classMapSerializer) Decode(ctx *DecodeContext, r Reader) (any, error) {
	if err := ctx.err(); err != nil {
		return nil, err
	}
	cm := s.cm
	switch k := r.CurrentKind(); k {
	case KindNull:
		if err := r.ReadNull(); err != nil {
			return nil, err
		}
		return reflect.Zero(cm.typ).Interface(), nil
	case KindDocument:
	default:
		return nil, &ShapeError{Type: cm.typ, Expected: "document", Got: k}
	}

	nominal := ctx.NominalType
	if nominal == nil {
		nominal = cm.typ
	}
	actual, err := s.conv.ActualType(s.reg, r, nominal)
	if err != nil {
		return nil, err
	}
	if actual != cm.typ {
		ser, err := s.reg.Lookup(actual)
		if err != nil {
			return nil, err
		}
		s.reg.Logger().Debug("delegating decode to actual type",
			zap.Stringer("nominal", nominal), zap.Stringer("actual", actual))
		return ser.Decode(ctx.withNominal(nominal), r)
	}
	return s.decodeClass(ctx, r)
}

type extraElement struct {
	name  string
	value any
}

func (s *classMapSerializer) decodeClass(ctx *DecodeContext, r Reader) (any, error) {
	cm := s.cm
	var (
		obj    any
		values map[string]any
		extras []extraElement
	)
	if cm.HasCreators() {
		values = make(map[string]any, len(cm.members))
	} else {
		o, err := cm.New()
		if err != nil {
			return nil, err
		}
		obj = o
		if in, ok := obj.(Initializer); ok {
			in.BeginInit()
		}
	}

	presence := acquirePresence(len(cm.members))
	defer presence.release()

	if err := r.ReadStartDocument(); err != nil {
		return nil, err
	}
	discriminator := s.conv.ElementName()
	for {
		k, err := r.ReadType()
		if err != nil {
			return nil, err
		}
		if k == KindEndOfDocument {
			break
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		mm, hit := cm.byElement[name]
		switch {
		case hit && !mm.isExtra:
			presence.mark(mm.index)
			if obj != nil && mm.readOnly {
				if err := r.SkipValue(); err != nil {
					return nil, err
				}
				continue
			}
			v, err := s.decodeMember(ctx, r, mm)
			if err != nil {
				return nil, wrapMember(cm, mm, err)
			}
			if obj == nil {
				values[name] = v
			} else if err := mm.Set(obj, v); err != nil {
				return nil, wrapMember(cm, mm, err)
			}
		case hit:
			presence.mark(mm.index)
			fallthrough
		case !hit && cm.extra != nil && name != discriminator && !s.reg.IsReservedElement(name):
			v, err := s.decodeExtra(r)
			if err != nil {
				return nil, wrapMember(cm, cm.extra, err)
			}
			extras = append(extras, extraElement{name: name, value: v})
		case name == discriminator || s.reg.IsReservedElement(name) || cm.ignoreExtra:
			if err := r.SkipValue(); err != nil {
				return nil, err
			}
		default:
			return nil, &UnmappedFieldError{Class: cm.typ, Element: name}
		}
	}
	if err := r.ReadEndDocument(); err != nil {
		return nil, err
	}

	err := presence.eachMissing(func(i int) error {
		mm := cm.members[i]
		switch {
		case mm.readOnly, mm.isExtra:
			return nil
		case mm.required:
			return &MissingRequiredFieldError{Class: cm.typ, Member: mm.memberName, Element: mm.elementName}
		case mm.defaultFn == nil:
			return nil
		case obj == nil:
			values[mm.elementName] = mm.Default()
			return nil
		}
		return wrapMember(cm, mm, mm.Set(obj, mm.Default()))
	})
	if err != nil {
		return nil, err
	}

	if obj == nil {
		if obj, err = s.construct(values); err != nil {
			return nil, err
		}
	}
	if len(extras) > 0 {
		if err := s.applyExtras(obj, extras); err != nil {
			return nil, wrapMember(cm, cm.extra, err)
		}
	}
	if in, ok := obj.(Initializer); ok {
		if err := in.EndInit(); err != nil {
			return nil, errors.Wrapf(err, "bsonmap: EndInit of %s", cm.typ)
		}
	}
	return obj, nil
}

// decodeMember assigns wire nulls directly unless the member serializer opts in.
func (s *classMapSerializer) decodeMember(ctx *DecodeContext, r Reader, mm *MemberMap) (any, error) {
	ser, err := s.memberSerializer(mm)
	if err != nil {
		return nil, err
	}
	if r.CurrentKind() == KindNull {
		if nd, ok := ser.(NullDecoder); !ok || !nd.DecodesNull() {
			return nil, r.ReadNull()
		}
	}
	return ser.Decode(ctx.Child(mm.memberType), r)
}

// decodeExtra reads an unmapped element without resolving discriminators, so
// tags of types unknown to this registry are captured as they are.
func (s *classMapSerializer) decodeExtra(r Reader) (any, error) {
	v, err := r.ReadValue()
	if err != nil || s.cm.extra.memberType == documentPtrType {
		return v, err
	}
	return genericValue(v), nil
}

// genericValue maps a value onto the Go types an untagged any slot decodes
// to: *Document, []any, natural scalars and nil.
func genericValue(v Value) any {
	switch v.Kind() {
	case KindDocument:
		d, _ := v.Document()
		return d
	case KindArray:
		items, _ := v.Array()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = genericValue(it)
		}
		return out
	case KindString:
		x, _ := v.StringValue()
		return x
	case KindBoolean:
		x, _ := v.Boolean()
		return x
	case KindInt32:
		x, _ := v.Int32()
		return x
	case KindInt64:
		x, _ := v.Int64()
		return x
	case KindDouble:
		x, _ := v.Double()
		return x
	case KindDateTime:
		x, _ := v.DateTime()
		return x
	case KindBinary:
		x, _ := v.Binary()
		return x
	case KindObjectID:
		x, _ := v.ObjectID()
		return x
	}
	return nil
}

func (s *classMapSerializer) applyExtras(obj any, extras []extraElement) error {
	mm := s.cm.extra
	s.reg.Logger().Debug("captured extra elements",
		zap.Stringer("class", s.cm.typ), zap.Int("count", len(extras)))
	switch sink := mm.get(obj).(type) {
	case *Document:
		if sink == nil {
			sink = NewDocument()
			if err := mm.Set(obj, sink); err != nil {
				return err
			}
		}
		for _, e := range extras {
			sink.Set(e.name, e.value.(Value))
		}
	case map[string]any:
		if sink == nil {
			sink = make(map[string]any, len(extras))
			if err := mm.Set(obj, sink); err != nil {
				return err
			}
		}
		for _, e := range extras {
			sink[e.name] = e.value
		}
	}
	return nil
}

// construct picks the creator consuming the most accumulated values, invokes
// it, and assigns whatever it did not consume.
func (s *classMapSerializer) construct(values map[string]any) (any, error) {
	cm := s.cm
	cr, err := s.chooseCreator(values)
	if err != nil {
		return nil, err
	}
	args := make([]any, len(cr.params))
	consumed := make(map[string]bool, len(cr.params))
	for i, p := range cr.params {
		if v, ok := values[p.Element]; ok {
			args[i] = v
		} else {
			args[i] = cm.byElement[p.Element].Default()
		}
		consumed[p.Element] = true
	}
	obj, err := cr.factory(args)
	if err != nil {
		return nil, &ConstructionError{Class: cm.typ, Creator: true, Err: err}
	}
	if isNil(obj) {
		return nil, &ConstructionError{Class: cm.typ, Creator: true}
	}
	if got := reflect.TypeOf(obj); got != cm.typ {
		return nil, &ConstructionError{Class: cm.typ, Creator: true, Err: errors.Newf("creator returned %s", got)}
	}
	for _, mm := range cm.members {
		v, ok := values[mm.elementName]
		if !ok || consumed[mm.elementName] || mm.readOnly || mm.isExtra {
			continue
		}
		if err := mm.Set(obj, v); err != nil {
			return nil, wrapMember(cm, mm, err)
		}
	}
	return obj, nil
}

func (s *classMapSerializer) chooseCreator(values map[string]any) (*Creator, error) {
	var (
		chosen *Creator
		best   = -1
		ties   int
	)
	for _, cr := range s.cm.creators {
		n, ok := 0, true
		for _, p := range cr.params {
			if _, present := values[p.Element]; present {
				n++
			} else if !s.cm.byElement[p.Element].HasDefault() {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		switch {
		case n > best:
			chosen, best, ties = cr, n, 1
		case n == best:
			ties++
		}
	}
	if chosen == nil || ties > 1 {
		names := make([]string, 0, len(values))
		for k := range values {
			names = append(names, k)
		}
		slices.Sort(names)
		e := &AmbiguousConstructionError{Class: s.cm.typ, Elements: names}
		if chosen != nil {
			e.Matching, e.Consumed = ties, best
		}
		return nil, e
	}
	s.reg.Logger().Debug("selected creator",
		zap.Stringer("class", s.cm.typ), zap.Int("consumed", best), zap.Int("params", len(chosen.params)))
	return chosen, nil
}

func (s *classMapSerializer) Encode(ctx *EncodeContext, w Writer, v any) error {
	if err := ctx.err(); err != nil {
		return err
	}
	if isNil(v) {
		return w.WriteNull()
	}
	if actual := reflect.TypeOf(v); actual != s.cm.typ {
		if err := s.reg.checkAllowed(actual); err != nil {
			return err
		}
		ser, err := s.reg.Lookup(actual)
		if err != nil {
			return err
		}
		s.reg.Logger().Debug("delegating encode to runtime type",
			zap.Stringer("declared", s.cm.typ), zap.Stringer("actual", actual))
		return ser.Encode(ctx, w, v)
	}
	nominal := ctx.NominalType
	if nominal == nil {
		nominal = s.cm.typ
	}
	return s.encodeClass(ctx, w, v, nominal)
}

func (s *classMapSerializer) shouldWriteDiscriminator(nominal reflect.Type) bool {
	cm := s.cm
	return (nominal != cm.typ || cm.discriminatorRequired || cm.HasRootClass()) && !cm.anonymous
}

func (s *classMapSerializer) encodeClass(ctx *EncodeContext, w Writer, obj any, nominal reflect.Type) error {
	cm := s.cm
	if err := w.WriteStartDocument(); err != nil {
		return err
	}
	idFirst := cm.id != nil && ctx.IDFirst
	if idFirst {
		if err := s.encodeMember(ctx, w, obj, cm.id); err != nil {
			return err
		}
	}
	if s.shouldWriteDiscriminator(nominal) {
		if tag, ok := s.conv.Discriminator(s.reg, nominal, cm.typ); ok {
			if err := w.WriteName(s.conv.ElementName()); err != nil {
				return err
			}
			if err := w.WriteValue(tag); err != nil {
				return err
			}
		}
	}
	for _, mm := range cm.members {
		if idFirst && mm == cm.id {
			continue
		}
		var err error
		if mm.isExtra {
			err = s.encodeExtra(ctx, w, obj, mm)
		} else {
			err = s.encodeMember(ctx, w, obj, mm)
		}
		if err != nil {
			return err
		}
	}
	return w.WriteEndDocument()
}

func (s *classMapSerializer) encodeMember(ctx *EncodeContext, w Writer, obj any, mm *MemberMap) error {
	v := mm.get(obj)
	if !mm.ShouldSerialize(obj, v) {
		return nil
	}
	ser, err := s.memberSerializer(mm)
	if err != nil {
		return wrapMember(s.cm, mm, err)
	}
	if err := w.WriteName(mm.elementName); err != nil {
		return err
	}
	return wrapMember(s.cm, mm, ser.Encode(ctx.Child(mm.memberType), w, v))
}

// encodeExtra flattens the sink into the enclosing document.
func (s *classMapSerializer) encodeExtra(ctx *EncodeContext, w Writer, obj any, mm *MemberMap) error {
	switch sink := mm.get(obj).(type) {
	case *Document:
		for _, e := range sink.Elements() {
			if err := w.WriteName(e.Name); err != nil {
				return err
			}
			if err := w.WriteValue(e.Value); err != nil {
				return err
			}
		}
	case map[string]any:
		keys := make([]string, 0, len(sink))
		for k := range sink {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if err := w.WriteName(k); err != nil {
				return err
			}
			if err := EncodeValue(ctx, w, anyType, sink[k]); err != nil {
				return wrapMember(s.cm, mm, err)
			}
		}
	}
	return nil
}
