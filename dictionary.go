package bsonmap

import (
	"iter"
	"reflect"
	"slices"
	"strings"

	"go.uber.org/zap"
)

// DictionarySerializer is implemented by serializers of key/value types.
type DictionarySerializer interface {
	Serializer
	Representation() DictionaryRepresentation
	KeyType() reflect.Type
	ElemType() reflect.Type
}

type dictEntry struct {
	key   any
	value any
}

// orderedDictionary is implemented by *OrderedMap. Entries are written in
// insertion order.
type orderedDictionary interface {
	dictKeyType() reflect.Type
	dictValueType() reflect.Type
	dictEntries() []dictEntry
	dictPut(k, v any) error
}

var orderedDictionaryType = reflect.TypeFor[orderedDictionary]()

// OrderedMap is a map that remembers insertion order. The zero value is ready
// to use.
type OrderedMap[K comparable, V any] struct {
	keys []K
	vals map[K]V
}

func NewOrderedMap[K comparable, V any]() *OrderedMap[K, V] {
	return &OrderedMap[K, V]{vals: map[K]V{}}
}

// Set stores v under k. A new key is appended; an existing key keeps its position.
func (m *OrderedMap[K, V]) Set(k K, v V) {
	if m.vals == nil {
		m.vals = map[K]V{}
	}
	if _, ok := m.vals[k]; !ok {
		m.keys = append(m.keys, k)
	}
	m.vals[k] = v
}

func (m *OrderedMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.vals[k]
	return v, ok
}

func (m *OrderedMap[K, V]) Delete(k K) {
	if _, ok := m.vals[k]; !ok {
		return
	}
	delete(m.vals, k)
	if i := slices.Index(m.keys, k); i >= 0 {
		m.keys = slices.Delete(m.keys, i, i+1)
	}
}

func (m *OrderedMap[K, V]) Len() int { return len(m.keys) }

func (m *OrderedMap[K, V]) Keys() []K { return slices.Clone(m.keys) }

// All iterates in insertion order.
func (m *OrderedMap[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, k := range m.keys {
			if !yield(k, m.vals[k]) {
				return
			}
		}
	}
}

func (m *OrderedMap[K, V]) dictKeyType() reflect.Type   { return reflect.TypeFor[K]() }
func (m *OrderedMap[K, V]) dictValueType() reflect.Type { return reflect.TypeFor[V]() }

func (m *OrderedMap[K, V]) dictEntries() []dictEntry {
	out := make([]dictEntry, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, dictEntry{key: k, value: m.vals[k]})
	}
	return out
}

func (m *OrderedMap[K, V]) dictPut(k, v any) error {
	key, ok := k.(K)
	if !ok {
		return &ShapeError{Type: reflect.TypeFor[K](), Detail: "dictionary key has type " + reflect.TypeOf(k).String()}
	}
	var val V
	if v != nil {
		if val, ok = v.(V); !ok {
			return &ShapeError{Type: reflect.TypeFor[V](), Detail: "dictionary value has type " + reflect.TypeOf(v).String()}
		}
	}
	m.Set(key, val)
	return nil
}

func isDictionaryType(t reflect.Type) bool {
	return t.Kind() == reflect.Map || (t.Kind() == reflect.Pointer && t.Implements(orderedDictionaryType))
}

// dictionarySerializer writes Go maps and OrderedMaps in one of three shapes.
type dictionarySerializer struct {
	reg     *Registry
	t       reflect.Type
	keyT    reflect.Type
	valT    reflect.Type
	rep     DictionaryRepresentation
	ordered bool
}

func newDictionarySerializer(reg *Registry, t reflect.Type, rep DictionaryRepresentation) *dictionarySerializer {
	s := &dictionarySerializer{reg: reg, t: t, rep: rep}
	if t.Kind() == reflect.Map {
		s.keyT, s.valT = t.Key(), t.Elem()
		return s
	}
	zero := reflect.New(t.Elem()).Interface().(orderedDictionary)
	s.keyT, s.valT, s.ordered = zero.dictKeyType(), zero.dictValueType(), true
	return s
}

func (s *dictionarySerializer) ValueType() reflect.Type { return s.t }
func (s *dictionarySerializer) KeyType() reflect.Type   { return s.keyT }
func (s *dictionarySerializer) ElemType() reflect.Type  { return s.valT }

// Representation resolves Default to the registry's representation.
func (s *dictionarySerializer) Representation() DictionaryRepresentation {
	if s.rep != RepresentationDefault {
		return s.rep
	}
	if rep := s.reg.cfg.dictionary; rep != RepresentationDefault {
		return rep
	}
	return RepresentationDynamic
}

type keyedEntry struct {
	dictEntry
	name     string
	isString bool
}

// keyString serializes k through the key serializer into a scratch document
// and reports whether it produced a string.
func (s *dictionarySerializer) keyString(ctx *EncodeContext, k any) (string, bool, error) {
	w := NewTreeWriter()
	if err := w.WriteStartDocument(); err != nil {
		return "", false, err
	}
	if err := w.WriteName("k"); err != nil {
		return "", false, err
	}
	if err := EncodeValue(ctx, w, s.keyT, k); err != nil {
		return "", false, err
	}
	if err := w.WriteEndDocument(); err != nil {
		return "", false, err
	}
	d, err := w.Document()
	if err != nil {
		return "", false, err
	}
	v, _ := d.Lookup("k")
	if str, ok := v.StringValue(); ok {
		return str, true, nil
	}
	return v.String(), false, nil
}

func (s *dictionarySerializer) entries(ctx *EncodeContext, v any) ([]keyedEntry, error) {
	var raw []dictEntry
	if s.ordered {
		raw = v.(orderedDictionary).dictEntries()
	} else {
		rv := reflect.ValueOf(v)
		raw = make([]dictEntry, 0, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			raw = append(raw, dictEntry{key: it.Key().Interface(), value: it.Value().Interface()})
		}
	}
	out := make([]keyedEntry, len(raw))
	for i, e := range raw {
		name, isString, err := s.keyString(ctx, e.key)
		if err != nil {
			return nil, err
		}
		out[i] = keyedEntry{dictEntry: e, name: name, isString: isString}
	}
	if !s.ordered {
		slices.SortFunc(out, func(a, b keyedEntry) int { return strings.Compare(a.name, b.name) })
	}
	return out, nil
}

// validElementName reports keys that can be document element names.
func validElementName(k string) bool {
	return k != "" && k[0] != '$' && !strings.ContainsAny(k, ".\x00")
}

func (s *dictionarySerializer) Encode(ctx *EncodeContext, w Writer, v any) error {
	if isNil(v) {
		return w.WriteNull()
	}
	entries, err := s.entries(ctx, v)
	if err != nil {
		return err
	}
	rep := s.Representation()
	if rep == RepresentationDynamic {
		rep = RepresentationDocument
		for _, e := range entries {
			if !e.isString || !validElementName(e.name) {
				s.reg.Logger().Debug("dictionary key cannot be an element name",
					zap.Stringer("type", s.t), zap.String("key", e.name))
				rep = RepresentationArrayOfArrays
				break
			}
		}
	}

	switch rep {
	case RepresentationDocument:
		if err := w.WriteStartDocument(); err != nil {
			return err
		}
		for _, e := range entries {
			if !e.isString {
				return &ShapeError{Type: s.t, Detail: "document representation requires string keys, got " + e.name}
			}
			if err := w.WriteName(e.name); err != nil {
				return err
			}
			if err := EncodeValue(ctx, w, s.valT, e.value); err != nil {
				return err
			}
		}
		return w.WriteEndDocument()
	case RepresentationArrayOfArrays, RepresentationArrayOfDocuments:
		if err := w.WriteStartArray(); err != nil {
			return err
		}
		for _, e := range entries {
			if err := s.encodePair(ctx, w, rep, e.dictEntry); err != nil {
				return err
			}
		}
		return w.WriteEndArray()
	}
	return &ShapeError{Type: s.t, Detail: "unknown dictionary representation " + rep.String()}
}

func (s *dictionarySerializer) encodePair(ctx *EncodeContext, w Writer, rep DictionaryRepresentation, e dictEntry) error {
	if rep == RepresentationArrayOfArrays {
		if err := w.WriteStartArray(); err != nil {
			return err
		}
		if err := EncodeValue(ctx, w, s.keyT, e.key); err != nil {
			return err
		}
		if err := EncodeValue(ctx, w, s.valT, e.value); err != nil {
			return err
		}
		return w.WriteEndArray()
	}
	if err := w.WriteStartDocument(); err != nil {
		return err
	}
	if err := w.WriteName("k"); err != nil {
		return err
	}
	if err := EncodeValue(ctx, w, s.keyT, e.key); err != nil {
		return err
	}
	if err := w.WriteName("v"); err != nil {
		return err
	}
	if err := EncodeValue(ctx, w, s.valT, e.value); err != nil {
		return err
	}
	return w.WriteEndDocument()
}

// Decode accepts every representation regardless of the configured one.
func (s *dictionarySerializer) Decode(ctx *DecodeContext, r Reader) (any, error) {
	switch k := r.CurrentKind(); k {
	case KindNull:
		if err := r.ReadNull(); err != nil {
			return nil, err
		}
		return reflect.Zero(s.t).Interface(), nil
	case KindDocument:
		return s.decodeDocument(ctx, r)
	case KindArray:
		return s.decodeArray(ctx, r)
	default:
		return nil, &ShapeError{Type: s.t, Expected: "document or array", Got: k}
	}
}

type dictBuilder struct {
	s   *dictionarySerializer
	out reflect.Value
}

func (s *dictionarySerializer) newBuilder() *dictBuilder {
	if s.ordered {
		return &dictBuilder{s: s, out: reflect.New(s.t.Elem())}
	}
	return &dictBuilder{s: s, out: reflect.MakeMap(s.t)}
}

func (b *dictBuilder) put(k, v any) error {
	if b.s.ordered {
		return b.out.Interface().(orderedDictionary).dictPut(k, v)
	}
	kv, err := assignable(k, b.s.keyT)
	if err != nil {
		return err
	}
	vv, err := assignable(v, b.s.valT)
	if err != nil {
		return err
	}
	b.out.SetMapIndex(kv, vv)
	return nil
}

func (s *dictionarySerializer) decodeDocument(ctx *DecodeContext, r Reader) (any, error) {
	b := s.newBuilder()
	if err := r.ReadStartDocument(); err != nil {
		return nil, err
	}
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
		key, err := DecodeValue(ctx, NewTreeReader(StringValue(name)), s.keyT)
		if err != nil {
			return nil, err
		}
		val, err := DecodeValue(ctx, r, s.valT)
		if err != nil {
			return nil, err
		}
		if err := b.put(key, val); err != nil {
			return nil, err
		}
	}
	if err := r.ReadEndDocument(); err != nil {
		return nil, err
	}
	return b.out.Interface(), nil
}

func (s *dictionarySerializer) decodeArray(ctx *DecodeContext, r Reader) (any, error) {
	b := s.newBuilder()
	if err := r.ReadStartArray(); err != nil {
		return nil, err
	}
	for {
		k, err := r.ReadType()
		if err != nil {
			return nil, err
		}
		if k == KindEndOfDocument {
			break
		}
		var key, val any
		switch k {
		case KindArray:
			key, val, err = s.decodeArrayPair(ctx, r)
		case KindDocument:
			key, val, err = s.decodeDocumentPair(ctx, r)
		default:
			err = &ShapeError{Type: s.t, Expected: "dictionary entry", Got: k}
		}
		if err != nil {
			return nil, err
		}
		if err := b.put(key, val); err != nil {
			return nil, err
		}
	}
	if err := r.ReadEndArray(); err != nil {
		return nil, err
	}
	return b.out.Interface(), nil
}

func (s *dictionarySerializer) decodeArrayPair(ctx *DecodeContext, r Reader) (any, any, error) {
	shape := &ShapeError{Type: s.t, Detail: "dictionary entry must be a [key, value] pair"}
	if err := r.ReadStartArray(); err != nil {
		return nil, nil, err
	}
	var kv [2]any
	for i := range kv {
		k, err := r.ReadType()
		if err != nil {
			return nil, nil, err
		}
		if k == KindEndOfDocument {
			return nil, nil, shape
		}
		nominal := s.keyT
		if i == 1 {
			nominal = s.valT
		}
		if kv[i], err = DecodeValue(ctx, r, nominal); err != nil {
			return nil, nil, err
		}
	}
	if k, err := r.ReadType(); err != nil {
		return nil, nil, err
	} else if k != KindEndOfDocument {
		return nil, nil, shape
	}
	if err := r.ReadEndArray(); err != nil {
		return nil, nil, err
	}
	return kv[0], kv[1], nil
}

func (s *dictionarySerializer) decodeDocumentPair(ctx *DecodeContext, r Reader) (any, any, error) {
	shape := func(err error) error {
		return &ShapeError{Type: s.t, Detail: "dictionary entry: " + err.Error()}
	}
	if err := r.ReadStartDocument(); err != nil {
		return nil, nil, err
	}
	if err := expectElement(r, "k"); err != nil {
		return nil, nil, shape(err)
	}
	key, err := DecodeValue(ctx, r, s.keyT)
	if err != nil {
		return nil, nil, err
	}
	if err := expectElement(r, "v"); err != nil {
		return nil, nil, shape(err)
	}
	val, err := DecodeValue(ctx, r, s.valT)
	if err != nil {
		return nil, nil, err
	}
	k, err := r.ReadType()
	if err != nil {
		return nil, nil, err
	}
	if k != KindEndOfDocument {
		name, _ := r.ReadName()
		return nil, nil, shape(elementMismatch{want: "end of document", got: name})
	}
	if err := r.ReadEndDocument(); err != nil {
		return nil, nil, err
	}
	return key, val, nil
}
