package dsl

import (
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/reoring/bsonmap"
	"github.com/reoring/bsonmap/config"
)

// ClassOf returns a builder for the class map of *T.
func ClassOf[T any]() *ClassBuilder[T] {
	return &ClassBuilder[T]{def: bsonmap.ClassMapDef{Type: reflect.TypeFor[*T]()}}
}

// ClassBuilder collects member and class declarations until Freeze.
type ClassBuilder[T any] struct {
	def      bsonmap.ClassMapDef
	members  []*memberDraft
	creators []creatorDraft
	settings *config.ClassSettings
	err      error
}

type memberDraft struct {
	def  bsonmap.MemberDef
	auto bool
}

type creatorDraft struct {
	elements []string
	fn       func(Args) (any, error)
}

// MemberStep configures the member added last.
type MemberStep[T any] struct {
	b *ClassBuilder[T]
	m *memberDraft
}

// Member maps element to the accessor. A member added by AutoMap with the
// same member name is replaced in place.
func (b *ClassBuilder[T]) Member(element string, a Accessor[T]) *MemberStep[T] {
	d := &memberDraft{def: bsonmap.MemberDef{
		MemberName:  a.name,
		ElementName: element,
		Type:        a.typ,
		Get:         func(obj any) any { return a.get(obj.(*T)) },
		ReadOnly:    a.set == nil,
	}}
	if a.set != nil {
		d.def.Set = func(obj any, v any) error { return a.set(obj.(*T), v) }
	}
	if i := lo.IndexOf(lo.Map(b.members, func(m *memberDraft, _ int) string { return m.def.MemberName }), a.name); i >= 0 && b.members[i].auto {
		b.members[i] = d
	} else {
		b.members = append(b.members, d)
	}
	return &MemberStep[T]{b: b, m: d}
}

// Discriminator sets the tag written for this class.
func (b *ClassBuilder[T]) Discriminator(tag string) *ClassBuilder[T] {
	b.def.Discriminator = tag
	return b
}

// DiscriminatorRequired writes the tag even when the slot type is the class itself.
func (b *ClassBuilder[T]) DiscriminatorRequired() *ClassBuilder[T] {
	b.def.DiscriminatorRequired = true
	return b
}

// RootClass marks the root of a polymorphic hierarchy.
func (b *ClassBuilder[T]) RootClass() *ClassBuilder[T] {
	b.def.RootClass = true
	return b
}

// Extends inherits the members of parent. embedded returns the parent
// instance embedded in t, typically &t.Parent.
func (b *ClassBuilder[T]) Extends(parent *bsonmap.ClassMap, embedded func(t *T) any) *ClassBuilder[T] {
	b.def.Parent = parent
	b.def.ParentAccessor = func(obj any) any { return embedded(obj.(*T)) }
	return b
}

// IgnoreExtraElements drops unmapped elements instead of failing.
func (b *ClassBuilder[T]) IgnoreExtraElements() *ClassBuilder[T] {
	b.def.IgnoreExtraElements = true
	return b
}

// Anonymous never writes a discriminator.
func (b *ClassBuilder[T]) Anonymous() *ClassBuilder[T] {
	b.def.Anonymous = true
	return b
}

// Convention overrides the discriminator convention.
func (b *ClassBuilder[T]) Convention(c bsonmap.DiscriminatorConvention) *ClassBuilder[T] {
	b.def.Convention = c
	return b
}

// New sets the factory used for direct construction.
func (b *ClassBuilder[T]) New(fn func() *T) *ClassBuilder[T] {
	b.def.New = func() any { return fn() }
	return b
}

// Creator declares a construction path consuming elements.
func (b *ClassBuilder[T]) Creator(fn func(Args) (*T, error), elements ...string) *ClassBuilder[T] {
	b.creators = append(b.creators, creatorDraft{
		elements: append([]string(nil), elements...),
		fn: func(a Args) (any, error) {
			t, err := fn(a)
			if err != nil || t == nil {
				return nil, err
			}
			return t, nil
		},
	})
	return b
}

// WithSettings applies configuration overrides at freeze time.
func (b *ClassBuilder[T]) WithSettings(cs config.ClassSettings) *ClassBuilder[T] {
	b.settings = &cs
	return b
}

// Freeze validates the declarations and returns the class map.
func (b *ClassBuilder[T]) Freeze() (*bsonmap.ClassMap, error) {
	if b.err != nil {
		return nil, b.err
	}
	def := b.def
	def.Members = lo.Map(b.members, func(m *memberDraft, _ int) bsonmap.MemberDef { return m.def })
	renamed := map[string]string{}
	if cs := b.settings; cs != nil {
		if cs.Discriminator != "" {
			def.Discriminator = cs.Discriminator
		}
		if cs.DiscriminatorRequired != nil {
			def.DiscriminatorRequired = *cs.DiscriminatorRequired
		}
		if cs.IgnoreExtraElements != nil {
			def.IgnoreExtraElements = *cs.IgnoreExtraElements
		}
		for i := range def.Members {
			m := &def.Members[i]
			if el, ok := cs.Elements[m.MemberName]; ok {
				renamed[m.ElementName] = el
				m.ElementName = el
			}
		}
		for _, el := range cs.Required {
			i := lo.IndexOf(lo.Map(def.Members, func(m bsonmap.MemberDef, _ int) string { return m.ElementName }), el)
			if i < 0 {
				return nil, errors.Newf("dsl: required element %q is not mapped on %s", el, def.Type)
			}
			def.Members[i].Required = true
		}
	}
	for _, c := range b.creators {
		elements := lo.Map(c.elements, func(el string, _ int) string {
			if to, ok := renamed[el]; ok {
				return to
			}
			return el
		})
		fn := c.fn
		def.Creators = append(def.Creators, bsonmap.CreatorDef{
			Elements: elements,
			Factory: func(args []any) (any, error) {
				return fn(Args{elements: elements, values: args})
			},
		})
	}
	return bsonmap.FreezeClassMap(def)
}

// MustFreeze is Freeze that panics on error.
func (b *ClassBuilder[T]) MustFreeze() *bsonmap.ClassMap {
	cm, err := b.Freeze()
	if err != nil {
		panic(err)
	}
	return cm
}

// Register freezes the class map and registers it with reg.
func (b *ClassBuilder[T]) Register(reg *bsonmap.Registry) (*bsonmap.ClassMap, error) {
	cm, err := b.Freeze()
	if err != nil {
		return nil, err
	}
	if err := reg.RegisterClassMap(cm); err != nil {
		return nil, err
	}
	return cm, nil
}

// ----- MemberStep methods -----

// Required fails decoding when the element is absent.
func (s *MemberStep[T]) Required() *MemberStep[T] {
	s.m.def.Required = true
	return s
}

// Default applies v when the element is absent. Use DefaultFunc for
// mutable values.
func (s *MemberStep[T]) Default(v any) *MemberStep[T] {
	s.m.def.Default = func() any { return v }
	return s
}

// DefaultFunc applies fn() when the element is absent.
func (s *MemberStep[T]) DefaultFunc(fn func() any) *MemberStep[T] {
	s.m.def.Default = fn
	return s
}

// ReadOnly writes the member but never assigns it on direct construction.
func (s *MemberStep[T]) ReadOnly() *MemberStep[T] {
	s.m.def.ReadOnly = true
	return s
}

// Serializer overrides the registry serializer for the member.
func (s *MemberStep[T]) Serializer(ser bsonmap.Serializer) *MemberStep[T] {
	s.m.def.Serializer = ser
	return s
}

// ShouldSerialize skips the member on encode when fn returns false.
func (s *MemberStep[T]) ShouldSerialize(fn func(t *T, v any) bool) *MemberStep[T] {
	s.m.def.ShouldSerialize = func(obj any, v any) bool { return fn(obj.(*T), v) }
	return s
}

// OmitEmpty skips zero values on encode.
func (s *MemberStep[T]) OmitEmpty() *MemberStep[T] {
	s.m.def.ShouldSerialize = nonZero
	return s
}

// ID marks the id member. ObjectID ids get the ObjectID generator.
func (s *MemberStep[T]) ID() *MemberStep[T] {
	s.m.def.ID = true
	if s.m.def.IDGenerator == nil && s.m.def.Type == reflect.TypeFor[bsonmap.ObjectID]() {
		s.m.def.IDGenerator = bsonmap.ObjectIDGenerator()
	}
	return s
}

// IDGenerator sets the generator used by EnsureDocumentID.
func (s *MemberStep[T]) IDGenerator(g bsonmap.IDGenerator) *MemberStep[T] {
	s.m.def.IDGenerator = g
	return s
}

// ExtraElements captures unmapped elements into this member.
func (s *MemberStep[T]) ExtraElements() *MemberStep[T] {
	s.m.def.ExtraElements = true
	return s
}

// Dictionary selects the representation of a map member.
func (s *MemberStep[T]) Dictionary(rep bsonmap.DictionaryRepresentation) *MemberStep[T] {
	s.m.def.Representation = rep
	return s
}

// Forward helpers to keep chaining ergonomics.
func (s *MemberStep[T]) Member(element string, a Accessor[T]) *MemberStep[T] {
	return s.b.Member(element, a)
}
func (s *MemberStep[T]) Creator(fn func(Args) (*T, error), elements ...string) *ClassBuilder[T] {
	return s.b.Creator(fn, elements...)
}
func (s *MemberStep[T]) WithSettings(cs config.ClassSettings) *ClassBuilder[T] {
	return s.b.WithSettings(cs)
}
func (s *MemberStep[T]) Class() *ClassBuilder[T]            { return s.b }
func (s *MemberStep[T]) Freeze() (*bsonmap.ClassMap, error) { return s.b.Freeze() }
func (s *MemberStep[T]) MustFreeze() *bsonmap.ClassMap      { return s.b.MustFreeze() }
func (s *MemberStep[T]) Register(reg *bsonmap.Registry) (*bsonmap.ClassMap, error) {
	return s.b.Register(reg)
}

func nonZero(_ any, v any) bool {
	if v == nil {
		return false
	}
	return !reflect.ValueOf(v).IsZero()
}
