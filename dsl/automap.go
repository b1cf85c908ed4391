package dsl

import (
	"reflect"

	"github.com/samber/lo"

	"github.com/reoring/bsonmap"
)

// AutoMap adds every exported field of T that has no member yet, resolving
// element names and flags with bsonmap.ResolveStructKey. Embedded structs
// are skipped; map them with Extends.
func (b *ClassBuilder[T]) AutoMap() *ClassBuilder[T] {
	rt := reflect.TypeFor[T]()
	names := lo.Map(b.members, func(m *memberDraft, _ int) string { return m.def.MemberName })
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() || sf.Anonymous || lo.Contains(names, sf.Name) {
			continue
		}
		k := bsonmap.ResolveStructKey(sf)
		if k.Skip {
			continue
		}
		step := b.Member(k.Element, fieldAccessor[T](i))
		step.m.auto = true
		if k.OmitEmpty {
			step.OmitEmpty()
		}
		if k.Required {
			step.Required()
		}
		if k.ID {
			step.ID()
		}
		if k.Extra {
			step.ExtraElements()
		}
	}
	return b
}
