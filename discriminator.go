package bsonmap

import (
	"reflect"
)

// DiscriminatorConvention maps between types and wire discriminators.
type DiscriminatorConvention interface {
	// ElementName is the document element carrying the tag.
	ElementName() string
	// ActualType peeks at the positioned value and returns the type to decode
	// it as. The cursor is left where it was.
	ActualType(reg *Registry, r Reader, nominal reflect.Type) (reflect.Type, error)
	// Discriminator returns the tag to write for actual in a nominal slot, or
	// false when actual has none.
	Discriminator(reg *Registry, nominal, actual reflect.Type) (Value, bool)
}

// ScalarConvention writes the discriminator of the actual type as a string.
type ScalarConvention struct {
	Element string
}

func (c ScalarConvention) ElementName() string {
	if c.Element == "" {
		return DefaultDiscriminatorElement
	}
	return c.Element
}

func (c ScalarConvention) ActualType(reg *Registry, r Reader, nominal reflect.Type) (reflect.Type, error) {
	return peekActualType(reg, r, nominal, c.ElementName())
}

func (c ScalarConvention) Discriminator(reg *Registry, _, actual reflect.Type) (Value, bool) {
	tag, ok := reg.Discriminator(actual)
	if !ok {
		return Value{}, false
	}
	return StringValue(tag), true
}

// HierarchicalConvention writes the discriminators of every class from the
// polymorphic root down to the actual class as an array. Classes outside a
// rooted hierarchy get a scalar tag.
type HierarchicalConvention struct {
	Element string
}

func (c HierarchicalConvention) ElementName() string {
	if c.Element == "" {
		return DefaultDiscriminatorElement
	}
	return c.Element
}

func (c HierarchicalConvention) ActualType(reg *Registry, r Reader, nominal reflect.Type) (reflect.Type, error) {
	return peekActualType(reg, r, nominal, c.ElementName())
}

func (c HierarchicalConvention) Discriminator(reg *Registry, nominal, actual reflect.Type) (Value, bool) {
	cm, ok := reg.ClassMap(actual)
	if !ok || !cm.HasRootClass() {
		return ScalarConvention{Element: c.Element}.Discriminator(reg, nominal, actual)
	}
	chain := cm.Lineage()
	tags := make([]Value, len(chain))
	for i, p := range chain {
		tags[i] = StringValue(p.discriminator)
	}
	return ArrayValue(tags...), true
}

// peekActualType reads ahead for the tag element under a bookmark.
func peekActualType(reg *Registry, r Reader, nominal reflect.Type, element string) (reflect.Type, error) {
	if r.CurrentKind() != KindDocument || !reg.IsDiscriminated(nominal) {
		return nominal, nil
	}
	bm := r.Bookmark()
	defer r.ReturnToBookmark(bm)

	if err := r.ReadStartDocument(); err != nil {
		return nil, err
	}
	for {
		k, err := r.ReadType()
		if err != nil {
			return nil, err
		}
		if k == KindEndOfDocument {
			return nominal, nil
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		if name != element {
			if err := r.SkipValue(); err != nil {
				return nil, err
			}
			continue
		}
		tag, err := r.ReadValue()
		if err != nil {
			return nil, err
		}
		actual, err := reg.LookupActualType(nominal, tag)
		if err != nil {
			return nil, err
		}
		if err := reg.checkAllowed(actual); err != nil {
			return nil, err
		}
		return actual, nil
	}
}
