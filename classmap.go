package bsonmap

import (
	"reflect"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	documentPtrType = reflect.TypeFor[*Document]()
	extraMapType    = reflect.TypeFor[map[string]any]()
)

// IDGenerator produces ids for instances whose id member is empty.
type IDGenerator interface {
	Generate(container any) (any, error)
	IsEmpty(id any) bool
}

type objectIDGenerator struct{}

// ObjectIDGenerator generates new ObjectIDs for ObjectID-typed id members.
func ObjectIDGenerator() IDGenerator { return objectIDGenerator{} }

func (objectIDGenerator) Generate(any) (any, error) { return primitive.NewObjectID(), nil }

func (objectIDGenerator) IsEmpty(id any) bool {
	oid, ok := id.(ObjectID)
	return !ok || oid.IsZero()
}

// MemberDef describes one member before freezing.
type MemberDef struct {
	MemberName  string
	ElementName string
	Type        reflect.Type
	Get         func(obj any) any
	// Set assigns a decoded value; nil means the zero value of Type.
	Set func(obj any, v any) error
	// Serializer overrides the registry lookup for Type.
	Serializer     Serializer
	Representation DictionaryRepresentation
	// Default produces the value applied when the element is absent.
	Default         func() any
	Required        bool
	ReadOnly        bool
	ShouldSerialize func(obj any, v any) bool
	ID              bool
	IDGenerator     IDGenerator
	ExtraElements   bool
}

// CreatorDef declares an alternate construction path consuming the listed
// elements, passed to Factory in the same order.
type CreatorDef struct {
	Elements []string
	Factory  func(args []any) (any, error)
}

// ClassMapDef is the mutable description frozen by FreezeClassMap.
type ClassMapDef struct {
	// Type is the pointer-to-struct type being mapped.
	Type reflect.Type
	New  func() any
	// Parent is the class whose members are inherited; ParentAccessor returns
	// the embedded parent instance (a pointer) of an instance of Type.
	Parent                *ClassMap
	ParentAccessor        func(obj any) any
	Members               []MemberDef
	Creators              []CreatorDef
	Discriminator         string
	DiscriminatorRequired bool
	RootClass             bool
	IgnoreExtraElements   bool
	Anonymous             bool
	Convention            DiscriminatorConvention
}

// MemberMap is the frozen description of one member.
type MemberMap struct {
	class           reflect.Type
	index           int
	memberName      string
	elementName     string
	memberType      reflect.Type
	get             func(obj any) any
	set             func(obj any, v any) error
	serializer      Serializer
	representation  DictionaryRepresentation
	defaultFn       func() any
	required        bool
	readOnly        bool
	shouldSerialize func(obj any, v any) bool
	isID            bool
	idGenerator     IDGenerator
	isExtra         bool
}

func (m *MemberMap) Index() int                               { return m.index }
func (m *MemberMap) MemberName() string                       { return m.memberName }
func (m *MemberMap) ElementName() string                      { return m.elementName }
func (m *MemberMap) MemberType() reflect.Type                 { return m.memberType }
func (m *MemberMap) Serializer() Serializer                   { return m.serializer }
func (m *MemberMap) Representation() DictionaryRepresentation { return m.representation }
func (m *MemberMap) Required() bool                           { return m.required }
func (m *MemberMap) ReadOnly() bool                           { return m.readOnly }
func (m *MemberMap) HasDefault() bool                         { return m.defaultFn != nil }
func (m *MemberMap) IsID() bool                               { return m.isID }
func (m *MemberMap) IsExtraElements() bool                    { return m.isExtra }
func (m *MemberMap) IDGenerator() IDGenerator                 { return m.idGenerator }

// Default returns a fresh default value, or nil when none is configured.
func (m *MemberMap) Default() any {
	if m.defaultFn == nil {
		return nil
	}
	return m.defaultFn()
}

func (m *MemberMap) Get(obj any) any { return m.get(obj) }

func (m *MemberMap) Set(obj any, v any) error {
	if m.set == nil {
		return &ClassMapError{Class: m.class, Detail: "member " + m.memberName + " is read-only"}
	}
	return m.set(obj, v)
}

// ShouldSerialize reports whether the member is written for the given value.
func (m *MemberMap) ShouldSerialize(obj any, v any) bool {
	return m.shouldSerialize == nil || m.shouldSerialize(obj, v)
}

// CreatorParam is one (element, type) parameter of a creator.
type CreatorParam struct {
	Element string
	Type    reflect.Type
}

// Creator is a frozen alternate construction path.
type Creator struct {
	params  []CreatorParam
	factory func(args []any) (any, error)
}

func (c *Creator) Params() []CreatorParam { return c.params }

// ClassMap is the frozen serializable shape of a type. It is immutable and
// safe for concurrent use.
type ClassMap struct {
	typ                   reflect.Type
	newFn                 func() any
	parent                *ClassMap
	members               []*MemberMap
	byElement             map[string]*MemberMap
	byMember              map[string]*MemberMap
	id                    *MemberMap
	extra                 *MemberMap
	creators              []*Creator
	discriminator         string
	discriminatorRequired bool
	rootClass             bool
	ignoreExtra           bool
	anonymous             bool
	convention            DiscriminatorConvention
}

func (c *ClassMap) Type() reflect.Type              { return c.typ }
func (c *ClassMap) Parent() *ClassMap               { return c.parent }
func (c *ClassMap) Members() []*MemberMap           { return c.members }
func (c *ClassMap) IDMember() *MemberMap            { return c.id }
func (c *ClassMap) ExtraElementsMember() *MemberMap { return c.extra }
func (c *ClassMap) Creators() []*Creator            { return c.creators }
func (c *ClassMap) HasCreators() bool               { return len(c.creators) > 0 }
func (c *ClassMap) Discriminator() string           { return c.discriminator }
func (c *ClassMap) DiscriminatorRequired() bool     { return c.discriminatorRequired }
func (c *ClassMap) IsRootClass() bool               { return c.rootClass }
func (c *ClassMap) IgnoreExtraElements() bool       { return c.ignoreExtra }
func (c *ClassMap) IsAnonymous() bool               { return c.anonymous }

// Convention returns the explicitly configured convention, or nil.
func (c *ClassMap) Convention() DiscriminatorConvention { return c.convention }

// HasRootClass reports whether this class or an ancestor is a polymorphic root.
func (c *ClassMap) HasRootClass() bool {
	for p := c; p != nil; p = p.parent {
		if p.rootClass {
			return true
		}
	}
	return false
}

// Lineage returns the classes from the polymorphic root (or the topmost
// ancestor) down to c.
func (c *ClassMap) Lineage() []*ClassMap {
	var chain []*ClassMap
	for p := c; p != nil; p = p.parent {
		chain = append(chain, p)
		if p.rootClass {
			break
		}
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// MemberByElement looks up a member by its element name.
func (c *ClassMap) MemberByElement(element string) (*MemberMap, bool) {
	m, ok := c.byElement[element]
	return m, ok
}

// MemberByName looks up a member by its Go member name.
func (c *ClassMap) MemberByName(name string) (*MemberMap, bool) {
	m, ok := c.byMember[name]
	return m, ok
}

// New constructs an empty instance.
func (c *ClassMap) New() (any, error) {
	obj := c.newFn()
	if isNil(obj) {
		return nil, &ConstructionError{Class: c.typ}
	}
	return obj, nil
}

// FreezeClassMap validates def and returns the immutable class map.
func FreezeClassMap(def ClassMapDef) (*ClassMap, error) {
	t := def.Type
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, &ClassMapError{Class: t, Detail: "class type must be a pointer to a struct"}
	}
	cm := &ClassMap{
		typ:                   t,
		newFn:                 def.New,
		parent:                def.Parent,
		byElement:             map[string]*MemberMap{},
		byMember:              map[string]*MemberMap{},
		discriminator:         def.Discriminator,
		discriminatorRequired: def.DiscriminatorRequired,
		rootClass:             def.RootClass,
		ignoreExtra:           def.IgnoreExtraElements,
		anonymous:             def.Anonymous,
		convention:            def.Convention,
	}
	if cm.newFn == nil {
		elem := t.Elem()
		cm.newFn = func() any { return reflect.New(elem).Interface() }
	}
	if cm.discriminator == "" {
		cm.discriminator = t.Elem().Name()
	}

	if def.Parent != nil {
		if def.ParentAccessor == nil {
			return nil, &ClassMapError{Class: t, Detail: "a parent class requires a parent accessor"}
		}
		if cm.convention == nil {
			cm.convention = def.Parent.convention
		}
		if def.Parent.ignoreExtra {
			cm.ignoreExtra = true
		}
		for _, pm := range def.Parent.members {
			mm := inheritMember(pm, def.ParentAccessor)
			mm.class = t
			if err := cm.add(mm); err != nil {
				return nil, err
			}
		}
	}
	for i := range def.Members {
		mm, err := newMemberMap(t, def.Members[i])
		if err != nil {
			return nil, err
		}
		if err := cm.add(mm); err != nil {
			return nil, err
		}
	}
	for i, cd := range def.Creators {
		c, err := cm.newCreator(cd)
		if err != nil {
			return nil, &ClassMapError{Class: t, Detail: "creator " + strconv.Itoa(i) + ": " + err.Error()}
		}
		cm.creators = append(cm.creators, c)
	}
	return cm, nil
}

func newMemberMap(class reflect.Type, d MemberDef) (*MemberMap, error) {
	fail := func(detail string) (*MemberMap, error) {
		return nil, &ClassMapError{Class: class, Detail: "member " + d.MemberName + ": " + detail}
	}
	switch {
	case d.ElementName == "":
		return fail("element name is empty")
	case d.Type == nil:
		return fail("member type is unknown")
	case d.Get == nil:
		return fail("getter is required")
	case d.Set == nil && !d.ReadOnly:
		return fail("no setter; declare the member read-only")
	}
	if d.ExtraElements {
		if d.Type != documentPtrType && d.Type != extraMapType {
			return fail("extra elements member must be *Document or map[string]any")
		}
		if d.Required || d.ID {
			return fail("extra elements member cannot be required or the id")
		}
	}
	name := d.MemberName
	if name == "" {
		name = d.ElementName
	}
	return &MemberMap{
		class:           class,
		memberName:      name,
		elementName:     d.ElementName,
		memberType:      d.Type,
		get:             d.Get,
		set:             d.Set,
		serializer:      d.Serializer,
		representation:  d.Representation,
		defaultFn:       d.Default,
		required:        d.Required,
		readOnly:        d.ReadOnly,
		shouldSerialize: d.ShouldSerialize,
		isID:            d.ID,
		idGenerator:     d.IDGenerator,
		isExtra:         d.ExtraElements,
	}, nil
}

// inheritMember rebinds a parent member onto the embedded parent instance.
func inheritMember(pm *MemberMap, parentOf func(obj any) any) *MemberMap {
	mm := *pm
	get := pm.get
	mm.get = func(obj any) any { return get(parentOf(obj)) }
	if set := pm.set; set != nil {
		mm.set = func(obj any, v any) error { return set(parentOf(obj), v) }
	}
	if ss := pm.shouldSerialize; ss != nil {
		mm.shouldSerialize = func(obj any, v any) bool { return ss(parentOf(obj), v) }
	}
	return &mm
}

func (c *ClassMap) add(mm *MemberMap) error {
	if _, dup := c.byElement[mm.elementName]; dup {
		return &ClassMapError{Class: c.typ, Detail: "duplicate element name " + strconv.Quote(mm.elementName)}
	}
	if _, dup := c.byMember[mm.memberName]; dup {
		return &ClassMapError{Class: c.typ, Detail: "duplicate member name " + mm.memberName}
	}
	if mm.isID {
		if c.id != nil {
			return &ClassMapError{Class: c.typ, Detail: "more than one id member"}
		}
		c.id = mm
	}
	if mm.isExtra {
		if c.extra != nil {
			return &ClassMapError{Class: c.typ, Detail: "more than one extra elements member"}
		}
		c.extra = mm
	}
	mm.index = len(c.members)
	c.members = append(c.members, mm)
	c.byElement[mm.elementName] = mm
	c.byMember[mm.memberName] = mm
	return nil
}

func (c *ClassMap) newCreator(cd CreatorDef) (*Creator, error) {
	if cd.Factory == nil {
		return nil, &ClassMapError{Class: c.typ, Detail: "factory is nil"}
	}
	seen := map[string]bool{}
	cr := &Creator{factory: cd.Factory}
	for _, el := range cd.Elements {
		mm, ok := c.byElement[el]
		if !ok {
			return nil, &ClassMapError{Class: c.typ, Detail: "unknown element " + strconv.Quote(el)}
		}
		if seen[el] {
			return nil, &ClassMapError{Class: c.typ, Detail: "element " + strconv.Quote(el) + " listed twice"}
		}
		seen[el] = true
		cr.params = append(cr.params, CreatorParam{Element: el, Type: mm.memberType})
	}
	return cr, nil
}
