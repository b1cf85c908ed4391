package bsonmap

import (
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// DefaultDiscriminatorElement is the element name used for type tags.
const DefaultDiscriminatorElement = "_t"

// WrappedValueElement holds the value of a wrapper-tagged document.
const WrappedValueElement = "_v"

var defaultReservedElements = []string{"__safeContent__"}

// RegistryOpt configures a Registry.
type RegistryOpt func(*registryConfig)

type registryConfig struct {
	logger     *zap.Logger
	dictionary DictionaryRepresentation
	element    string
	reserved   []string
	gate       func(reflect.Type) bool
	allowed    map[string]bool
	idFirst    bool
	convention DiscriminatorConvention
}

// WithLogger sets the logger used for debug tracing of dispatch decisions.
func WithLogger(l *zap.Logger) RegistryOpt {
	return func(c *registryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDictionaryRepresentation sets the representation used for map members
// that do not configure one.
func WithDictionaryRepresentation(rep DictionaryRepresentation) RegistryOpt {
	return func(c *registryConfig) { c.dictionary = rep }
}

// WithDiscriminatorElement renames the type tag element of the default convention.
func WithDiscriminatorElement(name string) RegistryOpt {
	return func(c *registryConfig) {
		if name != "" {
			c.element = name
		}
	}
}

// WithReservedElements replaces the system element names skipped during decode.
func WithReservedElements(names ...string) RegistryOpt {
	return func(c *registryConfig) { c.reserved = append([]string(nil), names...) }
}

// WithTypeGate installs an allow-list predicate consulted before any
// discriminated or runtime type is trusted.
func WithTypeGate(gate func(reflect.Type) bool) RegistryOpt {
	return func(c *registryConfig) { c.gate = gate }
}

// WithAllowedDiscriminators restricts polymorphic dispatch to types whose
// discriminator is listed. Builtin scalar types are always allowed.
func WithAllowedDiscriminators(tags ...string) RegistryOpt {
	return func(c *registryConfig) {
		if len(tags) == 0 {
			c.allowed = nil
			return
		}
		c.allowed = lo.SliceToMap(tags, func(t string) (string, bool) { return t, true })
	}
}

// WithIDFirst writes id members before every other element of root documents.
func WithIDFirst(on bool) RegistryOpt {
	return func(c *registryConfig) { c.idFirst = on }
}

// WithDefaultConvention replaces the convention used for interfaces and for
// classes that configure none.
func WithDefaultConvention(conv DiscriminatorConvention) RegistryOpt {
	return func(c *registryConfig) { c.convention = conv }
}

// Registry is the memoized type-to-serializer dispatch table. Class maps and
// discriminators are registered explicitly; serializers for pointers, slices,
// maps, interfaces and named scalar types are synthesized on first lookup.
type Registry struct {
	cfg registryConfig

	mu            sync.RWMutex
	serializers   map[reflect.Type]Serializer
	classMaps     map[reflect.Type]*ClassMap
	tags          map[reflect.Type]string
	byTag         map[string][]reflect.Type
	discriminated map[reflect.Type]bool
	builtin       map[reflect.Type]bool
}

// NewRegistry returns a registry preloaded with the builtin scalar serializers.
func NewRegistry(opts ...RegistryOpt) *Registry {
	cfg := registryConfig{
		logger:     zap.NewNop(),
		dictionary: RepresentationDynamic,
		element:    DefaultDiscriminatorElement,
		reserved:   defaultReservedElements,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.convention == nil {
		cfg.convention = ScalarConvention{Element: cfg.element}
	}
	r := &Registry{
		cfg:           cfg,
		serializers:   map[reflect.Type]Serializer{},
		classMaps:     map[reflect.Type]*ClassMap{},
		tags:          map[reflect.Type]string{},
		byTag:         map[string][]reflect.Type{},
		discriminated: map[reflect.Type]bool{},
		builtin:       map[reflect.Type]bool{},
	}
	for _, b := range builtinSerializers() {
		t := b.s.ValueType()
		r.serializers[t] = b.s
		r.builtin[t] = true
		if b.tag != "" {
			r.tags[t] = b.tag
			r.byTag[b.tag] = append(r.byTag[b.tag], t)
		}
	}
	return r
}

var (
	defaultMu       sync.RWMutex
	defaultRegistry = NewRegistry()
)

// Default returns the process-wide registry used when a nil registry is passed.
func Default() *Registry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRegistry
}

// SetDefault replaces the process-wide registry. Passing nil restores a fresh one.
func SetDefault(r *Registry) {
	if r == nil {
		r = NewRegistry()
	}
	defaultMu.Lock()
	defaultRegistry = r
	defaultMu.Unlock()
}

func orDefault(r *Registry) *Registry {
	if r == nil {
		return Default()
	}
	return r
}

func (r *Registry) Logger() *zap.Logger { return r.cfg.logger }

// DiscriminatorElement is the tag element of the default convention.
func (r *Registry) DiscriminatorElement() string { return r.cfg.element }

// DefaultConvention is used for interfaces and classes configuring none.
func (r *Registry) DefaultConvention() DiscriminatorConvention { return r.cfg.convention }

// IDFirst reports the registry-wide id-first policy.
func (r *Registry) IDFirst() bool { return r.cfg.idFirst }

// IsReservedElement reports system elements skipped during decode.
func (r *Registry) IsReservedElement(name string) bool {
	return lo.Contains(r.cfg.reserved, name)
}

// Register installs an explicit serializer for its value type, replacing any
// builtin or previously synthesized one.
func (r *Registry) Register(s Serializer) error {
	if s == nil || s.ValueType() == nil {
		return errors.New("bsonmap: Register requires a serializer with a value type")
	}
	r.mu.Lock()
	r.serializers[s.ValueType()] = s
	r.mu.Unlock()
	return nil
}

// RegisterClassMap installs the class-map serializer and discriminator for cm.
// A parent class must be registered before its children.
func (r *Registry) RegisterClassMap(cm *ClassMap) error {
	if cm == nil {
		return errors.New("bsonmap: RegisterClassMap requires a class map")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.classMaps[cm.typ]; ok && prev != cm {
		return &ClassMapError{Class: cm.typ, Detail: "class already registered"}
	}
	if p := cm.parent; p != nil {
		if _, ok := r.classMaps[p.typ]; !ok {
			return &ClassMapError{Class: cm.typ, Detail: "parent " + p.typ.String() + " is not registered"}
		}
	}
	r.classMaps[cm.typ] = cm
	r.serializers[cm.typ] = newClassMapSerializer(r, cm)
	r.addTagLocked(cm.typ, cm.discriminator)
	for p := cm.parent; p != nil; p = p.parent {
		r.discriminated[p.typ] = true
	}
	return nil
}

// RegisterType assigns a discriminator to a non-class type so that it can be
// written through interface slots with the wrapper shape.
func (r *Registry) RegisterType(t reflect.Type, tag string) error {
	if t == nil || tag == "" {
		return errors.New("bsonmap: RegisterType requires a type and a tag")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.tags[t]; ok {
		r.byTag[prev] = lo.Without(r.byTag[prev], t)
	}
	r.addTagLocked(t, tag)
	return nil
}

func (r *Registry) addTagLocked(t reflect.Type, tag string) {
	r.tags[t] = tag
	if !lo.Contains(r.byTag[tag], t) {
		r.byTag[tag] = append(r.byTag[tag], t)
	}
}

// ClassMap returns the registered class map of t.
func (r *Registry) ClassMap(t reflect.Type) (*ClassMap, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cm, ok := r.classMaps[t]
	return cm, ok
}

// Discriminator returns the tag registered for t.
func (r *Registry) Discriminator(t reflect.Type) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.tags[t]
	return tag, ok
}

// IsDiscriminated reports whether values of nominal type t may carry a
// narrower actual type: interfaces, and classes with registered descendants.
func (r *Registry) IsDiscriminated(t reflect.Type) bool {
	if t.Kind() == reflect.Interface {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.discriminated[t]
}

// Convention returns the discriminator convention governing t.
func (r *Registry) Convention(t reflect.Type) DiscriminatorConvention {
	if cm, ok := r.ClassMap(t); ok {
		return r.classConvention(cm)
	}
	return r.cfg.convention
}

func (r *Registry) classConvention(cm *ClassMap) DiscriminatorConvention {
	if cm.convention != nil {
		return cm.convention
	}
	if cm.HasRootClass() {
		return HierarchicalConvention{Element: r.cfg.convention.ElementName()}
	}
	return r.cfg.convention
}

// SlotConventions returns the conventions an interface slot of type nominal
// peeks with: the default one, then one per distinct element name used by
// registered classes assignable to nominal.
func (r *Registry) SlotConventions(nominal reflect.Type) []DiscriminatorConvention {
	convs := []DiscriminatorConvention{r.cfg.convention}
	seen := map[string]bool{r.cfg.convention.ElementName(): true}
	r.mu.RLock()
	types := lo.Filter(lo.Keys(r.classMaps), func(t reflect.Type, _ int) bool { return t.AssignableTo(nominal) })
	classes := lo.Map(types, func(t reflect.Type, _ int) *ClassMap { return r.classMaps[t] })
	r.mu.RUnlock()
	slices.SortFunc(classes, func(a, b *ClassMap) int { return strings.Compare(a.typ.String(), b.typ.String()) })
	for _, cm := range classes {
		c := r.classConvention(cm)
		if !seen[c.ElementName()] {
			seen[c.ElementName()] = true
			convs = append(convs, c)
		}
	}
	return convs
}

// LookupActualType resolves a discriminator to the unique registered type
// assignable to nominal. Array discriminators resolve by their last element.
func (r *Registry) LookupActualType(nominal reflect.Type, tag Value) (reflect.Type, error) {
	if items, ok := tag.Array(); ok {
		if len(items) == 0 {
			return nil, &ShapeError{Type: nominal, Detail: "empty discriminator array"}
		}
		tag = items[len(items)-1]
	}
	s, ok := tag.StringValue()
	if !ok {
		return nil, &DiscriminatorError{code: CodeDiscriminatorUnknown, Nominal: nominal, Discriminator: tag}
	}
	r.mu.RLock()
	candidates := append([]reflect.Type(nil), r.byTag[s]...)
	r.mu.RUnlock()

	matches := lo.Filter(candidates, func(c reflect.Type, _ int) bool {
		return c == nominal || c.AssignableTo(nominal)
	})
	switch {
	case len(matches) == 1:
		return matches[0], nil
	case len(matches) > 1:
		return nil, &DiscriminatorError{code: CodeDiscriminatorAmbiguous, Nominal: nominal, Discriminator: tag, Candidates: matches}
	case len(candidates) > 0:
		return nil, &DiscriminatorError{code: CodeNotAssignable, Nominal: nominal, Discriminator: tag, Candidates: candidates}
	}
	return nil, &DiscriminatorError{code: CodeDiscriminatorUnknown, Nominal: nominal, Discriminator: tag}
}

// Allowed consults the type gate.
func (r *Registry) Allowed(t reflect.Type) bool {
	if r.cfg.gate != nil && !r.cfg.gate(t) {
		return false
	}
	if r.cfg.allowed == nil {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.builtin[t] {
		return true
	}
	if t.Kind() == reflect.Struct {
		if _, ok := r.classMaps[reflect.PointerTo(t)]; ok {
			t = reflect.PointerTo(t)
		}
	}
	tag, ok := r.tags[t]
	return ok && r.cfg.allowed[tag]
}

func (r *Registry) checkAllowed(t reflect.Type) error {
	if r.Allowed(t) {
		return nil
	}
	tag, _ := r.Discriminator(t)
	return &DisallowedTypeError{Type: t, Discriminator: tag}
}

// Lookup returns the serializer for t, synthesizing and memoizing one when t
// has no explicit registration.
func (r *Registry) Lookup(t reflect.Type) (Serializer, error) {
	if t == nil {
		return nil, &SerializerNotFoundError{}
	}
	r.mu.RLock()
	s, ok := r.serializers[t]
	r.mu.RUnlock()
	if ok {
		return s, nil
	}
	s, err := r.synthesize(t)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.serializers[t]; ok {
		return prev, nil
	}
	r.serializers[t] = s
	return s, nil
}

func (r *Registry) synthesize(t reflect.Type) (Serializer, error) {
	switch t.Kind() {
	case reflect.Interface:
		return newInterfaceSerializer(r, t), nil
	case reflect.Pointer:
		if t.Implements(orderedDictionaryType) {
			return newDictionarySerializer(r, t, RepresentationDefault), nil
		}
		return &pointerSerializer{t: t}, nil
	case reflect.Struct:
		ptr := reflect.PointerTo(t)
		if _, ok := r.ClassMap(ptr); ok {
			return &structValueSerializer{reg: r, t: t, ptr: ptr}, nil
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return newConvertSerializer(t, bytesSerializer{}), nil
		}
		return &sliceSerializer{t: t}, nil
	case reflect.Map:
		return newDictionarySerializer(r, t, RepresentationDefault), nil
	case reflect.String:
		return newConvertSerializer(t, stringSerializer{}), nil
	case reflect.Bool:
		return newConvertSerializer(t, boolSerializer{}), nil
	case reflect.Int32:
		return newConvertSerializer(t, int32Serializer{}), nil
	case reflect.Int64:
		return newConvertSerializer(t, int64Serializer{}), nil
	case reflect.Int, reflect.Int8, reflect.Int16:
		return newConvertSerializer(t, intSerializer{}), nil
	case reflect.Float64, reflect.Float32:
		return newConvertSerializer(t, float64Serializer{}), nil
	}
	return nil, &SerializerNotFoundError{Type: t}
}

// dictionaryFor returns a dictionary serializer with a member-level representation.
func (r *Registry) dictionaryFor(t reflect.Type, rep DictionaryRepresentation) (Serializer, error) {
	if !isDictionaryType(t) {
		return nil, &ClassMapError{Detail: "representation set on non-dictionary type " + t.String()}
	}
	return newDictionarySerializer(r, t, rep), nil
}

// String lists the registered discriminators, mostly for diagnostics.
func (r *Registry) String() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := lo.Keys(r.byTag)
	slices.Sort(keys)
	return "Registry{" + strings.Join(keys, ", ") + "}"
}
