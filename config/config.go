// Package config loads registry and class settings from YAML.
package config

import (
	"bytes"
	"io"
	"os"
	"reflect"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/reoring/bsonmap"
)

// Settings is the top-level configuration document.
type Settings struct {
	// DictionaryRepresentation names the registry default: default, dynamic,
	// document, arrayOfArrays or arrayOfDocuments.
	DictionaryRepresentation string `yaml:"dictionaryRepresentation"`
	DiscriminatorElement     string `yaml:"discriminatorElement"`
	// ReservedElements replaces the default system elements when present.
	ReservedElements      []string                 `yaml:"reservedElements"`
	IDFirst               bool                     `yaml:"idFirst"`
	MaxDepth              int                      `yaml:"maxDepth"`
	OnDuplicate           string                   `yaml:"onDuplicate"`
	AllowedDiscriminators []string                 `yaml:"allowedDiscriminators"`
	Classes               map[string]ClassSettings `yaml:"classes"`
}

// ClassSettings overrides the builder declarations of one class, keyed by
// the Go type name in Settings.Classes.
type ClassSettings struct {
	Discriminator         string `yaml:"discriminator"`
	DiscriminatorRequired *bool  `yaml:"discriminatorRequired"`
	IgnoreExtraElements   *bool  `yaml:"ignoreExtraElements"`
	// Elements renames members: member name -> element name.
	Elements map[string]string `yaml:"elements"`
	// Required lists element names (after renaming) that must be present.
	Required []string `yaml:"required"`
}

var severities = map[string]bsonmap.Severity{
	"":       bsonmap.Ignore,
	"ignore": bsonmap.Ignore,
	"warn":   bsonmap.Warn,
	"error":  bsonmap.Error,
}

// Load decodes a single YAML document. Unknown keys are rejected.
func Load(r io.Reader) (*Settings, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Settings
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return &s, nil
		}
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads and decodes path.
func LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}
	return Load(bytes.NewReader(data))
}

// Validate checks enumerations and numeric ranges.
func (s *Settings) Validate() error {
	if _, ok := bsonmap.ParseDictionaryRepresentation(s.DictionaryRepresentation); !ok {
		return errors.Newf("config: unknown dictionaryRepresentation %q", s.DictionaryRepresentation)
	}
	if _, ok := severities[s.OnDuplicate]; !ok {
		return errors.Newf("config: onDuplicate must be ignore, warn or error, got %q", s.OnDuplicate)
	}
	if s.MaxDepth < 0 {
		return errors.Newf("config: maxDepth must not be negative, got %d", s.MaxDepth)
	}
	if s.DiscriminatorElement == bsonmap.WrappedValueElement {
		return errors.Newf("config: discriminatorElement cannot be %q", bsonmap.WrappedValueElement)
	}
	names := lo.Keys(s.Classes)
	slices.Sort(names)
	for _, name := range names {
		cs := s.Classes[name]
		targets := lo.Values(cs.Elements)
		if dup := lo.FindDuplicates(targets); len(dup) > 0 {
			return errors.Newf("config: class %s renames several members to %q", name, dup[0])
		}
		if slices.Contains(targets, "") {
			return errors.Newf("config: class %s has an empty element name", name)
		}
	}
	return nil
}

// RegistryOptions translates the settings into registry options. A nil
// logger keeps the registry default.
func (s *Settings) RegistryOptions(log *zap.Logger) ([]bsonmap.RegistryOpt, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	rep, _ := bsonmap.ParseDictionaryRepresentation(s.DictionaryRepresentation)
	opts := []bsonmap.RegistryOpt{
		bsonmap.WithIDFirst(s.IDFirst),
		bsonmap.WithDiscriminatorElement(s.DiscriminatorElement),
	}
	if rep != bsonmap.RepresentationDefault {
		opts = append(opts, bsonmap.WithDictionaryRepresentation(rep))
	}
	if s.ReservedElements != nil {
		opts = append(opts, bsonmap.WithReservedElements(s.ReservedElements...))
	}
	if len(s.AllowedDiscriminators) > 0 {
		opts = append(opts, bsonmap.WithAllowedDiscriminators(s.AllowedDiscriminators...))
	}
	if log != nil {
		opts = append(opts, bsonmap.WithLogger(log))
	}
	return opts, nil
}

// NewRegistry builds a registry from the settings.
func (s *Settings) NewRegistry(log *zap.Logger) (*bsonmap.Registry, error) {
	opts, err := s.RegistryOptions(log)
	if err != nil {
		return nil, err
	}
	return bsonmap.NewRegistry(opts...), nil
}

// DecodeOpt returns the cursor policies.
func (s *Settings) DecodeOpt() bsonmap.DecodeOpt {
	return bsonmap.DecodeOpt{OnDuplicate: severities[s.OnDuplicate], MaxDepth: s.MaxDepth}
}

// Class returns the overrides for the named class.
func (s *Settings) Class(name string) (ClassSettings, bool) {
	if s == nil {
		return ClassSettings{}, false
	}
	cs, ok := s.Classes[name]
	return cs, ok
}

// ClassFor returns the overrides keyed by the name of t, dereferencing pointers.
func (s *Settings) ClassFor(t reflect.Type) (ClassSettings, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return ClassSettings{}, false
	}
	return s.Class(t.Name())
}
