package config_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/bsonmap"
	"github.com/reoring/bsonmap/config"
)

const sample = `
dictionaryRepresentation: arrayOfDocuments
discriminatorElement: kind
reservedElements: [__safeContent__, _meta]
idFirst: true
maxDepth: 16
onDuplicate: error
allowedDiscriminators: [Circle, Square]
classes:
  Circle:
    discriminator: circle
    ignoreExtraElements: true
    elements:
      Radius: r
    required: [r]
`

func TestLoad(t *testing.T) {
	s, err := config.Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.DiscriminatorElement != "kind" || !s.IDFirst || s.MaxDepth != 16 {
		t.Fatalf("unexpected settings: %+v", s)
	}
	cs, ok := s.Class("Circle")
	if !ok {
		t.Fatalf("Circle settings missing")
	}
	if cs.IgnoreExtraElements == nil || !*cs.IgnoreExtraElements {
		t.Fatalf("ignoreExtraElements not decoded: %+v", cs)
	}
	if diff := cmp.Diff(map[string]string{"Radius": "r"}, cs.Elements); diff != "" {
		t.Fatalf("elements mismatch (-want +got):\n%s", diff)
	}
	want := bsonmap.DecodeOpt{OnDuplicate: bsonmap.Error, MaxDepth: 16}
	if got := s.DecodeOpt(); got != want {
		t.Fatalf("DecodeOpt = %+v, want %+v", got, want)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	if _, err := config.Load(strings.NewReader("dictionaryRepr: document\n")); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"representation": "dictionaryRepresentation: sideways\n",
		"duplicate":      "onDuplicate: loud\n",
		"depth":          "maxDepth: -1\n",
		"element":        "discriminatorElement: _v\n",
		"rename":         "classes:\n  A:\n    elements:\n      X: a\n      Y: a\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(strings.NewReader(in)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestEmptyDocument(t *testing.T) {
	s, err := config.Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := s.DecodeOpt(); got != (bsonmap.DecodeOpt{}) {
		t.Fatalf("DecodeOpt = %+v", got)
	}
}

func TestNewRegistry(t *testing.T) {
	s, err := config.Load(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	reg, err := s.NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if reg.DiscriminatorElement() != "kind" {
		t.Fatalf("element = %q", reg.DiscriminatorElement())
	}
	if !reg.IDFirst() {
		t.Fatalf("idFirst not applied")
	}
	if !reg.IsReservedElement("_meta") {
		t.Fatalf("reserved elements not applied")
	}
}
