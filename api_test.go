package bsonmap_test

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/reoring/bsonmap"
)

func duplicateName() bsonmap.Value {
	d := bsonmap.NewDocument(el("name", str("first")))
	d.Append("name", str("second"))
	return bsonmap.DocumentValue(d)
}

func TestDecode_DuplicateElementPolicy(t *testing.T) {
	reg := personRegistry(t)

	out := mustUnmarshal[*person](t, reg, duplicateName())
	if out.Name != "second" {
		t.Fatalf("ignore policy keeps the last value, got %q", out.Name)
	}

	_, err := bsonmap.Unmarshal[*person](bg, reg, duplicateName(), bsonmap.DecodeOpt{OnDuplicate: bsonmap.Error})
	wantCode(t, err, bsonmap.CodeDuplicateElement)

	core, logs := observer.New(zapcore.WarnLevel)
	reg = personRegistry(t, bsonmap.WithLogger(zap.New(core)))
	mustUnmarshal[*person](t, reg, duplicateName(), bsonmap.DecodeOpt{OnDuplicate: bsonmap.Warn})
	entries := logs.All()
	if len(entries) != 1 || entries[0].ContextMap()["code"] != bsonmap.CodeDuplicateElement || entries[0].ContextMap()["path"] != "/name" {
		t.Fatalf("expected one duplicate warning, got %+v", entries)
	}
}

func TestDecode_MaxDepth(t *testing.T) {
	reg := kennelRegistry(t)
	v := doc(el("pets", arr(doc(el("_t", str("Dog")), el("name", str("rex"))))))

	mustUnmarshal[*kennel](t, reg, v, bsonmap.DecodeOpt{MaxDepth: 3})
	_, err := bsonmap.Unmarshal[*kennel](bg, reg, v, bsonmap.DecodeOpt{MaxDepth: 2})
	if !hasCode(err, bsonmap.CodeMaxDepth) {
		t.Fatalf("expected max depth error, got %v", err)
	}
}

func TestDefaultRegistry(t *testing.T) {
	reg := bsonmap.NewRegistry(bsonmap.WithDiscriminatorElement("kind"))
	bsonmap.SetDefault(reg)
	defer bsonmap.SetDefault(nil)
	if bsonmap.Default() != reg {
		t.Fatalf("SetDefault did not install the registry")
	}
	v, err := bsonmap.Marshal[any](bg, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	wantValue(t, v, doc(el("kind", str("bool")), el("_v", bsonmap.BooleanValue(true))))
	if got, err := bsonmap.Unmarshal[string](bg, nil, str("x")); err != nil || got != "x" {
		t.Fatalf("Unmarshal = %q, %v", got, err)
	}
}

type tagged struct {
	Plain   string
	Renamed string            `bson:"renamed,omitempty"`
	ID      string            `bson:"_id"`
	Skipped string            `bson:"-"`
	Over    string            `bson:"b" bsonmap:"name=c,required"`
	Rest    map[string]any    `bson:",inline"`
	Nope    string            `bsonmap:"-"`
	Extra   *bsonmap.Document `bsonmap:"extra"`
	Inline  string            `bson:",inline"`
}

func TestResolveStructKey(t *testing.T) {
	want := map[string]bsonmap.StructKey{
		"Plain":   {Element: "Plain"},
		"Renamed": {Element: "renamed", OmitEmpty: true},
		"ID":      {Element: "_id", ID: true},
		"Skipped": {Skip: true},
		"Over":    {Element: "c", Required: true},
		"Rest":    {Element: "Rest", Extra: true},
		"Nope":    {Skip: true},
		"Extra":   {Element: "Extra", Extra: true},
		"Inline":  {Element: "Inline"},
	}
	rt := reflect.TypeFor[tagged]()
	for i := range rt.NumField() {
		sf := rt.Field(i)
		if diff := cmp.Diff(want[sf.Name], bsonmap.ResolveStructKey(sf)); diff != "" {
			t.Errorf("%s (-want +got):\n%s", sf.Name, diff)
		}
	}
}

func TestFieldAndElementNames(t *testing.T) {
	if got := bsonmap.FieldNameOf(func(x *tagged) *string { return &x.Over }); got != "Over" {
		t.Fatalf("FieldNameOf = %q", got)
	}
	if got := bsonmap.ElementNameOf(func(x *tagged) *string { return &x.Over }); got != "c" {
		t.Fatalf("ElementNameOf = %q", got)
	}
	if got := bsonmap.ElementNameOf(func(x *tagged) *string { return &x.Renamed }); got != "renamed" {
		t.Fatalf("ElementNameOf = %q", got)
	}
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for a disabled field")
		}
	}()
	bsonmap.ElementNameOf(func(x *tagged) *string { return &x.Skipped })
}

func TestRegistry_Discriminators(t *testing.T) {
	reg := shapeRegistry(t)
	if tag, ok := reg.Discriminator(reflect.TypeFor[*circle]()); !ok || tag != "Circle" {
		t.Fatalf("Discriminator = %q %v", tag, ok)
	}
	if tag, _ := reg.Discriminator(reflect.TypeFor[int32]()); tag != "int32" {
		t.Fatalf("builtin tag = %q", tag)
	}
	if !reg.IsDiscriminated(reflect.TypeFor[shape]()) || reg.IsDiscriminated(reflect.TypeFor[*circle]()) {
		t.Fatalf("IsDiscriminated mismatch")
	}
	if _, err := reg.LookupActualType(reflect.TypeFor[shape](), arr()); err == nil {
		t.Fatalf("empty discriminator arrays must be rejected")
	}
	if _, err := reg.Lookup(reflect.TypeFor[chan int]()); !hasCode(err, bsonmap.CodeNoSerializer) {
		t.Fatalf("expected no serializer for channels, got %v", err)
	}
}
