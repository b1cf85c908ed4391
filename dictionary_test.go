package bsonmap_test

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/bsonmap"
	"github.com/reoring/bsonmap/dsl"
)

type catalog struct {
	Prices  map[string]int32
	Codes   map[int32]string
	Pairs   map[string]int32
	Ordered *bsonmap.OrderedMap[string, int32]
}

func catalogRegistry(t *testing.T, opts ...bsonmap.RegistryOpt) *bsonmap.Registry {
	t.Helper()
	reg := bsonmap.NewRegistry(opts...)
	if _, err := dsl.ClassOf[catalog]().
		Member("prices", dsl.Ref(func(c *catalog) *map[string]int32 { return &c.Prices })).OmitEmpty().
		Member("codes", dsl.Ref(func(c *catalog) *map[int32]string { return &c.Codes })).OmitEmpty().
		Member("pairs", dsl.Ref(func(c *catalog) *map[string]int32 { return &c.Pairs })).OmitEmpty().
		Dictionary(bsonmap.RepresentationArrayOfDocuments).
		Member("ordered", dsl.Ref(func(c *catalog) **bsonmap.OrderedMap[string, int32] { return &c.Ordered })).OmitEmpty().
		Register(reg); err != nil {
		t.Fatalf("register catalog: %v", err)
	}
	return reg
}

func member(t *testing.T, v bsonmap.Value, name string) bsonmap.Value {
	t.Helper()
	d, ok := v.Document()
	if !ok {
		t.Fatalf("expected document, got %s", v)
	}
	m, ok := d.Lookup(name)
	if !ok {
		t.Fatalf("element %q missing in %s", name, v)
	}
	return m
}

func TestDictionary_DynamicRepresentation(t *testing.T) {
	reg := catalogRegistry(t)

	v := mustMarshal(t, reg, &catalog{Prices: map[string]int32{"b": 2, "a": 1}})
	wantValue(t, member(t, v, "prices"), doc(el("a", i32(1)), el("b", i32(2))))

	// Any key that cannot be an element name switches the whole map.
	v = mustMarshal(t, reg, &catalog{Prices: map[string]int32{"ok": 1, "": 2, "$x": 3, "a.b": 4}})
	wantValue(t, member(t, v, "prices"), arr(
		arr(str(""), i32(2)),
		arr(str("$x"), i32(3)),
		arr(str("a.b"), i32(4)),
		arr(str("ok"), i32(1)),
	))
	out := mustUnmarshal[*catalog](t, reg, v)
	if diff := cmp.Diff(map[string]int32{"ok": 1, "": 2, "$x": 3, "a.b": 4}, out.Prices); diff != "" {
		t.Fatalf("decode (-want +got):\n%s", diff)
	}

	v = mustMarshal(t, reg, &catalog{Codes: map[int32]string{2: "b", 1: "a"}})
	wantValue(t, member(t, v, "codes"), arr(arr(i32(1), str("a")), arr(i32(2), str("b"))))
	out = mustUnmarshal[*catalog](t, reg, v)
	if diff := cmp.Diff(map[int32]string{1: "a", 2: "b"}, out.Codes); diff != "" {
		t.Fatalf("decode (-want +got):\n%s", diff)
	}
}

func TestDictionary_FixedRepresentations(t *testing.T) {
	reg := catalogRegistry(t)
	v := mustMarshal(t, reg, &catalog{Pairs: map[string]int32{"b": 2, "a": 1}})
	wantValue(t, member(t, v, "pairs"), arr(
		doc(el("k", str("a")), el("v", i32(1))),
		doc(el("k", str("b")), el("v", i32(2))),
	))

	// A document representation cannot hold non-string keys.
	reg = catalogRegistry(t, bsonmap.WithDictionaryRepresentation(bsonmap.RepresentationDocument))
	_, err := bsonmap.Marshal(bg, reg, &catalog{Codes: map[int32]string{1: "a"}})
	var se *bsonmap.ShapeError
	if !errors.As(err, &se) {
		t.Fatalf("expected ShapeError, got %v", err)
	}

	reg = catalogRegistry(t, bsonmap.WithDictionaryRepresentation(bsonmap.RepresentationArrayOfArrays))
	v = mustMarshal(t, reg, &catalog{Prices: map[string]int32{"a": 1}})
	wantValue(t, member(t, v, "prices"), arr(arr(str("a"), i32(1))))

	ser, err := reg.Lookup(reflect.TypeFor[map[string]int32]())
	if err != nil {
		t.Fatal(err)
	}
	ds, ok := ser.(bsonmap.DictionarySerializer)
	if !ok || ds.Representation() != bsonmap.RepresentationArrayOfArrays ||
		ds.KeyType() != reflect.TypeFor[string]() || ds.ElemType() != reflect.TypeFor[int32]() {
		t.Fatalf("unexpected dictionary serializer %#v", ser)
	}
}

func TestDictionary_DecodeAcceptsEveryShape(t *testing.T) {
	reg := catalogRegistry(t)
	want := map[string]int32{"a": 1, "b": 2}
	shapes := map[string]bsonmap.Value{
		"document":         doc(el("a", i32(1)), el("b", i32(2))),
		"arrayOfArrays":    arr(arr(str("a"), i32(1)), arr(str("b"), i32(2))),
		"arrayOfDocuments": arr(doc(el("k", str("a")), el("v", i32(1))), doc(el("k", str("b")), el("v", i32(2)))),
		"mixed":            arr(arr(str("a"), i32(1)), doc(el("k", str("b")), el("v", i32(2)))),
	}
	for name, wire := range shapes {
		for _, field := range []string{"prices", "pairs"} {
			out := mustUnmarshal[*catalog](t, reg, doc(el(field, wire)))
			got := out.Prices
			if field == "pairs" {
				got = out.Pairs
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("%s into %s (-want +got):\n%s", name, field, diff)
			}
		}
	}
}

func TestDictionary_MalformedEntries(t *testing.T) {
	reg := catalogRegistry(t)
	bad := map[string]bsonmap.Value{
		"swapped":     arr(doc(el("v", i32(1)), el("k", str("a")))),
		"extra field": arr(doc(el("k", str("a")), el("v", i32(1)), el("x", i32(0)))),
		"short pair":  arr(arr(str("a"))),
		"long pair":   arr(arr(str("a"), i32(1), i32(2))),
		"scalar":      arr(i32(1)),
		"not a map":   str("x"),
	}
	for name, wire := range bad {
		_, err := bsonmap.Unmarshal[*catalog](bg, reg, doc(el("prices", wire)))
		var se *bsonmap.ShapeError
		if !errors.As(err, &se) {
			t.Errorf("%s: expected ShapeError, got %v", name, err)
		}
	}
}

func TestDictionary_OrderedMap(t *testing.T) {
	reg := catalogRegistry(t)
	om := bsonmap.NewOrderedMap[string, int32]()
	om.Set("zeta", 1)
	om.Set("alpha", 2)
	om.Set("mid", 3)
	om.Set("zeta", 4)

	v := mustMarshal(t, reg, &catalog{Ordered: om})
	wantValue(t, member(t, v, "ordered"), doc(el("zeta", i32(4)), el("alpha", i32(2)), el("mid", i32(3))))

	out := mustUnmarshal[*catalog](t, reg, v)
	if diff := cmp.Diff([]string{"zeta", "alpha", "mid"}, out.Ordered.Keys()); diff != "" {
		t.Fatalf("order (-want +got):\n%s", diff)
	}
	if got, ok := out.Ordered.Get("alpha"); !ok || got != 2 {
		t.Fatalf("Get(alpha) = %d, %v", got, ok)
	}

	out.Ordered.Delete("alpha")
	var keys []string
	for k := range out.Ordered.All() {
		keys = append(keys, k)
	}
	if !slices.Equal(keys, []string{"zeta", "mid"}) || out.Ordered.Len() != 2 {
		t.Fatalf("after delete: %v", keys)
	}
}

func TestDictionary_RootMap(t *testing.T) {
	reg := bsonmap.NewRegistry()
	v := mustMarshal(t, reg, map[string]any{"n": int32(1), "s": "x"})
	wantValue(t, v, doc(el("n", i32(1)), el("s", str("x"))))
	out := mustUnmarshal[map[string]any](t, reg, v)
	if diff := cmp.Diff(map[string]any{"n": int32(1), "s": "x"}, out); diff != "" {
		t.Fatalf("decode (-want +got):\n%s", diff)
	}
}
