package bsonmap_test

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reoring/bsonmap"
	"github.com/reoring/bsonmap/dsl"
)

type person struct {
	ID    bsonmap.ObjectID
	Name  string
	Age   int32
	Email string
}

func personRegistry(t *testing.T, opts ...bsonmap.RegistryOpt) *bsonmap.Registry {
	t.Helper()
	reg := bsonmap.NewRegistry(opts...)
	_, err := dsl.ClassOf[person]().
		Member("_id", dsl.Ref(func(p *person) *bsonmap.ObjectID { return &p.ID })).ID().
		Member("name", dsl.Ref(func(p *person) *string { return &p.Name })).Required().
		Member("age", dsl.Ref(func(p *person) *int32 { return &p.Age })).Default(int32(18)).
		Member("email", dsl.Ref(func(p *person) *string { return &p.Email })).OmitEmpty().
		Register(reg)
	if err != nil {
		t.Fatalf("register person: %v", err)
	}
	return reg
}

func fixedOID(t *testing.T) bsonmap.ObjectID {
	t.Helper()
	oid, err := primitive.ObjectIDFromHex("65a1f0c2e4b0a1b2c3d4e5f6")
	if err != nil {
		t.Fatal(err)
	}
	return oid
}

func TestClassMap_RoundTrip(t *testing.T) {
	reg := personRegistry(t)
	oid := fixedOID(t)
	in := &person{ID: oid, Name: "ann", Age: 30, Email: "ann@example.com"}

	got := mustMarshal(t, reg, in)
	wantValue(t, got, doc(
		el("_id", bsonmap.ObjectIDValue(oid)),
		el("name", str("ann")),
		el("age", i32(30)),
		el("email", str("ann@example.com")),
	))
	out := mustUnmarshal[*person](t, reg, got)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}

	// Empty email is omitted.
	got = mustMarshal(t, reg, &person{ID: oid, Name: "bob"})
	if d, _ := got.Document(); d.Len() != 3 {
		t.Fatalf("expected omitted email, got %s", got)
	}
}

func TestClassMap_NullRoot(t *testing.T) {
	reg := personRegistry(t)
	wantValue(t, mustMarshal[*person](t, reg, nil), bsonmap.NullValue())
	if out := mustUnmarshal[*person](t, reg, bsonmap.NullValue()); out != nil {
		t.Fatalf("expected nil, got %+v", out)
	}
	_, err := bsonmap.Unmarshal[*person](bg, reg, str("x"))
	wantCode(t, err, bsonmap.CodeShape)
}

func TestClassMap_MissingRequiredVsNull(t *testing.T) {
	reg := personRegistry(t)

	_, err := bsonmap.Unmarshal[*person](bg, reg, doc(el("age", i32(1))))
	var missing *bsonmap.MissingRequiredFieldError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingRequiredFieldError, got %v", err)
	}
	if missing.Element != "name" || missing.Member != "Name" {
		t.Fatalf("unexpected missing member %+v", missing)
	}

	// A present null satisfies required and bypasses the default.
	out := mustUnmarshal[*person](t, reg, doc(el("name", bsonmap.NullValue()), el("age", bsonmap.NullValue())))
	if out.Name != "" || out.Age != 0 {
		t.Fatalf("null members should decode to zero values, got %+v", out)
	}

	out = mustUnmarshal[*person](t, reg, doc(el("name", str("x"))))
	if out.Age != 18 {
		t.Fatalf("absent age should take the default, got %d", out.Age)
	}
}

func TestClassMap_UnmappedAndSkippedElements(t *testing.T) {
	reg := personRegistry(t)

	_, err := bsonmap.Unmarshal[*person](bg, reg, doc(el("name", str("x")), el("zzz", i32(1))))
	var unmapped *bsonmap.UnmappedFieldError
	if !errors.As(err, &unmapped) || unmapped.Element != "zzz" {
		t.Fatalf("expected unmapped zzz, got %v", err)
	}

	// The discriminator and reserved system elements are never unmapped.
	mustUnmarshal[*person](t, reg, doc(
		el("_t", str("anything")),
		el("name", str("x")),
		el("__safeContent__", arr(i32(1))),
	))

	reg = personRegistry(t, bsonmap.WithReservedElements("audit"))
	mustUnmarshal[*person](t, reg, doc(el("name", str("x")), el("audit", i32(1))))
	_, err = bsonmap.Unmarshal[*person](bg, reg, doc(el("name", str("x")), el("__safeContent__", i32(1))))
	wantCode(t, err, bsonmap.CodeUnmappedField)
}

type lenient struct {
	Name string
}

func TestClassMap_IgnoreExtraElements(t *testing.T) {
	reg := bsonmap.NewRegistry()
	if _, err := dsl.ClassOf[lenient]().IgnoreExtraElements().
		Member("name", dsl.Ref(func(l *lenient) *string { return &l.Name })).
		Register(reg); err != nil {
		t.Fatal(err)
	}
	out := mustUnmarshal[*lenient](t, reg, doc(el("a", i32(1)), el("name", str("n")), el("b", doc())))
	if out.Name != "n" {
		t.Fatalf("got %+v", out)
	}
}

func TestClassMap_MemberCodecError(t *testing.T) {
	reg := personRegistry(t)
	_, err := bsonmap.Unmarshal[*person](bg, reg, doc(el("name", i32(5))))
	var mce *bsonmap.MemberCodecError
	if !errors.As(err, &mce) {
		t.Fatalf("expected MemberCodecError, got %v", err)
	}
	if mce.Member != "Name" || mce.Element != "name" || mce.Class != reflect.TypeFor[*person]() {
		t.Fatalf("unexpected context %+v", mce)
	}
	var shape *bsonmap.ShapeError
	if !errors.As(err, &shape) || shape.Got != bsonmap.KindInt32 {
		t.Fatalf("expected nested ShapeError, got %v", err)
	}

	_, err = bsonmap.Unmarshal[*person](bg, reg, doc(el("name", str("x")), el("age", bsonmap.Int64Value(1<<40))))
	if !errors.As(err, &shape) || !strings.Contains(shape.Detail, "overflows") {
		t.Fatalf("expected overflow, got %v", err)
	}
}

type profile struct {
	Name string
	Rest *bsonmap.Document
}

type preferences struct {
	Name string
	Rest map[string]any
}

func TestClassMap_ExtraElementsDocument(t *testing.T) {
	reg := bsonmap.NewRegistry()
	if _, err := dsl.ClassOf[profile]().
		Member("name", dsl.Ref(func(p *profile) *string { return &p.Name })).
		Member("rest", dsl.Ref(func(p *profile) **bsonmap.Document { return &p.Rest })).ExtraElements().
		Register(reg); err != nil {
		t.Fatal(err)
	}
	in := doc(
		el("x", i32(1)),
		el("_t", str("ignored")),
		el("name", str("a")),
		el("nested", doc(el("y", bsonmap.BooleanValue(true)))),
	)
	out := mustUnmarshal[*profile](t, reg, in)
	want := bsonmap.NewDocument(el("x", i32(1)), el("nested", doc(el("y", bsonmap.BooleanValue(true)))))
	if !out.Rest.Equal(want) {
		t.Fatalf("extra elements = %s, want %s", out.Rest, want)
	}

	// The sink is flattened back into the enclosing document.
	wantValue(t, mustMarshal(t, reg, out), doc(
		el("name", str("a")),
		el("x", i32(1)),
		el("nested", doc(el("y", bsonmap.BooleanValue(true)))),
	))
}

func TestClassMap_ExtraElementsMap(t *testing.T) {
	reg := bsonmap.NewRegistry()
	if _, err := dsl.ClassOf[preferences]().
		Member("name", dsl.Ref(func(p *preferences) *string { return &p.Name })).
		Member("rest", dsl.Ref(func(p *preferences) *map[string]any { return &p.Rest })).ExtraElements().
		Register(reg); err != nil {
		t.Fatal(err)
	}
	out := mustUnmarshal[*preferences](t, reg, doc(el("name", str("a")), el("theme", str("dark")), el("size", i32(3))))
	if diff := cmp.Diff(map[string]any{"theme": "dark", "size": int32(3)}, out.Rest); diff != "" {
		t.Fatalf("extra map (-want +got):\n%s", diff)
	}
	wantValue(t, mustMarshal(t, reg, out), doc(
		el("name", str("a")),
		el("size", i32(3)),
		el("theme", str("dark")),
	))

	// Tagged subdocuments of unknown types are captured without dispatch.
	future := doc(el("_t", str("NewerType")), el("x", i32(1)), el("list", arr(doc(el("_t", str("Other"))))))
	out = mustUnmarshal[*preferences](t, reg, doc(el("name", str("a")), el("future", future)))
	d, ok := out.Rest["future"].(*bsonmap.Document)
	if !ok {
		t.Fatalf("future captured as %T", out.Rest["future"])
	}
	wantValue(t, bsonmap.DocumentValue(d), future)
	wantValue(t, mustMarshal(t, reg, out), doc(el("name", str("a")), el("future", future)))
}

type account struct {
	Owner   string
	Balance int64
}

func TestMemberMap_SetReadOnlyNamesClass(t *testing.T) {
	cm := dsl.ClassOf[account]().
		Member("display", dsl.Getter("Display", func(a *account) string { return a.Owner })).
		MustFreeze()
	mm, _ := cm.MemberByName("Display")
	err := mm.Set(&account{}, "x")
	var cme *bsonmap.ClassMapError
	if !errors.As(err, &cme) || cme.Class != reflect.TypeFor[*account]() {
		t.Fatalf("expected ClassMapError for *account, got %v", err)
	}
	if strings.Contains(err.Error(), "<nil>") {
		t.Fatalf("message lost the class: %v", err)
	}
}

func TestClassMap_ReadOnlyAndShouldSerialize(t *testing.T) {
	reg := bsonmap.NewRegistry()
	if _, err := dsl.ClassOf[account]().
		Member("owner", dsl.Ref(func(a *account) *string { return &a.Owner })).
		Member("display", dsl.Getter("Display", func(a *account) string { return strings.ToUpper(a.Owner) })).
		Member("balance", dsl.Ref(func(a *account) *int64 { return &a.Balance })).
		ShouldSerialize(func(a *account, _ any) bool { return a.Balance > 0 }).
		Register(reg); err != nil {
		t.Fatal(err)
	}
	wantValue(t, mustMarshal(t, reg, &account{Owner: "ann"}), doc(el("owner", str("ann")), el("display", str("ANN"))))
	wantValue(t, mustMarshal(t, reg, &account{Owner: "ann", Balance: 2}), doc(
		el("owner", str("ann")), el("display", str("ANN")), el("balance", bsonmap.Int64Value(2)),
	))

	out := mustUnmarshal[*account](t, reg, doc(el("owner", str("bob")), el("display", str("ignored"))))
	if out.Owner != "bob" {
		t.Fatalf("got %+v", out)
	}
}

type point struct {
	X, Y, Z int32
	Label   string
	via     string
}

func pointRegistry(t *testing.T) *bsonmap.Registry {
	t.Helper()
	reg := bsonmap.NewRegistry()
	_, err := dsl.ClassOf[point]().
		Member("x", dsl.Ref(func(p *point) *int32 { return &p.X })).
		Member("y", dsl.Ref(func(p *point) *int32 { return &p.Y })).
		Member("z", dsl.Ref(func(p *point) *int32 { return &p.Z })).
		Member("label", dsl.Ref(func(p *point) *string { return &p.Label })).
		Class().
		Creator(func(a dsl.Args) (*point, error) {
			return &point{X: dsl.Arg[int32](a, "x"), Y: dsl.Arg[int32](a, "y"), via: "xy"}, nil
		}, "x", "y").
		Creator(func(a dsl.Args) (*point, error) {
			return &point{X: dsl.Arg[int32](a, "x"), Y: dsl.Arg[int32](a, "y"), Z: dsl.Arg[int32](a, "z"), via: "xyz"}, nil
		}, "x", "y", "z").
		Register(reg)
	if err != nil {
		t.Fatalf("register point: %v", err)
	}
	return reg
}

func TestClassMap_CreatorSelection(t *testing.T) {
	reg := pointRegistry(t)

	p := mustUnmarshal[*point](t, reg, doc(el("label", str("p")), el("x", i32(1)), el("y", i32(2)), el("z", i32(3))))
	if p.via != "xyz" || p.Z != 3 || p.Label != "p" {
		t.Fatalf("expected the three-parameter creator, got %+v", p)
	}

	p = mustUnmarshal[*point](t, reg, doc(el("x", i32(1)), el("y", i32(2))))
	if p.via != "xy" || p.X != 1 || p.Y != 2 {
		t.Fatalf("expected the two-parameter creator, got %+v", p)
	}

	_, err := bsonmap.Unmarshal[*point](bg, reg, doc(el("label", str("only"))))
	var amb *bsonmap.AmbiguousConstructionError
	if !errors.As(err, &amb) || amb.Matching != 0 {
		t.Fatalf("expected no matching creator, got %v", err)
	}
	if diff := cmp.Diff([]string{"label"}, amb.Elements); diff != "" {
		t.Fatalf("elements (-want +got):\n%s", diff)
	}
}

type pair struct {
	A, B string
}

func TestClassMap_CreatorTieAndFailures(t *testing.T) {
	errBoom := errors.New("boom")
	build := func(fa, fb func(dsl.Args) (*pair, error)) *bsonmap.Registry {
		reg := bsonmap.NewRegistry()
		if _, err := dsl.ClassOf[pair]().
			Member("a", dsl.Ref(func(p *pair) *string { return &p.A })).
			Member("b", dsl.Ref(func(p *pair) *string { return &p.B })).
			Class().
			Creator(fa, "a").
			Creator(fb, "b").
			Register(reg); err != nil {
			t.Fatal(err)
		}
		return reg
	}
	ok := func(a dsl.Args) (*pair, error) { return &pair{}, nil }

	reg := build(ok, ok)
	_, err := bsonmap.Unmarshal[*pair](bg, reg, doc(el("a", str("1")), el("b", str("2"))))
	var amb *bsonmap.AmbiguousConstructionError
	if !errors.As(err, &amb) || amb.Matching != 2 || amb.Consumed != 1 {
		t.Fatalf("expected a tie between two creators, got %v", err)
	}

	// Only one creator is satisfiable: no tie.
	out := mustUnmarshal[*pair](t, reg, doc(el("b", str("2"))))
	if out.B != "" {
		t.Fatalf("consumed parameters are not re-assigned, got %+v", out)
	}

	reg = build(func(dsl.Args) (*pair, error) { return nil, nil }, ok)
	_, err = bsonmap.Unmarshal[*pair](bg, reg, doc(el("a", str("1"))))
	wantCode(t, err, bsonmap.CodeConstructionNil)

	reg = build(func(dsl.Args) (*pair, error) { return nil, errBoom }, ok)
	_, err = bsonmap.Unmarshal[*pair](bg, reg, doc(el("a", str("1"))))
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected creator error, got %v", err)
	}
}

type money struct {
	amount   int64
	currency string
}

func TestClassMap_CreatorConsumesReadOnlyMembers(t *testing.T) {
	reg := bsonmap.NewRegistry()
	if _, err := dsl.ClassOf[money]().
		Member("amount", dsl.Getter("Amount", func(m *money) int64 { return m.amount })).
		Member("currency", dsl.Getter("Currency", func(m *money) string { return m.currency })).
		Class().
		Creator(func(a dsl.Args) (*money, error) {
			return &money{amount: dsl.Arg[int64](a, "amount"), currency: dsl.Arg[string](a, "currency")}, nil
		}, "amount", "currency").
		Register(reg); err != nil {
		t.Fatal(err)
	}
	in := &money{amount: 125, currency: "EUR"}
	v := mustMarshal(t, reg, in)
	wantValue(t, v, doc(el("amount", bsonmap.Int64Value(125)), el("currency", str("EUR"))))
	out := mustUnmarshal[*money](t, reg, doc(el("currency", str("EUR")), el("amount", i32(125))))
	if *out != *in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

var errBadHook = errors.New("rejected by EndInit")

type hooked struct {
	Name         string
	begun, ended bool
}

func (h *hooked) BeginInit() { h.begun = true }

func (h *hooked) EndInit() error {
	if h.Name == "bad" {
		return errBadHook
	}
	h.ended = true
	return nil
}

func TestClassMap_InitializerHooks(t *testing.T) {
	reg := bsonmap.NewRegistry()
	if _, err := dsl.ClassOf[hooked]().
		Member("name", dsl.Ref(func(h *hooked) *string { return &h.Name })).
		Register(reg); err != nil {
		t.Fatal(err)
	}
	out := mustUnmarshal[*hooked](t, reg, doc(el("name", str("ok"))))
	if !out.begun || !out.ended {
		t.Fatalf("hooks not run: %+v", out)
	}
	_, err := bsonmap.Unmarshal[*hooked](bg, reg, doc(el("name", str("bad"))))
	if !errors.Is(err, errBadHook) {
		t.Fatalf("expected EndInit error, got %v", err)
	}
}

type order struct {
	Status string
	Total  int32
	ID     string
}

type holder struct {
	Order *order
}

func TestClassMap_IDFirst(t *testing.T) {
	build := func(opts ...bsonmap.RegistryOpt) *bsonmap.Registry {
		reg := bsonmap.NewRegistry(opts...)
		if _, err := dsl.ClassOf[order]().Discriminator("Order").DiscriminatorRequired().
			Member("status", dsl.Ref(func(o *order) *string { return &o.Status })).
			Member("total", dsl.Ref(func(o *order) *int32 { return &o.Total })).
			Member("_id", dsl.Ref(func(o *order) *string { return &o.ID })).ID().
			Register(reg); err != nil {
			t.Fatal(err)
		}
		if _, err := dsl.ClassOf[holder]().
			Member("order", dsl.Ref(func(h *holder) **order { return &h.Order })).
			Register(reg); err != nil {
			t.Fatal(err)
		}
		return reg
	}
	o := &order{Status: "open", Total: 3, ID: "o-1"}
	declared := doc(el("_t", str("Order")), el("status", str("open")), el("total", i32(3)), el("_id", str("o-1")))
	idFirst := doc(el("_id", str("o-1")), el("_t", str("Order")), el("status", str("open")), el("total", i32(3)))

	wantValue(t, mustMarshal(t, build(), o), declared)
	wantValue(t, mustMarshal(t, build(), o, bsonmap.EncodeOpt{IDFirst: true}), idFirst)
	wantValue(t, mustMarshal(t, build(bsonmap.WithIDFirst(true)), o), idFirst)

	// Nested documents keep declaration order.
	wantValue(t, mustMarshal(t, build(), &holder{Order: o}, bsonmap.EncodeOpt{IDFirst: true}), doc(el("order", declared)))

	out := mustUnmarshal[*holder](t, build(), doc(el("order", idFirst)))
	if diff := cmp.Diff(o, out.Order); diff != "" {
		t.Fatalf("decode (-want +got):\n%s", diff)
	}
}

func TestClassMap_Introspection(t *testing.T) {
	reg := personRegistry(t)
	ser, err := reg.Lookup(reflect.TypeFor[*person]())
	if err != nil {
		t.Fatal(err)
	}
	ds, ok := ser.(bsonmap.DocumentSerializer)
	if !ok {
		t.Fatalf("class serializer does not expose member info")
	}
	info, ok := ds.MemberInfo("Email")
	if !ok || info.ElementName != "email" || info.NominalType != reflect.TypeFor[string]() || info.Serializer == nil {
		t.Fatalf("unexpected member info %+v", info)
	}
	if _, ok := ds.MemberInfo("email"); ok {
		t.Fatalf("member info is keyed by member name")
	}

	idp := ser.(bsonmap.IDProvider)
	p := &person{Name: "n"}
	_, idType, gen, ok := idp.DocumentID(p)
	if !ok || idType != reflect.TypeFor[bsonmap.ObjectID]() || gen == nil {
		t.Fatalf("DocumentID = %v %v %v", idType, gen, ok)
	}
	id, err := bsonmap.EnsureDocumentID(reg, p)
	if err != nil {
		t.Fatalf("EnsureDocumentID: %v", err)
	}
	if p.ID.IsZero() || id != p.ID {
		t.Fatalf("generated id %v not assigned (%v)", id, p.ID)
	}
	again, err := bsonmap.EnsureDocumentID(reg, p)
	if err != nil || again != id {
		t.Fatalf("existing id must be kept: %v %v", again, err)
	}

	oid := fixedOID(t)
	if err := idp.SetDocumentID(p, oid); err != nil || p.ID != oid {
		t.Fatalf("SetDocumentID: %v (%v)", err, p.ID)
	}

	reg = bsonmap.NewRegistry()
	if _, err := dsl.ClassOf[lenient]().Member("name", dsl.Ref(func(l *lenient) *string { return &l.Name })).Register(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := bsonmap.EnsureDocumentID(reg, &lenient{}); err == nil {
		t.Fatalf("expected error for a class without id")
	}
}

type size struct {
	W, H int32
}

type box struct {
	Size  size
	Sizes []size
}

func TestClassMap_StructValueMembers(t *testing.T) {
	reg := bsonmap.NewRegistry()
	if _, err := dsl.ClassOf[size]().
		Member("w", dsl.Ref(func(s *size) *int32 { return &s.W })).
		Member("h", dsl.Ref(func(s *size) *int32 { return &s.H })).
		Register(reg); err != nil {
		t.Fatal(err)
	}
	if _, err := dsl.ClassOf[box]().
		Member("size", dsl.Ref(func(b *box) *size { return &b.Size })).
		Member("sizes", dsl.Ref(func(b *box) *[]size { return &b.Sizes })).
		Register(reg); err != nil {
		t.Fatal(err)
	}
	in := &box{Size: size{1, 2}, Sizes: []size{{3, 4}}}
	v := mustMarshal(t, reg, in)
	wantValue(t, v, doc(
		el("size", doc(el("w", i32(1)), el("h", i32(2)))),
		el("sizes", arr(doc(el("w", i32(3)), el("h", i32(4))))),
	))
	if diff := cmp.Diff(in, mustUnmarshal[*box](t, reg, v)); diff != "" {
		t.Fatalf("round trip (-want +got):\n%s", diff)
	}
}

func TestClassMap_ContextCanceled(t *testing.T) {
	reg := personRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := bsonmap.Marshal(ctx, reg, &person{Name: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("Marshal: expected context.Canceled, got %v", err)
	}
	if _, err := bsonmap.Unmarshal[*person](ctx, reg, doc(el("name", str("x")))); !errors.Is(err, context.Canceled) {
		t.Fatalf("Unmarshal: expected context.Canceled, got %v", err)
	}
}

type broken struct {
	A, B string
	X    *bsonmap.Document
	Y    *bsonmap.Document
	N    int32
	M    int32
}

func TestFreezeClassMap_Invariants(t *testing.T) {
	cases := map[string]func() (*bsonmap.ClassMap, error){
		"duplicate element": func() (*bsonmap.ClassMap, error) {
			return dsl.ClassOf[broken]().
				Member("a", dsl.Ref(func(b *broken) *string { return &b.A })).
				Member("a", dsl.Ref(func(b *broken) *string { return &b.B })).
				Freeze()
		},
		"two ids": func() (*bsonmap.ClassMap, error) {
			return dsl.ClassOf[broken]().
				Member("a", dsl.Ref(func(b *broken) *string { return &b.A })).ID().
				Member("b", dsl.Ref(func(b *broken) *string { return &b.B })).ID().
				Freeze()
		},
		"two extras": func() (*bsonmap.ClassMap, error) {
			return dsl.ClassOf[broken]().
				Member("x", dsl.Ref(func(b *broken) **bsonmap.Document { return &b.X })).ExtraElements().
				Member("y", dsl.Ref(func(b *broken) **bsonmap.Document { return &b.Y })).ExtraElements().
				Freeze()
		},
		"extra of wrong type": func() (*bsonmap.ClassMap, error) {
			return dsl.ClassOf[broken]().
				Member("n", dsl.Ref(func(b *broken) *int32 { return &b.N })).ExtraElements().
				Freeze()
		},
		"creator with unknown element": func() (*bsonmap.ClassMap, error) {
			return dsl.ClassOf[broken]().
				Member("n", dsl.Ref(func(b *broken) *int32 { return &b.N })).
				Class().
				Creator(func(dsl.Args) (*broken, error) { return &broken{}, nil }, "m").
				Freeze()
		},
	}
	for name, freeze := range cases {
		_, err := freeze()
		var cme *bsonmap.ClassMapError
		if !errors.As(err, &cme) {
			t.Errorf("%s: expected ClassMapError, got %v", name, err)
		}
	}

	if _, err := bsonmap.FreezeClassMap(bsonmap.ClassMapDef{Type: reflect.TypeFor[broken]()}); err == nil {
		t.Errorf("non-pointer class type must be rejected")
	}
}
