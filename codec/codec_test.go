package codec_test

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reoring/bsonmap"
	"github.com/reoring/bsonmap/codec"
	"github.com/reoring/bsonmap/dsl"
)

type event struct {
	At    time.Time
	Seq   int64
	Owner bsonmap.ObjectID
	Name  string
}

var errBlank = errors.New("name must not be blank")

func TestStringRepresentations(t *testing.T) {
	ctx := context.Background()
	reg := bsonmap.NewRegistry()
	_, err := dsl.ClassOf[event]().
		Member("at", dsl.Ref(func(e *event) *time.Time { return &e.At })).Serializer(codec.TimeRFC3339()).
		Member("seq", dsl.Ref(func(e *event) *int64 { return &e.Seq })).Serializer(codec.Int64String()).
		Member("owner", dsl.Ref(func(e *event) *bsonmap.ObjectID { return &e.Owner })).Serializer(codec.ObjectIDHex()).
		Register(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	owner, _ := primitive.ObjectIDFromHex("5f1d7a3b9c8e4a0012345678")
	in := &event{At: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Seq: 1 << 60, Owner: owner}

	doc, err := bsonmap.MarshalDocument(ctx, reg, in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := bsonmap.NewDocument(
		bsonmap.E("at", bsonmap.StringValue("2025-01-01T00:00:00Z")),
		bsonmap.E("seq", bsonmap.StringValue("1152921504606846976")),
		bsonmap.E("owner", bsonmap.StringValue("5f1d7a3b9c8e4a0012345678")),
	)
	if !doc.Equal(want) {
		t.Fatalf("document = %s, want %s", doc, want)
	}

	out, err := bsonmap.UnmarshalDocument[*event](ctx, reg, doc)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidStrings(t *testing.T) {
	ctx := context.Background()
	reg := bsonmap.NewRegistry()
	if _, err := dsl.ClassOf[event]().
		Member("at", dsl.Ref(func(e *event) *time.Time { return &e.At })).Serializer(codec.TimeRFC3339()).
		Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	for name, v := range map[string]bsonmap.Value{
		"format": bsonmap.StringValue("yesterday"),
		"kind":   bsonmap.Int32Value(3),
	} {
		t.Run(name, func(t *testing.T) {
			doc := bsonmap.NewDocument(bsonmap.E("at", v))
			_, err := bsonmap.UnmarshalDocument[*event](ctx, reg, doc)
			var mce *bsonmap.MemberCodecError
			if !errors.As(err, &mce) || mce.Element != "at" {
				t.Fatalf("expected MemberCodecError for at, got %v", err)
			}
			var se *bsonmap.ShapeError
			if !errors.As(err, &se) {
				t.Fatalf("expected ShapeError cause, got %v", err)
			}
		})
	}
}

func TestValidated(t *testing.T) {
	ctx := context.Background()
	reg := bsonmap.NewRegistry()
	base, err := reg.Lookup(reflect.TypeFor[string]())
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if _, err := dsl.ClassOf[event]().
		Member("name", dsl.Ref(func(e *event) *string { return &e.Name })).
		Serializer(codec.Validated(base, func(s string) error {
			if s == "" {
				return errBlank
			}
			return nil
		})).
		Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := bsonmap.MarshalDocument(ctx, reg, &event{}); !errors.Is(err, errBlank) {
		t.Fatalf("encode: expected errBlank, got %v", err)
	}
	doc := bsonmap.NewDocument(bsonmap.E("name", bsonmap.StringValue("")))
	if _, err := bsonmap.UnmarshalDocument[*event](ctx, reg, doc); !errors.Is(err, errBlank) {
		t.Fatalf("decode: expected errBlank, got %v", err)
	}
	doc = bsonmap.NewDocument(bsonmap.E("name", bsonmap.StringValue("deploy")))
	got, err := bsonmap.UnmarshalDocument[*event](ctx, reg, doc)
	if err != nil || got.Name != "deploy" {
		t.Fatalf("decode = %+v, %v", got, err)
	}
}
