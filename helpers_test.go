package bsonmap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/bsonmap"
)

var (
	bg = context.Background()

	docComparer   = cmp.Comparer(func(a, b *bsonmap.Document) bool { return a.Equal(b) })
	valueComparer = cmp.Comparer(func(a, b bsonmap.Value) bool { return a.Equal(b) })
)

func doc(elems ...bsonmap.Element) bsonmap.Value {
	return bsonmap.DocumentValue(bsonmap.NewDocument(elems...))
}

func el(name string, v bsonmap.Value) bsonmap.Element { return bsonmap.E(name, v) }

func str(s string) bsonmap.Value  { return bsonmap.StringValue(s) }
func i32(i int32) bsonmap.Value   { return bsonmap.Int32Value(i) }
func f64(f float64) bsonmap.Value { return bsonmap.DoubleValue(f) }
func arr(items ...bsonmap.Value) bsonmap.Value {
	return bsonmap.ArrayValue(items...)
}

func mustMarshal[T any](t *testing.T, reg *bsonmap.Registry, v T, opts ...bsonmap.EncodeOpt) bsonmap.Value {
	t.Helper()
	out, err := bsonmap.Marshal(bg, reg, v, opts...)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return out
}

func mustUnmarshal[T any](t *testing.T, reg *bsonmap.Registry, v bsonmap.Value, opts ...bsonmap.DecodeOpt) T {
	t.Helper()
	out, err := bsonmap.Unmarshal[T](bg, reg, v, opts...)
	if err != nil {
		t.Fatalf("Unmarshal(%s): %v", v, err)
	}
	return out
}

func wantValue(t *testing.T, got, want bsonmap.Value) {
	t.Helper()
	if !got.Equal(want) {
		t.Fatalf("encoded value mismatch\n got %s\nwant %s", got, want)
	}
}

func wantCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	got, ok := bsonmap.AsCode(err)
	if !ok || got != code {
		t.Fatalf("expected code %s, got %q (%v)", code, got, err)
	}
}

// hasCode walks the whole chain, unlike AsCode which stops at the nearest.
func hasCode(err error, code string) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if ce, ok := e.(bsonmap.CodedError); ok && ce.Code() == code {
			return true
		}
	}
	return false
}
