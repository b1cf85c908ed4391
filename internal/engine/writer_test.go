package engine_test

import (
	"testing"

	eng "github.com/reoring/bsonmap/internal/engine"
)

func TestTreeWriter_BuildsNestedDocument(t *testing.T) {
	w := eng.NewTreeWriter()
	steps := []func() error{
		w.WriteStartDocument,
		func() error { return w.WriteName("a") },
		func() error { return w.WriteInt32(1) },
		func() error { return w.WriteName("list") },
		w.WriteStartArray,
		func() error { return w.WriteString("x") },
		w.WriteNull,
		w.WriteEndArray,
		w.WriteEndDocument,
	}
	for i, s := range steps {
		if err := s(); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
	got, err := w.Document()
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	want := eng.NewDocument(
		eng.E("a", eng.Int32Value(1)),
		eng.E("list", eng.ArrayValue(eng.StringValue("x"), eng.NullValue())),
	)
	if !got.Equal(want) {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestTreeWriter_ValueWithoutName(t *testing.T) {
	w := eng.NewTreeWriter()
	_ = w.WriteStartDocument()
	if err := w.WriteString("x"); err == nil {
		t.Fatalf("expected error when name is missing")
	}
}

func TestTreeWriter_Incomplete(t *testing.T) {
	w := eng.NewTreeWriter()
	_ = w.WriteStartDocument()
	if _, err := w.Value(); err == nil {
		t.Fatalf("expected error for unfinished document")
	}
}
