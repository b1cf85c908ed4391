// Package bsonbin reads and writes the binary BSON layout.
package bsonbin

import (
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/reoring/bsonmap"
)

type frame struct {
	start int32
	array bool
	n     int
}

// Writer streams a document into BSON bytes. The root value must be a document.
type Writer struct {
	buf     []byte
	stack   []frame
	name    string
	hasName bool
	done    bool
}

var _ bsonmap.Writer = (*Writer)(nil)

func NewWriter() *Writer { return &Writer{} }

// Bytes returns the encoded document once it is complete.
func (w *Writer) Bytes() ([]byte, error) {
	if !w.done {
		return nil, errors.New("bsonbin: document is not complete")
	}
	return w.buf, nil
}

// key returns the element key for the next value and advances array indexes.
func (w *Writer) key(op string) (string, error) {
	n := len(w.stack)
	if n == 0 {
		return "", errors.Newf("bsonbin: %s outside a document", op)
	}
	top := &w.stack[n-1]
	if top.array {
		k := strconv.Itoa(top.n)
		top.n++
		return k, nil
	}
	if !w.hasName {
		return "", errors.Newf("bsonbin: %s requires WriteName first", op)
	}
	k := w.name
	w.name, w.hasName = "", false
	return k, nil
}

func (w *Writer) header(op string, t bsontype.Type) error {
	k, err := w.key(op)
	if err != nil {
		return err
	}
	w.buf = bsoncore.AppendHeader(w.buf, t, k)
	return nil
}

func (w *Writer) WriteStartDocument() error {
	if len(w.stack) == 0 {
		if w.done {
			return errors.New("bsonbin: root document already written")
		}
	} else if err := w.header("WriteStartDocument", bsontype.EmbeddedDocument); err != nil {
		return err
	}
	var idx int32
	idx, w.buf = bsoncore.AppendDocumentStart(w.buf)
	w.stack = append(w.stack, frame{start: idx})
	return nil
}

func (w *Writer) end(op string, array bool) error {
	n := len(w.stack)
	if n == 0 || w.stack[n-1].array != array {
		return errors.Newf("bsonbin: %s does not match the open container", op)
	}
	if w.hasName {
		return errors.Newf("bsonbin: element %s has no value", w.name)
	}
	var err error
	if w.buf, err = bsoncore.AppendDocumentEnd(w.buf, w.stack[n-1].start); err != nil {
		return errors.Wrap(err, "bsonbin")
	}
	w.stack = w.stack[:n-1]
	if len(w.stack) == 0 {
		w.done = true
	}
	return nil
}

func (w *Writer) WriteEndDocument() error { return w.end("WriteEndDocument", false) }

func (w *Writer) WriteName(name string) error {
	n := len(w.stack)
	if n == 0 || w.stack[n-1].array {
		return errors.New("bsonbin: WriteName outside a document")
	}
	if w.hasName {
		return errors.Newf("bsonbin: element %s has no value", w.name)
	}
	w.name, w.hasName = name, true
	return nil
}

func (w *Writer) WriteStartArray() error {
	if err := w.header("WriteStartArray", bsontype.Array); err != nil {
		return err
	}
	var idx int32
	idx, w.buf = bsoncore.AppendArrayStart(w.buf)
	w.stack = append(w.stack, frame{start: idx, array: true})
	return nil
}

func (w *Writer) WriteEndArray() error { return w.end("WriteEndArray", true) }

func (w *Writer) WriteString(s string) error {
	if err := w.header("WriteString", bsontype.String); err != nil {
		return err
	}
	w.buf = bsoncore.AppendString(w.buf, s)
	return nil
}

func (w *Writer) WriteInt32(i int32) error {
	if err := w.header("WriteInt32", bsontype.Int32); err != nil {
		return err
	}
	w.buf = bsoncore.AppendInt32(w.buf, i)
	return nil
}

func (w *Writer) WriteInt64(i int64) error {
	if err := w.header("WriteInt64", bsontype.Int64); err != nil {
		return err
	}
	w.buf = bsoncore.AppendInt64(w.buf, i)
	return nil
}

func (w *Writer) WriteDouble(f float64) error {
	if err := w.header("WriteDouble", bsontype.Double); err != nil {
		return err
	}
	w.buf = bsoncore.AppendDouble(w.buf, f)
	return nil
}

func (w *Writer) WriteBoolean(b bool) error {
	if err := w.header("WriteBoolean", bsontype.Boolean); err != nil {
		return err
	}
	w.buf = bsoncore.AppendBoolean(w.buf, b)
	return nil
}

func (w *Writer) WriteDateTime(t time.Time) error {
	if err := w.header("WriteDateTime", bsontype.DateTime); err != nil {
		return err
	}
	w.buf = bsoncore.AppendDateTime(w.buf, t.UnixMilli())
	return nil
}

func (w *Writer) WriteBinary(b bsonmap.Binary) error {
	if err := w.header("WriteBinary", bsontype.Binary); err != nil {
		return err
	}
	w.buf = bsoncore.AppendBinary(w.buf, b.Subtype, b.Data)
	return nil
}

func (w *Writer) WriteObjectID(o bsonmap.ObjectID) error {
	if err := w.header("WriteObjectID", bsontype.ObjectID); err != nil {
		return err
	}
	w.buf = bsoncore.AppendObjectID(w.buf, o)
	return nil
}

func (w *Writer) WriteNull() error { return w.header("WriteNull", bsontype.Null) }

// WriteValue writes a whole tree.
func (w *Writer) WriteValue(v bsonmap.Value) error {
	switch v.Kind() {
	case bsonmap.KindDocument:
		d, _ := v.Document()
		if err := w.WriteStartDocument(); err != nil {
			return err
		}
		for _, e := range d.Elements() {
			if err := w.WriteName(e.Name); err != nil {
				return err
			}
			if err := w.WriteValue(e.Value); err != nil {
				return err
			}
		}
		return w.WriteEndDocument()
	case bsonmap.KindArray:
		items, _ := v.Array()
		if err := w.WriteStartArray(); err != nil {
			return err
		}
		for _, it := range items {
			if err := w.WriteValue(it); err != nil {
				return err
			}
		}
		return w.WriteEndArray()
	case bsonmap.KindString:
		s, _ := v.StringValue()
		return w.WriteString(s)
	case bsonmap.KindInt32:
		i, _ := v.Int32()
		return w.WriteInt32(i)
	case bsonmap.KindInt64:
		i, _ := v.Int64()
		return w.WriteInt64(i)
	case bsonmap.KindDouble:
		f, _ := v.Double()
		return w.WriteDouble(f)
	case bsonmap.KindBoolean:
		b, _ := v.Boolean()
		return w.WriteBoolean(b)
	case bsonmap.KindDateTime:
		k, err := w.key("WriteValue")
		if err != nil {
			return err
		}
		ms, _ := v.DateTimeMillis()
		w.buf = bsoncore.AppendDateTimeElement(w.buf, k, ms)
		return nil
	case bsonmap.KindBinary:
		b, _ := v.Binary()
		return w.WriteBinary(b)
	case bsonmap.KindObjectID:
		o, _ := v.ObjectID()
		return w.WriteObjectID(o)
	case bsonmap.KindNull:
		return w.WriteNull()
	}
	return errors.Newf("bsonbin: cannot write a value of kind %s", v.Kind())
}

// FromValue encodes a document value.
func FromValue(v bsonmap.Value) ([]byte, error) {
	if v.Kind() != bsonmap.KindDocument {
		return nil, errors.Newf("bsonbin: root value must be a document, got %s", v.Kind())
	}
	w := NewWriter()
	if err := w.WriteValue(v); err != nil {
		return nil, err
	}
	return w.Bytes()
}
