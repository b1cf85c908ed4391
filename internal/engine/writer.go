package engine

import "time"

// Writer is the push sink symmetric to Reader. Inside a document every value
// must be preceded by WriteName.
type Writer interface {
	WriteStartDocument() error
	WriteEndDocument() error
	WriteName(name string) error
	WriteStartArray() error
	WriteEndArray() error
	WriteString(s string) error
	WriteInt32(i int32) error
	WriteInt64(i int64) error
	WriteDouble(f float64) error
	WriteBoolean(b bool) error
	WriteDateTime(t time.Time) error
	WriteBinary(b Binary) error
	WriteObjectID(o ObjectID) error
	WriteNull() error
	WriteValue(v Value) error
}

type writeFrame struct {
	kind    Kind
	doc     *Document
	arr     []Value
	name    string
	hasName bool
}

// TreeWriter builds an in-memory Value.
type TreeWriter struct {
	stack []writeFrame
	root  Value
	done  bool
}

func NewTreeWriter() *TreeWriter { return &TreeWriter{} }

// Value returns the completed root value.
func (w *TreeWriter) Value() (Value, error) {
	if !w.done || len(w.stack) > 0 {
		return Value{}, &StateError{Op: "Value", Detail: "no complete value was written"}
	}
	return w.root, nil
}

// Document returns the completed root value when it is a document.
func (w *TreeWriter) Document() (*Document, error) {
	v, err := w.Value()
	if err != nil {
		return nil, err
	}
	d, ok := v.Document()
	if !ok {
		return nil, &KindError{Op: "Document", Expected: KindDocument, Got: v.Kind()}
	}
	return d, nil
}

func (w *TreeWriter) emit(op string, v Value) error {
	n := len(w.stack)
	if n == 0 {
		if w.done {
			return &StateError{Op: op, Detail: "root value already written"}
		}
		w.root, w.done = v, true
		return nil
	}
	top := &w.stack[n-1]
	if top.kind == KindDocument {
		if !top.hasName {
			return &StateError{Op: op, Detail: "WriteName must precede a document element"}
		}
		top.doc.Append(top.name, v)
		top.name, top.hasName = "", false
		return nil
	}
	top.arr = append(top.arr, v)
	return nil
}

func (w *TreeWriter) ready(op string) error {
	n := len(w.stack)
	if n == 0 && w.done {
		return &StateError{Op: op, Detail: "root value already written"}
	}
	if n > 0 && w.stack[n-1].kind == KindDocument && !w.stack[n-1].hasName {
		return &StateError{Op: op, Detail: "WriteName must precede a document element"}
	}
	return nil
}

func (w *TreeWriter) WriteStartDocument() error {
	if err := w.ready("WriteStartDocument"); err != nil {
		return err
	}
	w.stack = append(w.stack, writeFrame{kind: KindDocument, doc: NewDocument()})
	return nil
}

func (w *TreeWriter) WriteEndDocument() error {
	n := len(w.stack)
	if n == 0 || w.stack[n-1].kind != KindDocument {
		return &StateError{Op: "WriteEndDocument", Detail: "not inside a document"}
	}
	top := w.stack[n-1]
	if top.hasName {
		return &StateError{Op: "WriteEndDocument", Detail: "element " + top.name + " has no value"}
	}
	w.stack = w.stack[:n-1]
	return w.emit("WriteEndDocument", DocumentValue(top.doc))
}

func (w *TreeWriter) WriteName(name string) error {
	n := len(w.stack)
	if n == 0 || w.stack[n-1].kind != KindDocument {
		return &StateError{Op: "WriteName", Detail: "not inside a document"}
	}
	top := &w.stack[n-1]
	if top.hasName {
		return &StateError{Op: "WriteName", Detail: "element " + top.name + " has no value"}
	}
	top.name, top.hasName = name, true
	return nil
}

func (w *TreeWriter) WriteStartArray() error {
	if err := w.ready("WriteStartArray"); err != nil {
		return err
	}
	w.stack = append(w.stack, writeFrame{kind: KindArray})
	return nil
}

func (w *TreeWriter) WriteEndArray() error {
	n := len(w.stack)
	if n == 0 || w.stack[n-1].kind != KindArray {
		return &StateError{Op: "WriteEndArray", Detail: "not inside an array"}
	}
	top := w.stack[n-1]
	w.stack = w.stack[:n-1]
	return w.emit("WriteEndArray", Value{kind: KindArray, arr: top.arr})
}

func (w *TreeWriter) WriteString(s string) error      { return w.emit("WriteString", StringValue(s)) }
func (w *TreeWriter) WriteInt32(i int32) error        { return w.emit("WriteInt32", Int32Value(i)) }
func (w *TreeWriter) WriteInt64(i int64) error        { return w.emit("WriteInt64", Int64Value(i)) }
func (w *TreeWriter) WriteDouble(f float64) error     { return w.emit("WriteDouble", DoubleValue(f)) }
func (w *TreeWriter) WriteBoolean(b bool) error       { return w.emit("WriteBoolean", BooleanValue(b)) }
func (w *TreeWriter) WriteDateTime(t time.Time) error { return w.emit("WriteDateTime", DateTimeValue(t)) }
func (w *TreeWriter) WriteObjectID(o ObjectID) error  { return w.emit("WriteObjectID", ObjectIDValue(o)) }
func (w *TreeWriter) WriteNull() error                { return w.emit("WriteNull", NullValue()) }

func (w *TreeWriter) WriteBinary(b Binary) error {
	return w.emit("WriteBinary", BinaryValue(b.Subtype, b.Data))
}

func (w *TreeWriter) WriteValue(v Value) error { return w.emit("WriteValue", v) }
