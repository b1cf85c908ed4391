package engine

import (
	"strconv"
	"time"
)

// Bookmark is an opaque cursor position returned by Reader.Bookmark.
type Bookmark any

// Reader is a pull cursor over one wire value.
//
// A value is "positioned" at the root before any read, and after ReadType
// returns a kind other than KindEndOfDocument inside a container. Exactly one
// read (ReadStartDocument, a scalar read, ReadValue or SkipValue) consumes it.
type Reader interface {
	// CurrentKind reports the kind of the positioned value, or KindEndOfDocument.
	CurrentKind() Kind
	// ReadType advances to the next element of the enclosing container.
	ReadType() (Kind, error)
	// ReadName returns the name of the positioned document element.
	ReadName() (string, error)
	ReadStartDocument() error
	ReadEndDocument() error
	ReadStartArray() error
	ReadEndArray() error
	ReadString() (string, error)
	ReadInt32() (int32, error)
	ReadInt64() (int64, error)
	ReadDouble() (float64, error)
	ReadBoolean() (bool, error)
	ReadDateTime() (time.Time, error)
	ReadBinary() (Binary, error)
	ReadObjectID() (ObjectID, error)
	ReadNull() error
	// ReadValue consumes the positioned value as a whole tree.
	ReadValue() (Value, error)
	SkipValue() error
	Bookmark() Bookmark
	ReturnToBookmark(b Bookmark)
}

type readFrame struct {
	kind Kind
	doc  []Element
	arr  []Value
	idx  int
}

func (f *readFrame) size() int {
	if f.kind == KindDocument {
		return len(f.doc)
	}
	return len(f.arr)
}

// TreeReader reads from an in-memory Value.
type TreeReader struct {
	stack  []readFrame
	cur    Value
	name   string
	hasCur bool
}

type treeBookmark struct {
	stack  []readFrame
	cur    Value
	name   string
	hasCur bool
}

// NewTreeReader positions a reader on v.
func NewTreeReader(v Value) *TreeReader {
	return &TreeReader{cur: v, hasCur: true}
}

// NewDocumentReader positions a reader on the document d.
func NewDocumentReader(d *Document) *TreeReader { return NewTreeReader(DocumentValue(d)) }

func (r *TreeReader) CurrentKind() Kind {
	if !r.hasCur {
		return KindEndOfDocument
	}
	return r.cur.Kind()
}

func (r *TreeReader) ReadType() (Kind, error) {
	n := len(r.stack)
	if n == 0 {
		return 0, &StateError{Op: "ReadType", Detail: "not inside a document or array"}
	}
	if r.hasCur {
		return 0, &StateError{Op: "ReadType", Detail: "previous value was not consumed"}
	}
	top := &r.stack[n-1]
	top.idx++
	if top.idx >= top.size() {
		top.idx = top.size()
		return KindEndOfDocument, nil
	}
	if top.kind == KindDocument {
		e := top.doc[top.idx]
		r.cur, r.name = e.Value, e.Name
	} else {
		r.cur, r.name = top.arr[top.idx], strconv.Itoa(top.idx)
	}
	r.hasCur = true
	return r.cur.Kind(), nil
}

func (r *TreeReader) ReadName() (string, error) {
	n := len(r.stack)
	if n == 0 || r.stack[n-1].kind != KindDocument || !r.hasCur {
		return "", &StateError{Op: "ReadName", Detail: "no document element is positioned"}
	}
	return r.name, nil
}

func (r *TreeReader) take(op string, want Kind) (Value, error) {
	if !r.hasCur {
		return Value{}, &StateError{Op: op, Detail: "no value is positioned"}
	}
	if want != KindEndOfDocument && r.cur.Kind() != want {
		return Value{}, &KindError{Op: op, Expected: want, Got: r.cur.Kind()}
	}
	r.hasCur = false
	return r.cur, nil
}

func (r *TreeReader) ReadStartDocument() error {
	v, err := r.take("ReadStartDocument", KindDocument)
	if err != nil {
		return err
	}
	r.stack = append(r.stack, readFrame{kind: KindDocument, doc: v.doc.Elements(), idx: -1})
	return nil
}

func (r *TreeReader) ReadEndDocument() error { return r.pop("ReadEndDocument", KindDocument) }

func (r *TreeReader) ReadStartArray() error {
	v, err := r.take("ReadStartArray", KindArray)
	if err != nil {
		return err
	}
	r.stack = append(r.stack, readFrame{kind: KindArray, arr: v.arr, idx: -1})
	return nil
}

func (r *TreeReader) ReadEndArray() error { return r.pop("ReadEndArray", KindArray) }

func (r *TreeReader) pop(op string, want Kind) error {
	n := len(r.stack)
	if n == 0 || r.stack[n-1].kind != want {
		return &StateError{Op: op, Detail: "not inside a " + want.String()}
	}
	top := r.stack[n-1]
	if r.hasCur || top.idx < top.size() {
		return &StateError{Op: op, Detail: "unread elements remain"}
	}
	r.stack = r.stack[:n-1]
	return nil
}

func (r *TreeReader) ReadString() (string, error) {
	v, err := r.take("ReadString", KindString)
	return v.str, err
}

func (r *TreeReader) ReadInt32() (int32, error) {
	v, err := r.take("ReadInt32", KindInt32)
	return int32(v.num), err
}

func (r *TreeReader) ReadInt64() (int64, error) {
	v, err := r.take("ReadInt64", KindInt64)
	return v.num, err
}

func (r *TreeReader) ReadDouble() (float64, error) {
	v, err := r.take("ReadDouble", KindDouble)
	return v.dbl, err
}

func (r *TreeReader) ReadBoolean() (bool, error) {
	v, err := r.take("ReadBoolean", KindBoolean)
	return v.num != 0, err
}

func (r *TreeReader) ReadDateTime() (time.Time, error) {
	v, err := r.take("ReadDateTime", KindDateTime)
	if err != nil {
		return time.Time{}, err
	}
	t, _ := v.DateTime()
	return t, nil
}

func (r *TreeReader) ReadBinary() (Binary, error) {
	v, err := r.take("ReadBinary", KindBinary)
	return v.bin, err
}

func (r *TreeReader) ReadObjectID() (ObjectID, error) {
	v, err := r.take("ReadObjectID", KindObjectID)
	return v.oid, err
}

func (r *TreeReader) ReadNull() error {
	_, err := r.take("ReadNull", KindNull)
	return err
}

func (r *TreeReader) ReadValue() (Value, error) { return r.take("ReadValue", KindEndOfDocument) }

func (r *TreeReader) SkipValue() error {
	_, err := r.take("SkipValue", KindEndOfDocument)
	return err
}

func (r *TreeReader) Bookmark() Bookmark {
	return treeBookmark{stack: append([]readFrame(nil), r.stack...), cur: r.cur, name: r.name, hasCur: r.hasCur}
}

func (r *TreeReader) ReturnToBookmark(b Bookmark) {
	bm, ok := b.(treeBookmark)
	if !ok {
		return
	}
	r.stack = append(r.stack[:0], bm.stack...)
	r.cur, r.name, r.hasCur = bm.cur, bm.name, bm.hasCur
}
