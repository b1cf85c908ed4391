package engine

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies the wire type of a value.
type Kind byte

const (
	KindEndOfDocument Kind = iota
	KindDouble
	KindString
	KindDocument
	KindArray
	KindBinary
	KindObjectID
	KindBoolean
	KindDateTime
	KindNull
	KindInt32
	KindInt64
)

var kindNames = [...]string{
	KindEndOfDocument: "end_of_document",
	KindDouble:        "double",
	KindString:        "string",
	KindDocument:      "document",
	KindArray:         "array",
	KindBinary:        "binary",
	KindObjectID:      "objectId",
	KindBoolean:       "boolean",
	KindDateTime:      "datetime",
	KindNull:          "null",
	KindInt32:         "int32",
	KindInt64:         "int64",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ObjectID is the 12-byte document identifier.
type ObjectID = primitive.ObjectID

// Binary is a subtype-tagged byte blob.
type Binary struct {
	Subtype byte
	Data    []byte
}

// Value is an immutable tagged wire value. The zero Value is null.
type Value struct {
	kind Kind
	str  string
	num  int64
	dbl  float64
	bin  Binary
	oid  ObjectID
	doc  *Document
	arr  []Value
}

func StringValue(s string) Value     { return Value{kind: KindString, str: s} }
func Int32Value(i int32) Value       { return Value{kind: KindInt32, num: int64(i)} }
func Int64Value(i int64) Value       { return Value{kind: KindInt64, num: i} }
func DoubleValue(f float64) Value    { return Value{kind: KindDouble, dbl: f} }
func ObjectIDValue(o ObjectID) Value { return Value{kind: KindObjectID, oid: o} }
func NullValue() Value               { return Value{kind: KindNull} }

func BooleanValue(b bool) Value {
	v := Value{kind: KindBoolean}
	if b {
		v.num = 1
	}
	return v
}

// DateTimeValue stores t as UTC milliseconds since the Unix epoch.
func DateTimeValue(t time.Time) Value {
	return Value{kind: KindDateTime, num: t.UnixMilli()}
}

func BinaryValue(subtype byte, data []byte) Value {
	return Value{kind: KindBinary, bin: Binary{Subtype: subtype, Data: bytes.Clone(data)}}
}

// DocumentValue wraps d; a nil document becomes an empty one.
func DocumentValue(d *Document) Value {
	if d == nil {
		d = NewDocument()
	}
	return Value{kind: KindDocument, doc: d}
}

func ArrayValue(items ...Value) Value {
	return Value{kind: KindArray, arr: append([]Value(nil), items...)}
}

// Kind reports the wire kind; the zero Value reports KindNull.
func (v Value) Kind() Kind {
	if v.kind == KindEndOfDocument {
		return KindNull
	}
	return v.kind
}

func (v Value) IsNull() bool { return v.Kind() == KindNull }

func (v Value) StringValue() (string, bool) { return v.str, v.kind == KindString }
func (v Value) Int32() (int32, bool)        { return int32(v.num), v.kind == KindInt32 }
func (v Value) Int64() (int64, bool)        { return v.num, v.kind == KindInt64 }
func (v Value) Double() (float64, bool)     { return v.dbl, v.kind == KindDouble }
func (v Value) Boolean() (bool, bool)       { return v.num != 0, v.kind == KindBoolean }
func (v Value) Binary() (Binary, bool)      { return v.bin, v.kind == KindBinary }
func (v Value) ObjectID() (ObjectID, bool)  { return v.oid, v.kind == KindObjectID }
func (v Value) Document() (*Document, bool) { return v.doc, v.kind == KindDocument }
func (v Value) Array() ([]Value, bool)      { return v.arr, v.kind == KindArray }

func (v Value) DateTime() (time.Time, bool) {
	return time.UnixMilli(v.num).UTC(), v.kind == KindDateTime
}

// DateTimeMillis returns the raw millisecond timestamp of a datetime value.
func (v Value) DateTimeMillis() (int64, bool) { return v.num, v.kind == KindDateTime }

// AsInt64 widens any integral value, including integral doubles.
func (v Value) AsInt64() (int64, bool) {
	switch v.kind {
	case KindInt32, KindInt64:
		return v.num, true
	case KindDouble:
		if v.dbl == math.Trunc(v.dbl) && v.dbl >= math.MinInt64 && v.dbl <= math.MaxInt64 {
			return int64(v.dbl), true
		}
	}
	return 0, false
}

// AsFloat64 widens any numeric value.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindInt32, KindInt64:
		return float64(v.num), true
	case KindDouble:
		return v.dbl, true
	}
	return 0, false
}

// Equal reports deep equality. Doubles compare bitwise so NaN equals NaN.
func (v Value) Equal(o Value) bool {
	if v.Kind() != o.Kind() {
		return false
	}
	switch v.Kind() {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindInt32, KindInt64, KindBoolean, KindDateTime:
		return v.num == o.num
	case KindDouble:
		return math.Float64bits(v.dbl) == math.Float64bits(o.dbl)
	case KindBinary:
		return v.bin.Subtype == o.bin.Subtype && bytes.Equal(v.bin.Data, o.bin.Data)
	case KindObjectID:
		return v.oid == o.oid
	case KindDocument:
		return v.doc.Equal(o.doc)
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders a compact, shell-like form used in messages and sort keys.
func (v Value) String() string {
	var b strings.Builder
	v.render(&b)
	return b.String()
}

func (v Value) render(b *strings.Builder) {
	switch v.Kind() {
	case KindNull:
		b.WriteString("null")
	case KindString:
		b.WriteString(strconv.Quote(v.str))
	case KindInt32:
		b.WriteString(strconv.FormatInt(v.num, 10))
	case KindInt64:
		fmt.Fprintf(b, "NumberLong(%d)", v.num)
	case KindDouble:
		b.WriteString(strconv.FormatFloat(v.dbl, 'g', -1, 64))
	case KindBoolean:
		b.WriteString(strconv.FormatBool(v.num != 0))
	case KindDateTime:
		fmt.Fprintf(b, "ISODate(%q)", time.UnixMilli(v.num).UTC().Format(time.RFC3339Nano))
	case KindBinary:
		fmt.Fprintf(b, "BinData(%d, %x)", v.bin.Subtype, v.bin.Data)
	case KindObjectID:
		fmt.Fprintf(b, "ObjectId(%q)", v.oid.Hex())
	case KindDocument:
		v.doc.render(b)
	case KindArray:
		b.WriteByte('[')
		for i, it := range v.arr {
			if i > 0 {
				b.WriteString(", ")
			}
			it.render(b)
		}
		b.WriteByte(']')
	}
}

// Element is one named field of a document.
type Element struct {
	Name  string
	Value Value
}

// E is shorthand for an Element literal.
func E(name string, v Value) Element { return Element{Name: name, Value: v} }

// Document is an ordered list of elements. Names are not required to be unique.
type Document struct {
	elems []Element
}

func NewDocument(elems ...Element) *Document {
	return &Document{elems: append([]Element(nil), elems...)}
}

func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.elems)
}

// Elements returns the elements in order. The slice must not be modified.
func (d *Document) Elements() []Element {
	if d == nil {
		return nil
	}
	return d.elems
}

// Lookup returns the first element with the given name.
func (d *Document) Lookup(name string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	for _, e := range d.elems {
		if e.Name == name {
			return e.Value, true
		}
	}
	return Value{}, false
}

// Set replaces the first element with the given name or appends a new one.
func (d *Document) Set(name string, v Value) *Document {
	for i := range d.elems {
		if d.elems[i].Name == name {
			d.elems[i].Value = v
			return d
		}
	}
	d.elems = append(d.elems, Element{Name: name, Value: v})
	return d
}

// Append adds an element without checking for an existing name.
func (d *Document) Append(name string, v Value) *Document {
	d.elems = append(d.elems, Element{Name: name, Value: v})
	return d
}

// Remove deletes the first element with the given name.
func (d *Document) Remove(name string) bool {
	for i := range d.elems {
		if d.elems[i].Name == name {
			d.elems = append(d.elems[:i], d.elems[i+1:]...)
			return true
		}
	}
	return false
}

func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return NewDocument(d.elems...)
}

func (d *Document) Equal(o *Document) bool {
	if d.Len() != o.Len() {
		return false
	}
	for i, e := range d.Elements() {
		oe := o.elems[i]
		if e.Name != oe.Name || !e.Value.Equal(oe.Value) {
			return false
		}
	}
	return true
}

func (d *Document) String() string {
	var b strings.Builder
	d.render(&b)
	return b.String()
}

func (d *Document) render(b *strings.Builder) {
	b.WriteByte('{')
	for i, e := range d.Elements() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Quote(e.Name))
		b.WriteString(": ")
		e.Value.render(b)
	}
	b.WriteByte('}')
}
