package bsonmap

import (
	"time"

	eng "github.com/reoring/bsonmap/internal/engine"
)

// Value model and cursor contracts shared with the engine.
type (
	Kind     = eng.Kind
	Value    = eng.Value
	Document = eng.Document
	Element  = eng.Element
	Binary   = eng.Binary
	ObjectID = eng.ObjectID
	Reader   = eng.Reader
	Writer   = eng.Writer
	Bookmark = eng.Bookmark

	TreeReader = eng.TreeReader
	TreeWriter = eng.TreeWriter
)

const (
	KindEndOfDocument = eng.KindEndOfDocument
	KindDouble        = eng.KindDouble
	KindString        = eng.KindString
	KindDocument      = eng.KindDocument
	KindArray         = eng.KindArray
	KindBinary        = eng.KindBinary
	KindObjectID      = eng.KindObjectID
	KindBoolean       = eng.KindBoolean
	KindDateTime      = eng.KindDateTime
	KindNull          = eng.KindNull
	KindInt32         = eng.KindInt32
	KindInt64         = eng.KindInt64
)

func NewDocument(elems ...Element) *Document { return eng.NewDocument(elems...) }
func E(name string, v Value) Element         { return eng.E(name, v) }

func StringValue(s string) Value              { return eng.StringValue(s) }
func Int32Value(i int32) Value                { return eng.Int32Value(i) }
func Int64Value(i int64) Value                { return eng.Int64Value(i) }
func DoubleValue(f float64) Value             { return eng.DoubleValue(f) }
func BooleanValue(b bool) Value               { return eng.BooleanValue(b) }
func DateTimeValue(t time.Time) Value         { return eng.DateTimeValue(t) }
func BinaryValue(sub byte, data []byte) Value { return eng.BinaryValue(sub, data) }
func ObjectIDValue(o ObjectID) Value          { return eng.ObjectIDValue(o) }
func NullValue() Value                        { return eng.NullValue() }
func DocumentValue(d *Document) Value         { return eng.DocumentValue(d) }
func ArrayValue(items ...Value) Value         { return eng.ArrayValue(items...) }

// NewTreeReader positions a cursor on an in-memory value.
func NewTreeReader(v Value) *TreeReader { return eng.NewTreeReader(v) }

// NewTreeWriter returns a sink that builds an in-memory value.
func NewTreeWriter() *TreeWriter { return eng.NewTreeWriter() }
