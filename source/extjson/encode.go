// Package extjson renders and parses MongoDB Extended JSON (v2) for value trees.
package extjson

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	j "github.com/goccy/go-json"

	"github.com/reoring/bsonmap"
)

// Mode selects between the relaxed and canonical Extended JSON forms.
type Mode int

const (
	Relaxed Mode = iota
	Canonical
)

// Marshal renders v in relaxed form.
func Marshal(v bsonmap.Value) ([]byte, error) { return MarshalMode(v, Relaxed) }

// MarshalMode renders v in the given form.
func MarshalMode(v bsonmap.Value, mode Mode) ([]byte, error) {
	e := encoder{mode: mode}
	if err := e.value(v); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf  bytes.Buffer
	mode Mode
}

func (e *encoder) str(s string) error {
	b, err := j.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "extjson: encode string")
	}
	e.buf.Write(b)
	return nil
}

// wrapper writes {"<key>": <inner>}.
func (e *encoder) wrapper(key string, inner func() error) error {
	e.buf.WriteByte('{')
	if err := e.str(key); err != nil {
		return err
	}
	e.buf.WriteByte(':')
	if err := inner(); err != nil {
		return err
	}
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) value(v bsonmap.Value) error {
	switch v.Kind() {
	case bsonmap.KindNull:
		e.buf.WriteString("null")
	case bsonmap.KindBoolean:
		b, _ := v.Boolean()
		e.buf.WriteString(strconv.FormatBool(b))
	case bsonmap.KindString:
		s, _ := v.StringValue()
		return e.str(s)
	case bsonmap.KindInt32:
		i, _ := v.Int32()
		if e.mode == Canonical {
			return e.wrapper("$numberInt", func() error { return e.str(strconv.FormatInt(int64(i), 10)) })
		}
		e.buf.WriteString(strconv.FormatInt(int64(i), 10))
	case bsonmap.KindInt64:
		i, _ := v.Int64()
		if e.mode == Canonical {
			return e.wrapper("$numberLong", func() error { return e.str(strconv.FormatInt(i, 10)) })
		}
		e.buf.WriteString(strconv.FormatInt(i, 10))
	case bsonmap.KindDouble:
		f, _ := v.Double()
		return e.double(f)
	case bsonmap.KindDateTime:
		ms, _ := v.DateTimeMillis()
		return e.wrapper("$date", func() error {
			t := time.UnixMilli(ms).UTC()
			if e.mode == Relaxed && t.Year() >= 1970 && t.Year() <= 9999 {
				return e.str(t.Format("2006-01-02T15:04:05.000Z07:00"))
			}
			return e.wrapper("$numberLong", func() error { return e.str(strconv.FormatInt(ms, 10)) })
		})
	case bsonmap.KindObjectID:
		o, _ := v.ObjectID()
		return e.wrapper("$oid", func() error { return e.str(o.Hex()) })
	case bsonmap.KindBinary:
		b, _ := v.Binary()
		return e.wrapper("$binary", func() error {
			e.buf.WriteString(`{"base64":`)
			if err := e.str(base64.StdEncoding.EncodeToString(b.Data)); err != nil {
				return err
			}
			e.buf.WriteString(`,"subType":`)
			if err := e.str(hex.EncodeToString([]byte{b.Subtype})); err != nil {
				return err
			}
			e.buf.WriteByte('}')
			return nil
		})
	case bsonmap.KindDocument:
		d, _ := v.Document()
		e.buf.WriteByte('{')
		for i, el := range d.Elements() {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.str(el.Name); err != nil {
				return err
			}
			e.buf.WriteByte(':')
			if err := e.value(el.Value); err != nil {
				return err
			}
		}
		e.buf.WriteByte('}')
	case bsonmap.KindArray:
		items, _ := v.Array()
		e.buf.WriteByte('[')
		for i, it := range items {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			if err := e.value(it); err != nil {
				return err
			}
		}
		e.buf.WriteByte(']')
	default:
		return errors.Newf("extjson: cannot render kind %s", v.Kind())
	}
	return nil
}

func (e *encoder) double(f float64) error {
	var s string
	switch {
	case math.IsInf(f, 1):
		s = "Infinity"
	case math.IsInf(f, -1):
		s = "-Infinity"
	case math.IsNaN(f):
		s = "NaN"
	}
	if s != "" || e.mode == Canonical {
		if s == "" {
			s = formatDouble(f)
		}
		return e.wrapper("$numberDouble", func() error { return e.str(s) })
	}
	e.buf.WriteString(formatDouble(f))
	return nil
}

// formatDouble keeps a decimal point on integral values so that they parse
// back as doubles.
func formatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !bytes.ContainsAny([]byte(s), ".eEn") {
		s += ".0"
	}
	return s
}
