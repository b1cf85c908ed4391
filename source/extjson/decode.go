package extjson

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	j "github.com/goccy/go-json"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reoring/bsonmap"
)

// Decoder reads a stream of Extended JSON values. Element order is kept.
type Decoder struct {
	dec *j.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	return &Decoder{dec: dec}
}

// Unmarshal parses a single value from b.
func Unmarshal(b []byte) (bsonmap.Value, error) {
	d := NewDecoder(bytes.NewReader(b))
	v, err := d.Decode()
	if err != nil {
		return bsonmap.Value{}, err
	}
	if d.dec.More() {
		return bsonmap.Value{}, errors.New("extjson: trailing data after value")
	}
	return v, nil
}

// Decode returns the next value, or io.EOF at the end of the stream.
func (d *Decoder) Decode() (bsonmap.Value, error) {
	tok, err := d.dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return bsonmap.Value{}, io.EOF
		}
		return bsonmap.Value{}, errors.Wrap(err, "extjson")
	}
	return d.value(tok)
}

func (d *Decoder) value(tok j.Token) (bsonmap.Value, error) {
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			return d.object()
		case '[':
			return d.array()
		}
		return bsonmap.Value{}, errors.Newf("extjson: unexpected %q", rune(v))
	case string:
		return bsonmap.StringValue(v), nil
	case bool:
		return bsonmap.BooleanValue(v), nil
	case nil:
		return bsonmap.NullValue(), nil
	case j.Number:
		return number(string(v))
	}
	return bsonmap.Value{}, errors.Newf("extjson: unexpected token %v", tok)
}

func (d *Decoder) next() (j.Token, error) {
	tok, err := d.dec.Token()
	if err != nil {
		return nil, errors.Wrap(err, "extjson")
	}
	return tok, nil
}

func (d *Decoder) object() (bsonmap.Value, error) {
	doc := bsonmap.NewDocument()
	for {
		tok, err := d.next()
		if err != nil {
			return bsonmap.Value{}, err
		}
		if delim, ok := tok.(j.Delim); ok && delim == '}' {
			break
		}
		key, ok := tok.(string)
		if !ok {
			return bsonmap.Value{}, errors.Newf("extjson: expected object key, got %v", tok)
		}
		tok, err = d.next()
		if err != nil {
			return bsonmap.Value{}, err
		}
		v, err := d.value(tok)
		if err != nil {
			return bsonmap.Value{}, errors.Wrapf(err, "%s", key)
		}
		doc.Append(key, v)
	}
	return unwrap(doc)
}

func (d *Decoder) array() (bsonmap.Value, error) {
	var items []bsonmap.Value
	for {
		tok, err := d.next()
		if err != nil {
			return bsonmap.Value{}, err
		}
		if delim, ok := tok.(j.Delim); ok && delim == ']' {
			break
		}
		v, err := d.value(tok)
		if err != nil {
			return bsonmap.Value{}, err
		}
		items = append(items, v)
	}
	return bsonmap.ArrayValue(items...), nil
}

// number maps relaxed numbers: integers to Int32 or Int64 by range, anything
// with a fraction or exponent to Double.
func number(s string) (bsonmap.Value, error) {
	if !strings.ContainsAny(s, ".eE") {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return bsonmap.Int32Value(int32(n)), nil
			}
			return bsonmap.Int64Value(n), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return bsonmap.Value{}, errors.Wrapf(err, "extjson: number %s", s)
	}
	return bsonmap.DoubleValue(f), nil
}

// unwrap recognizes the single-key type wrappers.
func unwrap(doc *bsonmap.Document) (bsonmap.Value, error) {
	plain := bsonmap.DocumentValue(doc)
	if doc.Len() != 1 {
		return plain, nil
	}
	el := doc.Elements()[0]
	if !strings.HasPrefix(el.Name, "$") {
		return plain, nil
	}
	fail := func(err error) (bsonmap.Value, error) {
		return bsonmap.Value{}, errors.Wrapf(err, "extjson: %s", el.Name)
	}
	s, isString := el.Value.StringValue()
	switch el.Name {
	case "$oid":
		if !isString {
			return fail(errors.New("expected a hex string"))
		}
		o, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			return fail(err)
		}
		return bsonmap.ObjectIDValue(o), nil
	case "$numberInt":
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil || !isString {
			return fail(errors.Newf("invalid int32 %q", s))
		}
		return bsonmap.Int32Value(int32(n)), nil
	case "$numberLong":
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || !isString {
			return fail(errors.Newf("invalid int64 %q", s))
		}
		return bsonmap.Int64Value(n), nil
	case "$numberDouble":
		if !isString {
			return fail(errors.New("expected a string"))
		}
		f, err := parseDouble(s)
		if err != nil {
			return fail(err)
		}
		return bsonmap.DoubleValue(f), nil
	case "$date":
		return date(el.Value, isString, s)
	case "$binary":
		return binary(el.Value)
	}
	return plain, nil
}

func parseDouble(s string) (float64, error) {
	switch s {
	case "Infinity":
		return math.Inf(1), nil
	case "-Infinity":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func date(v bsonmap.Value, isString bool, s string) (bsonmap.Value, error) {
	if isString {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return bsonmap.Value{}, errors.Wrap(err, "extjson: $date")
		}
		return bsonmap.DateTimeValue(t), nil
	}
	if ms, ok := v.Int64(); ok {
		return bsonmap.DateTimeValue(time.UnixMilli(ms)), nil
	}
	if ms, ok := v.Int32(); ok {
		return bsonmap.DateTimeValue(time.UnixMilli(int64(ms))), nil
	}
	return bsonmap.Value{}, errors.Newf("extjson: $date must be a string or $numberLong, got %s", v)
}

func binary(v bsonmap.Value) (bsonmap.Value, error) {
	d, ok := v.Document()
	if !ok {
		return bsonmap.Value{}, errors.New("extjson: $binary must be a document")
	}
	b64, _ := d.Lookup("base64")
	st, _ := d.Lookup("subType")
	data, ok1 := b64.StringValue()
	sub, ok2 := st.StringValue()
	if !ok1 || !ok2 || d.Len() != 2 {
		return bsonmap.Value{}, errors.New("extjson: $binary needs base64 and subType")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return bsonmap.Value{}, errors.Wrap(err, "extjson: $binary base64")
	}
	sb, err := hex.DecodeString(sub)
	if err != nil || len(sb) != 1 {
		return bsonmap.Value{}, errors.Newf("extjson: $binary subType %q", sub)
	}
	return bsonmap.BinaryValue(sb[0], raw), nil
}
