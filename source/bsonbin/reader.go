package bsonbin

import (
	"time"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/x/bsonx/bsoncore"

	"github.com/reoring/bsonmap"
)

// ToValue validates b and converts it to a document value. BSON types with
// no counterpart in the value model are rejected.
func ToValue(b []byte) (bsonmap.Value, error) {
	doc := bsoncore.Document(b)
	if err := doc.Validate(); err != nil {
		return bsonmap.Value{}, errors.Wrap(err, "bsonbin: invalid document")
	}
	d, err := convertDocument(doc, "")
	if err != nil {
		return bsonmap.Value{}, err
	}
	return bsonmap.DocumentValue(d), nil
}

// NewReader returns a cursor positioned on the document in b.
func NewReader(b []byte) (bsonmap.Reader, error) {
	v, err := ToValue(b)
	if err != nil {
		return nil, err
	}
	return bsonmap.NewTreeReader(v), nil
}

func convertDocument(doc bsoncore.Document, path string) (*bsonmap.Document, error) {
	elems, err := doc.Elements()
	if err != nil {
		return nil, errors.Wrapf(err, "bsonbin: %s", orRoot(path))
	}
	out := bsonmap.NewDocument()
	for _, e := range elems {
		v, err := convertValue(e.Value(), path+"/"+e.Key())
		if err != nil {
			return nil, err
		}
		out.Append(e.Key(), v)
	}
	return out, nil
}

func convertValue(v bsoncore.Value, path string) (bsonmap.Value, error) {
	switch v.Type {
	case bsontype.Double:
		return bsonmap.DoubleValue(v.Double()), nil
	case bsontype.String:
		return bsonmap.StringValue(v.StringValue()), nil
	case bsontype.EmbeddedDocument:
		d, err := convertDocument(v.Document(), path)
		if err != nil {
			return bsonmap.Value{}, err
		}
		return bsonmap.DocumentValue(d), nil
	case bsontype.Array:
		vals, err := v.Array().Values()
		if err != nil {
			return bsonmap.Value{}, errors.Wrapf(err, "bsonbin: %s", path)
		}
		items := make([]bsonmap.Value, len(vals))
		for i, it := range vals {
			if items[i], err = convertValue(it, path+"/"+itoa(i)); err != nil {
				return bsonmap.Value{}, err
			}
		}
		return bsonmap.ArrayValue(items...), nil
	case bsontype.Binary:
		sub, data := v.Binary()
		return bsonmap.BinaryValue(sub, append([]byte(nil), data...)), nil
	case bsontype.ObjectID:
		return bsonmap.ObjectIDValue(v.ObjectID()), nil
	case bsontype.Boolean:
		return bsonmap.BooleanValue(v.Boolean()), nil
	case bsontype.DateTime:
		return bsonmap.DateTimeValue(time.UnixMilli(v.DateTime())), nil
	case bsontype.Null:
		return bsonmap.NullValue(), nil
	case bsontype.Int32:
		return bsonmap.Int32Value(v.Int32()), nil
	case bsontype.Int64:
		return bsonmap.Int64Value(v.Int64()), nil
	}
	return bsonmap.Value{}, errors.Newf("bsonbin: %s: unsupported BSON type %s", orRoot(path), v.Type)
}

func orRoot(path string) string {
	if path == "" {
		return "/"
	}
	return path
}
