package codec

import (
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/reoring/bsonmap"
)

// Int64String stores int64 as a decimal string, for consumers that lose
// precision on 64-bit numbers.
func Int64String() bsonmap.Serializer {
	return &stringCodec[int64]{
		name:   "decimal int64",
		parse:  func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) },
		format: func(n int64) string { return strconv.FormatInt(n, 10) },
	}
}

// ObjectIDHex stores an ObjectID as its 24-character hex string.
func ObjectIDHex() bsonmap.Serializer {
	return &stringCodec[bsonmap.ObjectID]{
		name:   "ObjectID hex",
		parse:  primitive.ObjectIDFromHex,
		format: func(o bsonmap.ObjectID) string { return o.Hex() },
	}
}
