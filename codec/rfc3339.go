package codec

import (
	"time"

	"github.com/reoring/bsonmap"
)

// TimeRFC3339 returns a serializer that stores time.Time as an RFC3339 string.
func TimeRFC3339() bsonmap.Serializer {
	return &stringCodec[time.Time]{name: "RFC3339 time", parse: parseRFC3339, format: formatRFC3339Canonical}
}

func parseRFC3339(s string) (time.Time, error) {
	// Accept RFC3339Nano (trailing zeros optional)
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return time.Time{}, err
	}
	return t, nil
}

func formatRFC3339Canonical(t time.Time) string {
	// Normalize to UTC and format using RFC3339Nano (Go trims trailing zeros)
	return t.UTC().Format(time.RFC3339Nano)
}
