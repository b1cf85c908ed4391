package bsonmap

import (
	"reflect"
	"strings"
)

// StructKey is the mapping of one struct field resolved from its tags.
type StructKey struct {
	Element   string
	OmitEmpty bool
	Required  bool
	ID        bool
	Extra     bool
	Skip      bool
}

// ResolveStructKey applies the repository-wide rule to resolve a struct
// field's element name and flags used by automapping.
// Priority: bsonmap:"name=..." > bson tag name > field name; "-" disables the field.
//
// The bsonmap tag also accepts omitempty, required, id and extra. A bson
// element name of "_id" marks the id member and ",inline" on a map or
// *Document field marks the extra-elements member.
func ResolveStructKey(sf reflect.StructField) StructKey {
	k := StructKey{Element: sf.Name}
	if bt, ok := sf.Tag.Lookup("bson"); ok {
		if bt == "-" {
			return StructKey{Skip: true}
		}
		name, opts, _ := strings.Cut(bt, ",")
		if name != "" {
			k.Element = name
		}
		for _, o := range strings.Split(opts, ",") {
			switch strings.TrimSpace(o) {
			case "omitempty":
				k.OmitEmpty = true
			case "inline":
				k.Extra = sf.Type.Kind() == reflect.Map || sf.Type == documentPtrType
			}
		}
	}
	if gt := sf.Tag.Get("bsonmap"); gt != "" {
		if gt == "-" {
			return StructKey{Skip: true}
		}
		for _, p := range strings.Split(gt, ",") {
			p = strings.TrimSpace(p)
			switch {
			case strings.HasPrefix(p, "name="):
				k.Element = strings.TrimPrefix(p, "name=")
			case p == "omitempty":
				k.OmitEmpty = true
			case p == "required":
				k.Required = true
			case p == "id":
				k.ID = true
			case p == "extra":
				k.Extra = true
			}
		}
	}
	if k.Element == "_id" {
		k.ID = true
	}
	return k
}
