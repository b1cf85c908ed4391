package bsonmap

import (
	"reflect"
)

// FieldNameOf returns the Go name of the top-level field of S selected by
// selector. Class maps use it as the member name.
// Example: FieldNameOf[Order](func(o *Order) *string { return &o.Status }) -> "Status".
func FieldNameOf[S any, F any](selector func(*S) *F) string {
	sf := fieldOf(selector)
	return sf.Name
}

// ElementNameOf returns the element name the selected field maps to under
// ResolveStructKey.
func ElementNameOf[S any, F any](selector func(*S) *F) string {
	k := ResolveStructKey(fieldOf(selector))
	if k.Skip {
		panic("bsonmap.ElementNameOf: selected field is disabled")
	}
	return k.Element
}

func fieldOf[S any, F any](selector func(*S) *F) reflect.StructField {
	if selector == nil {
		panic("bsonmap.FieldNameOf: selector must not be nil")
	}
	var zero S
	rv := reflect.ValueOf(&zero).Elem()
	if rv.Kind() != reflect.Struct {
		panic("bsonmap.FieldNameOf: " + rv.Type().String() + " is not a struct")
	}
	fp := reflect.ValueOf(selector(&zero)).Pointer()
	ft := reflect.TypeFor[F]()
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() || sf.Type != ft {
			continue
		}
		if rv.Field(i).Addr().Pointer() == fp {
			return sf
		}
	}
	panic("bsonmap.FieldNameOf: selector must return address of an exported top-level field")
}
