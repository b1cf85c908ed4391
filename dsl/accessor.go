package dsl

import (
	"reflect"

	"github.com/cockroachdb/errors"

	"github.com/reoring/bsonmap"
)

// Accessor reads and writes one member of *T.
type Accessor[T any] struct {
	name string
	typ  reflect.Type
	get  func(*T) any
	set  func(*T, any) error
}

// Ref maps a top-level field selected by address. The member name is the Go
// field name.
//
//	dsl.Ref(func(o *Order) *string { return &o.Status })
func Ref[T, F any](sel func(*T) *F) Accessor[T] {
	return Accessor[T]{
		name: bsonmap.FieldNameOf(sel),
		typ:  reflect.TypeFor[F](),
		get:  func(t *T) any { return *sel(t) },
		set: func(t *T, v any) error {
			f, err := convert[F](v)
			if err != nil {
				return err
			}
			*sel(t) = f
			return nil
		},
	}
}

// Getter maps a computed, read-only member.
func Getter[T, F any](name string, fn func(*T) F) Accessor[T] {
	return Accessor[T]{
		name: name,
		typ:  reflect.TypeFor[F](),
		get:  func(t *T) any { return fn(t) },
	}
}

// Property maps a member through explicit get and set functions.
func Property[T, F any](name string, get func(*T) F, set func(*T, F)) Accessor[T] {
	a := Getter(name, get)
	a.set = func(t *T, v any) error {
		f, err := convert[F](v)
		if err != nil {
			return err
		}
		set(t, f)
		return nil
	}
	return a
}

func convert[F any](v any) (F, error) {
	var zero F
	if v == nil {
		return zero, nil
	}
	if f, ok := v.(F); ok {
		return f, nil
	}
	rv, err := assign(v, reflect.TypeFor[F]())
	if err != nil {
		return zero, err
	}
	return rv.Interface().(F), nil
}

// fieldAccessor maps the i-th field of T by reflection.
func fieldAccessor[T any](i int) Accessor[T] {
	sf := reflect.TypeFor[T]().Field(i)
	return Accessor[T]{
		name: sf.Name,
		typ:  sf.Type,
		get:  func(t *T) any { return reflect.ValueOf(t).Elem().Field(i).Interface() },
		set: func(t *T, v any) error {
			rv, err := assign(v, sf.Type)
			if err != nil {
				return err
			}
			reflect.ValueOf(t).Elem().Field(i).Set(rv)
			return nil
		},
	}
}

func assign(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(t):
		return rv, nil
	case rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t):
		return rv.Convert(t), nil
	}
	return reflect.Value{}, errors.Newf("dsl: cannot assign %s to %s", rv.Type(), t)
}
