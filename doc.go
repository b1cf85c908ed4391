// Package bsonmap maps Go object graphs to and from ordered, typed BSON-style
// documents through frozen class maps.
//
// It provides:
//
//   - Class maps that name members, element names, defaults, required and
//     read-only flags, id members, extra-element capture and creators
//   - A class-map serializer that decodes in a single pass with a presence
//     bitset and encodes members in declaration order
//   - Discriminator conventions and a polymorphic dispatcher for interface
//     slots, with an allow-list gate consulted before any type is trusted
//   - Dictionary representations (document, array of arrays, array of documents)
//   - Cursor enforcement of duplicate elements and nesting depth
//
// Design policy:
//   - Keep public APIs in the root package; the value model and cursors live in
//     internal/engine and are re-exported as aliases.
//   - Place the builder DSL under dsl/, alternate member serializers under
//     codec/, wire formats under source/, and the CLI under cmd/bsonmap.
//   - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	cm := dsl.ClassOf[Order]().AutoMap().MustFreeze()
//	reg := bsonmap.NewRegistry()
//	_ = reg.RegisterClassMap(cm)
//	v, err := bsonmap.Marshal(ctx, reg, order)
//	back, err := bsonmap.Unmarshal[*Order](ctx, reg, v)
package bsonmap
