// Package dsl provides a type-safe builder for bsonmap class maps.
//
// Overview
//   - ClassOf[T]() starts a builder for the class *T.
//   - Member(element, accessor) maps one element; Ref selects a field by
//     address, Getter maps a computed read-only member and Property maps a
//     get/set pair.
//   - Member steps chain flags: Required, Default, ReadOnly, OmitEmpty, ID,
//     ExtraElements, Dictionary, Serializer, ShouldSerialize.
//   - Class declarations: Discriminator, DiscriminatorRequired, RootClass,
//     Extends, IgnoreExtraElements, Anonymous, Convention, New, Creator.
//   - AutoMap adds the remaining exported fields from their struct tags.
//   - WithSettings applies config.ClassSettings overrides at freeze time.
//
// Example
//
//	type Order struct {
//	    ID     bsonmap.ObjectID
//	    Status string
//	    Extra  map[string]any
//	}
//
//	cm, err := dsl.ClassOf[Order]().
//	    Member("_id", dsl.Ref(func(o *Order) *bsonmap.ObjectID { return &o.ID })).ID().
//	    Member("status", dsl.Ref(func(o *Order) *string { return &o.Status })).Required().
//	    Member("extra", dsl.Ref(func(o *Order) *map[string]any { return &o.Extra })).ExtraElements().
//	    Register(reg)
package dsl
