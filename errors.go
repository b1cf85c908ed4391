package bsonmap

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/reoring/bsonmap/i18n"
	eng "github.com/reoring/bsonmap/internal/engine"
)

// Error codes (exported consts for IDE completion and type safety by convention)
const (
	CodeShape                  = eng.CodeShape
	CodeUnmappedField          = "unmapped_field"
	CodeMissingRequired        = "missing_required"
	CodeAmbiguousConstruction  = "ambiguous_construction"
	CodeDisallowedType         = "disallowed_type"
	CodeMemberCodec            = "member_codec"
	CodeConstructionNil        = "construction_returned_nothing"
	CodeDiscriminatorUnknown   = "discriminator_unknown"
	CodeDiscriminatorAmbiguous = "discriminator_ambiguous"
	CodeNotAssignable          = "not_assignable"
	CodeNoSerializer           = "no_serializer"
	CodeInvalidClassMap        = "invalid_class_map"
	// Cursor level codes surfaced from the enforcement wrapper.
	CodeDuplicateElement = eng.CodeDuplicateElement
	CodeMaxDepth         = eng.CodeMaxDepth
	CodeCursorState      = eng.CodeCursorState
)

// CodedError is implemented by every error produced by this package.
type CodedError interface {
	error
	Code() string
}

// AsCode returns the code of the nearest coded error in err's chain.
func AsCode(err error) (string, bool) {
	var ce CodedError
	if errors.As(err, &ce) {
		return ce.Code(), true
	}
	return "", false
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// ShapeError reports a wire value of the wrong kind or structure.
type ShapeError struct {
	Type     reflect.Type
	Expected string
	Got      Kind
	Detail   string
}

func (e *ShapeError) Code() string { return CodeShape }

func (e *ShapeError) Error() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "%s decoding %s", i18n.T(CodeShape, nil), typeName(e.Type))
	if e.Expected != "" {
		fmt.Fprintf(b, ": expected %s, got %s", e.Expected, e.Got)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

// UnmappedFieldError reports a document element with no member and no sink.
type UnmappedFieldError struct {
	Class   reflect.Type
	Element string
}

func (e *UnmappedFieldError) Code() string { return CodeUnmappedField }
func (e *UnmappedFieldError) Error() string {
	return fmt.Sprintf("%s %q in %s", i18n.T(CodeUnmappedField, nil), e.Element, typeName(e.Class))
}

// MissingRequiredFieldError reports an absent required member.
type MissingRequiredFieldError struct {
	Class   reflect.Type
	Member  string
	Element string
}

func (e *MissingRequiredFieldError) Code() string { return CodeMissingRequired }
func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("%s: element %q for member %s of %s", i18n.T(CodeMissingRequired, nil), e.Element, e.Member, typeName(e.Class))
}

// AmbiguousConstructionError reports that no creator, or more than one creator
// with the same number of consumed values, matched the decoded elements.
type AmbiguousConstructionError struct {
	Class    reflect.Type
	Elements []string
	Matching int
	Consumed int
}

func (e *AmbiguousConstructionError) Code() string { return CodeAmbiguousConstruction }
func (e *AmbiguousConstructionError) Error() string {
	if e.Matching == 0 {
		return fmt.Sprintf("%s: no creator of %s matches elements %v", i18n.T(CodeAmbiguousConstruction, nil), typeName(e.Class), e.Elements)
	}
	return fmt.Sprintf("%s: %d creators of %s consume %d elements", i18n.T(CodeAmbiguousConstruction, nil), e.Matching, typeName(e.Class), e.Consumed)
}

// DisallowedTypeError is raised when the type gate rejects a resolved type.
type DisallowedTypeError struct {
	Type          reflect.Type
	Discriminator string
}

func (e *DisallowedTypeError) Code() string { return CodeDisallowedType }
func (e *DisallowedTypeError) Error() string {
	if e.Discriminator != "" {
		return fmt.Sprintf("%s: %s (discriminator %q)", i18n.T(CodeDisallowedType, nil), typeName(e.Type), e.Discriminator)
	}
	return fmt.Sprintf("%s: %s", i18n.T(CodeDisallowedType, nil), typeName(e.Type))
}

// MemberCodecError wraps a nested failure with class and member context.
type MemberCodecError struct {
	Class   reflect.Type
	Member  string
	Element string
	Err     error
}

func (e *MemberCodecError) Code() string  { return CodeMemberCodec }
func (e *MemberCodecError) Unwrap() error { return e.Err }
func (e *MemberCodecError) Error() string {
	return fmt.Sprintf("%s %s.%s (element %q): %v", i18n.T(CodeMemberCodec, nil), typeName(e.Class), e.Member, e.Element, e.Err)
}

// ConstructionError reports a factory or creator that produced no instance.
type ConstructionError struct {
	Class   reflect.Type
	Creator bool
	Err     error
}

func (e *ConstructionError) Code() string  { return CodeConstructionNil }
func (e *ConstructionError) Unwrap() error { return e.Err }
func (e *ConstructionError) Error() string {
	via := "factory"
	if e.Creator {
		via = "creator"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %v", typeName(e.Class), via, e.Err)
	}
	return fmt.Sprintf("%s: %s %s", i18n.T(CodeConstructionNil, nil), typeName(e.Class), via)
}

// DiscriminatorError reports a discriminator that cannot be turned into a type
// assignable to the nominal type.
type DiscriminatorError struct {
	code          string
	Nominal       reflect.Type
	Discriminator Value
	Candidates    []reflect.Type
}

func (e *DiscriminatorError) Code() string { return e.code }
func (e *DiscriminatorError) Error() string {
	msg := fmt.Sprintf("%s %s for %s", i18n.T(e.code, nil), e.Discriminator, typeName(e.Nominal))
	if len(e.Candidates) > 0 {
		names := make([]string, len(e.Candidates))
		for i, c := range e.Candidates {
			names[i] = c.String()
		}
		msg += " (candidates: " + strings.Join(names, ", ") + ")"
	}
	return msg
}

// SerializerNotFoundError reports a type the registry cannot serialize.
type SerializerNotFoundError struct {
	Type reflect.Type
}

func (e *SerializerNotFoundError) Code() string { return CodeNoSerializer }
func (e *SerializerNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", i18n.T(CodeNoSerializer, nil), typeName(e.Type))
}

// ClassMapError reports an invalid class definition at freeze or registration time.
type ClassMapError struct {
	Class  reflect.Type
	Detail string
}

func (e *ClassMapError) Code() string { return CodeInvalidClassMap }
func (e *ClassMapError) Error() string {
	return fmt.Sprintf("%s %s: %s", i18n.T(CodeInvalidClassMap, nil), typeName(e.Class), e.Detail)
}

func wrapMember(cm *ClassMap, mm *MemberMap, err error) error {
	if err == nil {
		return nil
	}
	var mce *MemberCodecError
	if errors.As(err, &mce) && mce.Class == cm.Type() && mce.Member == mm.MemberName() {
		return err
	}
	return &MemberCodecError{Class: cm.Type(), Member: mm.MemberName(), Element: mm.ElementName(), Err: err}
}
