package dsl

import (
	"slices"

	"github.com/cockroachdb/errors"
)

// Args carries the values a creator was chosen for. Missing elements
// without a default never reach a creator.
type Args struct {
	elements []string
	values   []any
}

// Arg returns the value of element converted to F, or the zero F when the
// value is null.
func Arg[F any](a Args, element string) F {
	v, _ := LookupArg[F](a, element)
	return v
}

// LookupArg is Arg with a conversion error.
func LookupArg[F any](a Args, element string) (F, error) {
	i := slices.Index(a.elements, element)
	if i < 0 {
		var zero F
		return zero, errors.Newf("dsl: creator has no parameter %q", element)
	}
	return convert[F](a.values[i])
}

// Len is the number of creator parameters.
func (a Args) Len() int { return len(a.elements) }
