package formula

import (
	"fmt"

	apperrors "staats/internal/errors"
)

// ParseError reports malformed formula syntax. Fragment is the part of the
// input starting at the offending position.
type ParseError struct {
	Input    string
	Fragment string
	Pos      int
	Msg      string
}

func newParseError(input string, pos int, msg string) *ParseError {
	rs := []rune(input)
	if pos > len(rs) {
		pos = len(rs)
	}
	frag := rs[pos:]
	if len(frag) > 24 {
		frag = append(frag[:24:24], []rune("...")...)
	}
	return &ParseError{Input: input, Fragment: string(frag), Pos: pos, Msg: msg}
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Fragment == "" {
		return fmt.Sprintf("%s at end of formula", e.Msg)
	}
	return fmt.Sprintf("%s near %q (offset %d)", e.Msg, e.Fragment, e.Pos)
}

// Kind classifies the error for issue lists
func (e *ParseError) Kind() apperrors.ErrorType { return apperrors.ErrTypeParse }

// ValidationError reports a well-formed formula that does not fit the schema:
// an unknown variable or an operator the variable's type does not allow.
type ValidationError struct {
	Var string
	Msg string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("variable %q: %s", e.Var, e.Msg)
}

// Kind classifies the error for issue lists
func (e *ValidationError) Kind() apperrors.ErrorType { return apperrors.ErrTypeValidation }
