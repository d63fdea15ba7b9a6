// Package errtypes contains custom error types
package errtypes

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a fatal conversion fault.
type Kind int

const (
	// Lexical is an unrecognized character in the model definitions.
	Lexical Kind = iota
	// Syntax is an unexpected token.
	Syntax
	// Structural is a declared count that disagrees with what was parsed.
	Structural
	// UndefinedMacro is a macro referenced before it was defined.
	UndefinedMacro
	// Classification is a model name that is neither a monophone nor a triphone,
	// or a triphone without its base monophone.
	Classification
	// Referential is a tiedlist entry naming a model that was never parsed.
	Referential
	// Consistency is an emitter writing a different number of elements than it declared.
	Consistency
)

func (k Kind) String() string {
	switch k {
	case Lexical:
		return "lexical error"
	case Syntax:
		return "syntax error"
	case Structural:
		return "structural error"
	case UndefinedMacro:
		return "undefined macro"
	case Classification:
		return "classification error"
	case Referential:
		return "referential error"
	case Consistency:
		return "consistency error"
	default:
		return "unknown error"
	}
}

// ConvertError is returned for every fault detected while converting a model.
// Line is 1-based and zero when the fault has no source position.
// Want and Got are only meaningful for count mismatches.
type ConvertError struct {
	Kind Kind
	Line int
	Name string
	Want int
	Got  int
	Msg  string
}

func (e *ConvertError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Line > 0 {
		fmt.Fprintf(&sb, " at line %d", e.Line)
	}

	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Name != "" {
		fmt.Fprintf(&sb, " %q", e.Name)
	}

	if e.Want != 0 || e.Got != 0 {
		fmt.Fprintf(&sb, " (want %d, got %d)", e.Want, e.Got)
	}

	return sb.String()
}

// Errorf builds a ConvertError of the given kind with a formatted message.
func Errorf(kind Kind, line int, format string, args ...any) *ConvertError {
	return &ConvertError{Kind: kind, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Mismatch builds a ConvertError reporting a declared count against an actual one.
func Mismatch(kind Kind, line int, what string, want, got int) *ConvertError {
	return &ConvertError{Kind: kind, Line: line, Msg: what, Want: want, Got: got}
}

// IsKind reports whether err wraps a ConvertError of the given kind.
func IsKind(err error, kind Kind) bool {
	var cerr *ConvertError
	return errors.As(err, &cerr) && cerr.Kind == kind
}
