package htk

import (
	"fmt"
	"strconv"
)

// Kind is the lexical class of a Token.
type Kind uint8

const (
	KindEOF Kind = iota
	KindTag        // recognized <TAG>
	KindOtherTag   // any other <TAG>
	KindMacro      // recognized ~x
	KindOtherMacro // any other ~x
	KindFloat
	KindInt
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindEOF:
		return "end of input"
	case KindTag, KindOtherTag:
		return "tag"
	case KindMacro, KindOtherMacro:
		return "macro"
	case KindFloat:
		return "float"
	case KindInt:
		return "integer"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Tag is a structural tag of the model definition grammar.
type Tag uint8

const (
	TagNone Tag = iota
	TagBeginHMM
	TagEndHMM
	TagNumStates
	TagState
	TagNumMixes
	TagMixture
	TagMean
	TagVariance
	TagTransP
)

var tags = map[string]Tag{
	"BEGINHMM":  TagBeginHMM,
	"ENDHMM":    TagEndHMM,
	"NUMSTATES": TagNumStates,
	"STATE":     TagState,
	"NUMMIXES":  TagNumMixes,
	"MIXTURE":   TagMixture,
	"MEAN":      TagMean,
	"VARIANCE":  TagVariance,
	"TRANSP":    TagTransP,
}

// Macro is the category letter following the macro sigil.
type Macro byte

const (
	MacroOptions  Macro = 'o'
	MacroHMM      Macro = 'h'
	MacroState    Macro = 's'
	MacroTmat     Macro = 't'
	MacroMean     Macro = 'u'
	MacroVariance Macro = 'v'
)

func isMacro(c byte) bool {
	switch Macro(c) {
	case MacroOptions, MacroHMM, MacroState, MacroTmat, MacroMean, MacroVariance:
		return true
	default:
		return false
	}
}

// Token is a single lexical item. Text holds the tag name, macro letter or
// string value; Int and Float hold numeric literals.
type Token struct {
	Kind  Kind
	Tag   Tag
	Text  string
	Int   int
	Float float32
	Line  int
}

// generic reports whether t may appear in a filler run.
func (t Token) generic() bool {
	switch t.Kind {
	case KindOtherTag, KindInt, KindFloat, KindString:
		return true
	default:
		return false
	}
}

func (t Token) String() string {
	switch t.Kind {
	case KindEOF:
		return "EOF"
	case KindTag, KindOtherTag:
		return "<" + t.Text + ">"
	case KindMacro, KindOtherMacro:
		return "~" + t.Text
	case KindFloat:
		return strconv.FormatFloat(float64(t.Float), 'e', 6, 32)
	case KindInt:
		return strconv.Itoa(t.Int)
	case KindString:
		return strconv.Quote(t.Text)
	default:
		return fmt.Sprintf("token(%d)", t.Kind)
	}
}
