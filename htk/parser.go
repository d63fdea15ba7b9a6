package htk

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sphinxkit/htk2s3/logutil"
	"github.com/sphinxkit/htk2s3/types/errtypes"
)

// fillerLimit bounds the run of trailing annotations (e.g. <GCONST> value)
// skipped after a mixture or state.
const fillerLimit = 7

// macros holds the definitions seen so far in a single Parse call.
type macros struct {
	states    map[string]*State
	tmats     map[string]*Tmat
	means     map[string]*Mean
	variances map[string]*Variance
}

func newMacros() macros {
	return macros{
		states:    make(map[string]*State),
		tmats:     make(map[string]*Tmat),
		means:     make(map[string]*Mean),
		variances: make(map[string]*Variance),
	}
}

type parser struct {
	lex *Tokenizer
	tok Token

	macros macros

	// arena counters; every constructed State and Tmat gets the next value
	nextState int
	nextTmat  int

	hmms []*Hmm
}

// Parse reads HTK model definitions from r and returns the models in the
// order they are defined.
func Parse(r io.Reader) ([]*Hmm, error) {
	tr := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	bts, err := io.ReadAll(transform.NewReader(r, tr))
	if err != nil {
		return nil, err
	}

	p := parser{lex: NewTokenizer(string(bts)), macros: newMacros()}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if err := p.document(); err != nil {
		return nil, err
	}

	slog.Debug("parsed model definitions", "hmms", len(p.hmms), "states", p.nextState, "tmats", p.nextTmat,
		"state_macros", len(p.macros.states), "tmat_macros", len(p.macros.tmats))
	return p.hmms, nil
}

func (p *parser) advance() (err error) {
	p.tok, err = p.lex.Next()
	return err
}

func (p *parser) unexpected() error {
	if p.tok.Kind == KindEOF {
		return errtypes.Errorf(errtypes.Syntax, p.tok.Line, "unexpected end of input")
	}

	return errtypes.Errorf(errtypes.Syntax, p.tok.Line, "unexpected %s %s", p.tok.Kind, p.tok)
}

func (p *parser) isTag(tag Tag) bool {
	return p.tok.Kind == KindTag && p.tok.Tag == tag
}

func (p *parser) isMacro(m Macro) bool {
	return p.tok.Kind == KindMacro && Macro(p.tok.Text[0]) == m
}

func (p *parser) expectTag(tag Tag) error {
	if !p.isTag(tag) {
		return p.unexpected()
	}

	return p.advance()
}

func (p *parser) expectInt() (int, error) {
	if p.tok.Kind != KindInt {
		return 0, p.unexpected()
	}

	n := p.tok.Int
	return n, p.advance()
}

func (p *parser) expectFloat() (float32, error) {
	if p.tok.Kind != KindFloat {
		return 0, p.unexpected()
	}

	f := p.tok.Float
	return f, p.advance()
}

func (p *parser) expectString() (string, error) {
	if p.tok.Kind != KindString {
		return "", p.unexpected()
	}

	s := p.tok.Text
	return s, p.advance()
}

func (p *parser) floats() ([]float32, error) {
	var fs []float32
	for p.tok.Kind == KindFloat {
		fs = append(fs, p.tok.Float)
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	return fs, nil
}

func (p *parser) filler() error {
	for i := 0; i < fillerLimit && p.tok.generic(); i++ {
		if err := p.advance(); err != nil {
			return err
		}
	}

	return nil
}

func (p *parser) document() error {
	for p.tok.Kind != KindEOF {
		if p.tok.Kind != KindMacro {
			return p.unexpected()
		}

		line := p.tok.Line
		m := Macro(p.tok.Text[0])
		if err := p.advance(); err != nil {
			return err
		}

		if m == MacroOptions {
			for p.tok.generic() {
				if err := p.advance(); err != nil {
					return err
				}
			}

			continue
		}

		name, err := p.expectString()
		if err != nil {
			return err
		}

		logutil.Trace("macro", "kind", string(m), "name", name, "line", line)
		if err := p.define(m, name, line); err != nil {
			return err
		}
	}

	return nil
}

func (p *parser) define(m Macro, name string, line int) error {
	switch m {
	case MacroHMM:
		hmm, err := p.hmm()
		if err != nil {
			return err
		}

		hmm.Name = name
		p.hmms = append(p.hmms, hmm)
		return nil
	case MacroState:
		return defineMacro(p.macros.states, name, line, p.state)
	case MacroTmat:
		return defineMacro(p.macros.tmats, name, line, p.tmat)
	case MacroMean:
		return defineMacro(p.macros.means, name, line, p.mean)
	case MacroVariance:
		return defineMacro(p.macros.variances, name, line, p.variance)
	default:
		return errtypes.Errorf(errtypes.Syntax, line, "unexpected macro ~%c", m)
	}
}

func defineMacro[T any](table map[string]*T, name string, line int, body func() (*T, error)) error {
	if _, ok := table[name]; ok {
		return &errtypes.ConvertError{Kind: errtypes.Structural, Line: line, Name: name, Msg: "macro redefined"}
	}

	v, err := body()
	if err != nil {
		return err
	}

	table[name] = v
	return nil
}

// reference resolves a macro reference of the current category. The macro
// marker has already been consumed.
func reference[T any](p *parser, table map[string]*T) (*T, error) {
	line := p.tok.Line
	name, err := p.expectString()
	if err != nil {
		return nil, err
	}

	v, ok := table[name]
	if !ok {
		return nil, &errtypes.ConvertError{Kind: errtypes.UndefinedMacro, Line: line, Name: name, Msg: "macro not defined"}
	}

	return v, nil
}

func (p *parser) hmm() (*Hmm, error) {
	if err := p.expectTag(TagBeginHMM); err != nil {
		return nil, err
	}

	// options such as <VECSIZE> may be repeated inside a definition
	for p.tok.generic() {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	line := p.tok.Line
	if err := p.expectTag(TagNumStates); err != nil {
		return nil, err
	}

	numStates, err := p.expectInt()
	if err != nil {
		return nil, err
	}

	var hmm Hmm
	for p.isTag(TagState) {
		stateLine := p.tok.Line
		if err := p.advance(); err != nil {
			return nil, err
		}

		index, err := p.expectInt()
		if err != nil {
			return nil, err
		}

		if slices.ContainsFunc(hmm.States, func(s IndexedState) bool { return s.Index == index }) {
			return nil, errtypes.Errorf(errtypes.Structural, stateLine, "duplicate state index %d", index)
		}

		var state *State
		if p.isMacro(MacroState) {
			if err := p.advance(); err != nil {
				return nil, err
			}

			state, err = reference(p, p.macros.states)
		} else {
			state, err = p.state()
		}
		if err != nil {
			return nil, err
		}

		hmm.States = append(hmm.States, IndexedState{Index: index, State: state})
	}

	if numStates != len(hmm.States)+2 {
		return nil, errtypes.Mismatch(errtypes.Structural, line,
			fmt.Sprintf("<NUMSTATES> %d does not match %d parsed states plus 2 non-emitting states", numStates, len(hmm.States)),
			numStates, len(hmm.States)+2)
	}

	slices.SortFunc(hmm.States, func(a, b IndexedState) int { return cmp.Compare(a.Index, b.Index) })

	if p.isMacro(MacroTmat) {
		if err := p.advance(); err != nil {
			return nil, err
		}

		hmm.Tmat, err = reference(p, p.macros.tmats)
	} else {
		hmm.Tmat, err = p.tmat()
	}
	if err != nil {
		return nil, err
	}

	if err := p.expectTag(TagEndHMM); err != nil {
		return nil, err
	}

	return &hmm, nil
}

func (p *parser) state() (*State, error) {
	var mixtures []WeightedMixture
	if p.isTag(TagNumMixes) {
		line := p.tok.Line
		if err := p.advance(); err != nil {
			return nil, err
		}

		numMixes, err := p.expectInt()
		if err != nil {
			return nil, err
		}

		for p.isTag(TagMixture) {
			mixtureLine := p.tok.Line
			if err := p.advance(); err != nil {
				return nil, err
			}

			index, err := p.expectInt()
			if err != nil {
				return nil, err
			}

			if slices.ContainsFunc(mixtures, func(m WeightedMixture) bool { return m.Index == index }) {
				return nil, errtypes.Errorf(errtypes.Structural, mixtureLine, "duplicate mixture index %d", index)
			}

			weight, err := p.expectFloat()
			if err != nil {
				return nil, err
			}

			mixture, err := p.mixture()
			if err != nil {
				return nil, err
			}

			mixtures = append(mixtures, WeightedMixture{Index: index, Weight: weight, Mixture: mixture})
		}

		if numMixes != len(mixtures) {
			return nil, errtypes.Mismatch(errtypes.Structural, line, "<NUMMIXES> does not match parsed mixtures", numMixes, len(mixtures))
		}

		slices.SortFunc(mixtures, func(a, b WeightedMixture) int { return cmp.Compare(a.Index, b.Index) })
	} else {
		mixture, err := p.mixture()
		if err != nil {
			return nil, err
		}

		mixtures = []WeightedMixture{{Index: 1, Weight: 1, Mixture: mixture}}
	}

	state := &State{ID: p.nextState, Mixtures: mixtures}
	p.nextState++
	return state, nil
}

func (p *parser) mixture() (*Mixture, error) {
	var mixture Mixture
	var err error
	if p.isMacro(MacroMean) {
		if err := p.advance(); err != nil {
			return nil, err
		}

		mixture.Mean, err = reference(p, p.macros.means)
	} else {
		mixture.Mean, err = p.mean()
	}
	if err != nil {
		return nil, err
	}

	if p.isMacro(MacroVariance) {
		if err := p.advance(); err != nil {
			return nil, err
		}

		mixture.Variance, err = reference(p, p.macros.variances)
	} else {
		mixture.Variance, err = p.variance()
	}
	if err != nil {
		return nil, err
	}

	return &mixture, p.filler()
}

func (p *parser) vector(tag Tag) ([]float32, error) {
	line := p.tok.Line
	if err := p.expectTag(tag); err != nil {
		return nil, err
	}

	n, err := p.expectInt()
	if err != nil {
		return nil, err
	}

	if n < 1 {
		return nil, errtypes.Errorf(errtypes.Structural, line, "vector dimensionality %d is not positive", n)
	}

	fs, err := p.floats()
	if err != nil {
		return nil, err
	}

	if n != len(fs) {
		return nil, errtypes.Mismatch(errtypes.Structural, line, "vector size does not match declared dimensionality", n, len(fs))
	}

	return fs, nil
}

func (p *parser) mean() (*Mean, error) {
	v, err := p.vector(TagMean)
	if err != nil {
		return nil, err
	}

	return &Mean{Vector: v}, nil
}

func (p *parser) variance() (*Variance, error) {
	v, err := p.vector(TagVariance)
	if err != nil {
		return nil, err
	}

	return &Variance{Vector: v}, nil
}

func (p *parser) tmat() (*Tmat, error) {
	line := p.tok.Line
	if err := p.expectTag(TagTransP); err != nil {
		return nil, err
	}

	n, err := p.expectInt()
	if err != nil {
		return nil, err
	}

	if n < 1 {
		return nil, errtypes.Errorf(errtypes.Structural, line, "transition matrix order %d is not positive", n)
	}

	fs, err := p.floats()
	if err != nil {
		return nil, err
	}

	// bounds n before squaring it
	if n > len(fs) {
		return nil, errtypes.Errorf(errtypes.Structural, line, "transition matrix of order %d has only %d values", n, len(fs))
	}

	if n*n != len(fs) {
		return nil, errtypes.Mismatch(errtypes.Structural, line, "transition matrix is not square", n*n, len(fs))
	}

	tmat := &Tmat{ID: p.nextTmat, Values: fs}
	p.nextTmat++
	return tmat, nil
}
