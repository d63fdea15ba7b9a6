// Package tying classifies parsed models and resolves the HTK model tying
// list into the tied state and transition matrix universes written to the
// Sphinx-3 model files.
package tying

import (
	"regexp"

	"github.com/sphinxkit/htk2s3/htk"
	"github.com/sphinxkit/htk2s3/types/errtypes"
)

var (
	monophoneRe = regexp.MustCompile(`^[^-+]+$`)
	triphoneRe  = regexp.MustCompile(`^([^-+]+)-([^-+]+)\+([^-+]+)$`)
)

type Class int

const (
	Monophone Class = 1
	Triphone  Class = 3
)

func (c Class) String() string {
	switch c {
	case Monophone:
		return "monophone"
	case Triphone:
		return "triphone"
	default:
		return "unknown"
	}
}

// Phone is a model name split into its base phone and contexts. Left and
// Right are "-" for monophones.
type Phone struct {
	Class Class
	Base  string
	Left  string
	Right string
}

// Classify splits name into a Phone. It reports false if name is neither a
// monophone nor a left-base+right triphone.
func Classify(name string) (Phone, bool) {
	if m := triphoneRe.FindStringSubmatch(name); m != nil {
		return Phone{Class: Triphone, Base: m[2], Left: m[1], Right: m[3]}, true
	}

	if monophoneRe.MatchString(name) {
		return Phone{Class: Monophone, Base: name, Left: "-", Right: "-"}, true
	}

	return Phone{}, false
}

// Registry indexes the parsed models of a single conversion.
type Registry struct {
	Hmms       []*htk.Hmm
	Monophones []*htk.Hmm
	Triphones  []*htk.Hmm

	byName map[string]*htk.Hmm
}

// NewRegistry classifies hmms. Every model must be a monophone or a
// triphone, and every triphone's base phone must have its own monophone model.
func NewRegistry(hmms []*htk.Hmm) (*Registry, error) {
	if len(hmms) == 0 {
		return nil, errtypes.Errorf(errtypes.Structural, 0, "no models defined")
	}

	r := Registry{Hmms: hmms, byName: make(map[string]*htk.Hmm, len(hmms))}
	for _, hmm := range hmms {
		if _, ok := r.byName[hmm.Name]; ok {
			return nil, &errtypes.ConvertError{Kind: errtypes.Structural, Name: hmm.Name, Msg: "model defined twice"}
		}

		r.byName[hmm.Name] = hmm
	}

	for _, hmm := range hmms {
		phone, ok := Classify(hmm.Name)
		if !ok {
			return nil, &errtypes.ConvertError{Kind: errtypes.Classification, Name: hmm.Name, Msg: "model is neither a monophone nor a triphone"}
		}

		switch phone.Class {
		case Monophone:
			r.Monophones = append(r.Monophones, hmm)
		case Triphone:
			if _, ok := r.byName[phone.Base]; !ok {
				return nil, &errtypes.ConvertError{
					Kind: errtypes.Classification,
					Name: hmm.Name,
					Msg:  "no monophone model " + phone.Base + " for triphone",
				}
			}

			r.Triphones = append(r.Triphones, hmm)
		}
	}

	return &r, nil
}

// Lookup returns the model named name.
func (r *Registry) Lookup(name string) (*htk.Hmm, bool) {
	hmm, ok := r.byName[name]
	return hmm, ok
}
