package tying

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/sphinxkit/htk2s3/htk"
	"github.com/sphinxkit/htk2s3/types/errtypes"
)

// Row is one line of the model definition table: a logical phone and the
// physical model whose states and transition matrix it uses.
type Row struct {
	Phone   Phone
	Logical string
	Hmm     *htk.Hmm
}

func (r Row) compare(o Row) int {
	return cmp.Or(
		cmp.Compare(r.Phone.Class, o.Phone.Class),
		cmp.Compare(r.Phone.Base, o.Phone.Base),
		cmp.Compare(r.Phone.Left, o.Phone.Left),
		cmp.Compare(r.Phone.Right, o.Phone.Right),
	)
}

// Resolution is the tied model set. States and Tmats are indexed by their
// assigned id; the ids of monophone states come first and are contiguous.
type Resolution struct {
	Monophones Relation
	Triphones  Relation

	CIStates []*htk.State
	States   []*htk.State
	Tmats    []*htk.Tmat

	// Rows are sorted monophones first, then triphones by base, left and right context.
	Rows []Row

	// StateSlots counts every state of every logical model, including the
	// non-emitting exit state.
	StateSlots int

	stateIDs map[int]int
	tmatIDs  map[int]int
}

// StateID returns the tied state id of s.
func (r *Resolution) StateID(s *htk.State) int {
	id, ok := r.stateIDs[s.ID]
	if !ok {
		panic("tying: state not in resolution")
	}

	return id
}

// TmatID returns the tied transition matrix id of t.
func (r *Resolution) TmatID(t *htk.Tmat) int {
	id, ok := r.tmatIDs[t.ID]
	if !ok {
		panic("tying: transition matrix not in resolution")
	}

	return id
}

// Resolve splits rel into monophones and triphones and assigns ids to the
// distinct states and transition matrices of the registry's models.
// Distinct means distinct arena index: states defined separately but with
// identical contents are kept apart.
func Resolve(reg *Registry, rel Relation) (*Resolution, error) {
	res := Resolution{
		stateIDs: make(map[int]int),
		tmatIDs:  make(map[int]int),
	}

	for _, tie := range rel {
		phone, ok := Classify(tie.Logical)
		if !ok {
			return nil, &errtypes.ConvertError{Kind: errtypes.Classification, Name: tie.Logical, Msg: "tied list model is neither a monophone nor a triphone"}
		}

		hmm, ok := reg.Lookup(tie.Physical)
		if !ok {
			return nil, &errtypes.ConvertError{Kind: errtypes.Referential, Name: tie.Physical, Msg: "model " + tie.Logical + " is tied to unknown model"}
		}

		switch phone.Class {
		case Monophone:
			res.Monophones = append(res.Monophones, tie)
		case Triphone:
			res.Triphones = append(res.Triphones, tie)
		}

		res.Rows = append(res.Rows, Row{Phone: phone, Logical: tie.Logical, Hmm: hmm})
	}

	slices.SortFunc(res.Rows, Row.compare)

	res.CIStates = uniqueStates(reg.Monophones)
	for _, s := range res.CIStates {
		res.stateIDs[s.ID] = len(res.States)
		res.States = append(res.States, s)
	}

	for _, s := range uniqueStates(reg.Hmms) {
		if _, ok := res.stateIDs[s.ID]; !ok {
			res.stateIDs[s.ID] = len(res.States)
			res.States = append(res.States, s)
		}
	}

	for _, t := range uniqueTmats(reg.Hmms) {
		res.tmatIDs[t.ID] = len(res.Tmats)
		res.Tmats = append(res.Tmats, t)
	}

	res.StateSlots = len(rel) * (reg.Hmms[0].Tmat.NumStates() - 1)

	slog.Debug("resolved model tying", "monophones", len(res.Monophones), "triphones", len(res.Triphones),
		"states", len(res.States), "ci_states", len(res.CIStates), "tmats", len(res.Tmats))
	return &res, nil
}

// uniqueStates returns the states of hmms in first appearance order, each
// arena index once.
func uniqueStates(hmms []*htk.Hmm) []*htk.State {
	m := linkedhashmap.New()
	for _, hmm := range hmms {
		for _, s := range hmm.States {
			if _, ok := m.Get(s.State.ID); !ok {
				m.Put(s.State.ID, s.State)
			}
		}
	}

	states := make([]*htk.State, 0, m.Size())
	for _, v := range m.Values() {
		states = append(states, v.(*htk.State))
	}

	return states
}

func uniqueTmats(hmms []*htk.Hmm) []*htk.Tmat {
	m := linkedhashmap.New()
	for _, hmm := range hmms {
		if _, ok := m.Get(hmm.Tmat.ID); !ok {
			m.Put(hmm.Tmat.ID, hmm.Tmat)
		}
	}

	tmats := make([]*htk.Tmat, 0, m.Size())
	for _, v := range m.Values() {
		tmats = append(tmats, v.(*htk.Tmat))
	}

	return tmats
}
