package htk

import (
	"fmt"
	"io"
	"math"
	"strings"
)

// Mean is a Gaussian mean vector.
type Mean struct {
	Vector []float32
}

// Variance is a diagonal Gaussian covariance vector.
type Variance struct {
	Vector []float32
}

// Mixture is a single Gaussian component. Mean and Variance may be shared
// with other mixtures when they were defined through a macro.
type Mixture struct {
	Mean     *Mean
	Variance *Variance
}

type WeightedMixture struct {
	Index   int
	Weight  float32
	Mixture *Mixture
}

// State is an emitting HMM state (a senone once tied). ID is the arena
// index assigned when the state was built and is the state's identity:
// two states with equal mixtures but different IDs are distinct.
type State struct {
	ID       int
	Mixtures []WeightedMixture
}

// Tmat is a square transition matrix stored row-major. ID is its arena index.
type Tmat struct {
	ID     int
	Values []float32
}

// NumStates returns the matrix order, including the two non-emitting states.
func (t *Tmat) NumStates() int {
	return int(math.Sqrt(float64(len(t.Values))))
}

// At returns the transition probability from state i to state j.
func (t *Tmat) At(i, j int) float32 {
	return t.Values[i*t.NumStates()+j]
}

type IndexedState struct {
	Index int
	State *State
}

// Hmm is a named model. States are ordered by index and only contain the
// emitting states; the entry and exit states are implied by the Tmat.
type Hmm struct {
	Name   string
	States []IndexedState
	Tmat   *Tmat
}

// Display writes a human readable dump of the model to w.
func (h *Hmm) Display(w io.Writer) {
	fmt.Fprintf(w, "~h %q\n", h.Name)
	for _, s := range h.States {
		fmt.Fprintf(w, "  state %d (id %d)\n", s.Index, s.State.ID)
		for _, m := range s.State.Mixtures {
			fmt.Fprintf(w, "    mixture %d weight %g dim %d\n", m.Index, m.Weight, len(m.Mixture.Mean.Vector))
		}
	}

	fmt.Fprintf(w, "  tmat (id %d) %dx%d\n", h.Tmat.ID, h.Tmat.NumStates(), h.Tmat.NumStates())
	for i := range h.Tmat.NumStates() {
		row := make([]string, h.Tmat.NumStates())
		for j := range row {
			row[j] = fmt.Sprintf("%.4f", h.Tmat.At(i, j))
		}

		fmt.Fprintf(w, "    %s\n", strings.Join(row, " "))
	}
}
