package convert

import (
	"io"

	"github.com/sphinxkit/htk2s3/fs/s3"
	"github.com/sphinxkit/htk2s3/tying"
	"github.com/sphinxkit/htk2s3/types/errtypes"
)

// mixwEmitter writes the mixture weights of every tied state:
// states x streams x densities.
type mixwEmitter struct{}

func (mixwEmitter) Name() string { return "mixture_weights" }

func (mixwEmitter) Emit(w io.Writer, res *tying.Resolution) error {
	if len(res.States) == 0 {
		return errtypes.Errorf(errtypes.Structural, 0, "no tied states to write")
	}

	numDensities := len(res.States[0].Mixtures)
	want := len(res.States) * numStreams * numDensities

	enc := s3.NewEncoder(w)
	if err := enc.WriteHeader(); err != nil {
		return err
	}

	if err := enc.WriteUint32(uint32(len(res.States)), numStreams, uint32(numDensities), uint32(want)); err != nil {
		return err
	}

	for _, s := range res.States {
		for _, m := range s.Mixtures {
			enc.WriteFloat32(m.Weight)
		}
	}

	if err := enc.Flush(); err != nil {
		return err
	}

	if got := enc.Floats(); got != want {
		return errtypes.Mismatch(errtypes.Consistency, 0, "floats written to mixture_weights", want, got)
	}

	return nil
}
