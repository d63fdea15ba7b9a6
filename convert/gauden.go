package convert

import (
	"io"

	"github.com/sphinxkit/htk2s3/fs/s3"
	"github.com/sphinxkit/htk2s3/htk"
	"github.com/sphinxkit/htk2s3/tying"
	"github.com/sphinxkit/htk2s3/types/errtypes"
)

// numStreams is the number of feature streams. HTK models converted here
// always use a single stream.
const numStreams = 1

// gaudenEmitter writes the Gaussian means or variances of every tied state:
// codebooks x streams x densities x veclen.
type gaudenEmitter struct {
	name   string
	vector func(*htk.Mixture) []float32
}

func (e gaudenEmitter) Name() string { return e.name }

func (e gaudenEmitter) Emit(w io.Writer, res *tying.Resolution) error {
	if len(res.States) == 0 || len(res.States[0].Mixtures) == 0 {
		return errtypes.Errorf(errtypes.Structural, 0, "no tied states to write")
	}

	first := res.States[0].Mixtures
	numDensities := len(first)
	vecLen := len(e.vector(first[0].Mixture))
	want := len(res.States) * numStreams * numDensities * vecLen

	enc := s3.NewEncoder(w)
	if err := enc.WriteHeader(); err != nil {
		return err
	}

	if err := enc.WriteUint32(uint32(len(res.States)), numStreams, uint32(numDensities), uint32(vecLen), uint32(want)); err != nil {
		return err
	}

	for _, s := range res.States {
		for _, m := range s.Mixtures {
			for _, f := range e.vector(m.Mixture) {
				enc.WriteFloat32(f)
			}
		}
	}

	if err := enc.Flush(); err != nil {
		return err
	}

	if got := enc.Floats(); got != want {
		return errtypes.Mismatch(errtypes.Consistency, 0, "floats written to "+e.name, want, got)
	}

	return nil
}
