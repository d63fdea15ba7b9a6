package convert

import (
	"io"

	"github.com/sphinxkit/htk2s3/fs/s3"
	"github.com/sphinxkit/htk2s3/tying"
	"github.com/sphinxkit/htk2s3/types/errtypes"
)

// tmatEmitter writes the transition matrices: matrices x emitting states x
// states. The entry row, the exit row and the entry column of each HTK
// matrix are implied by the decoder and dropped.
type tmatEmitter struct{}

func (tmatEmitter) Name() string { return "transition_matrices" }

func (tmatEmitter) Emit(w io.Writer, res *tying.Resolution) error {
	if len(res.Tmats) == 0 {
		return errtypes.Errorf(errtypes.Structural, 0, "no transition matrices to write")
	}

	n := res.Tmats[0].NumStates()
	if n < 2 {
		return errtypes.Errorf(errtypes.Structural, 0, "transition matrix of order %d has no exit state", n)
	}

	want := len(res.Tmats) * (n - 2) * (n - 1)

	enc := s3.NewEncoder(w)
	if err := enc.WriteHeader(); err != nil {
		return err
	}

	if err := enc.WriteUint32(uint32(len(res.Tmats)), uint32(n-2), uint32(n-1), uint32(want)); err != nil {
		return err
	}

	for _, t := range res.Tmats {
		n := t.NumStates()
		for from := 1; from < n-1; from++ {
			for to := 1; to < n; to++ {
				enc.WriteFloat32(t.At(from, to))
			}
		}
	}

	if err := enc.Flush(); err != nil {
		return err
	}

	if got := enc.Floats(); got != want {
		return errtypes.Mismatch(errtypes.Consistency, 0, "floats written to transition_matrices", want, got)
	}

	return nil
}
