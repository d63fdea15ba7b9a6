package convert

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sphinxkit/htk2s3/tying"
	"github.com/sphinxkit/htk2s3/types/errtypes"
)

// MdefVersion is the model definition format version understood by the decoder.
const MdefVersion = "0.3"

const (
	attribFiller = "filler"
	attribNone   = "n/a"

	// nonEmitting terminates the state id list of every row.
	nonEmitting = "N"
)

type mdefEmitter struct {
	silencePhone string
}

func (mdefEmitter) Name() string { return "mdef" }

func (e mdefEmitter) Emit(w io.Writer, res *tying.Resolution) error {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "#\n# Parameters\n#\n")
	fmt.Fprintln(bw, MdefVersion)
	fmt.Fprintf(bw, "%d n_base\n", len(res.Monophones))
	fmt.Fprintf(bw, "%d n_tri\n", len(res.Triphones))
	fmt.Fprintf(bw, "%d n_state_map\n", res.StateSlots)
	fmt.Fprintf(bw, "%d n_tied_state\n", len(res.States))
	fmt.Fprintf(bw, "%d n_tied_ci_state\n", len(res.CIStates))
	fmt.Fprintf(bw, "%d n_tied_tmat\n", len(res.Tmats))

	fmt.Fprint(bw, "#\n# Columns definitions\n#\n")
	fmt.Fprint(bw, "# base lft rt p attrib tmat ... state id's ...\n")

	// every phone in an mdef has the same number of emitting states
	width := -1
	for _, row := range res.Rows {
		if width < 0 {
			width = len(row.Hmm.States)
		}

		if len(row.Hmm.States) != width {
			return errtypes.Mismatch(errtypes.Consistency, 0, "emitting states of "+row.Logical+" in mdef", width, len(row.Hmm.States))
		}

		position := "-"
		if row.Phone.Class == tying.Triphone {
			position = "i"
		}

		attrib := attribNone
		if strings.EqualFold(row.Phone.Base, e.silencePhone) {
			attrib = attribFiller
		}

		fields := []string{row.Phone.Base, row.Phone.Left, row.Phone.Right, position, attrib, strconv.Itoa(res.TmatID(row.Hmm.Tmat))}
		for _, s := range row.Hmm.States {
			fields = append(fields, strconv.Itoa(res.StateID(s.State)))
		}
		fields = append(fields, nonEmitting)

		fmt.Fprintln(bw, strings.Join(fields, "\t"))
	}

	return bw.Flush()
}
