package convert

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sphinxkit/htk2s3/fs/s3"
)

// Mdef is a parsed model definition file.
type Mdef struct {
	Version string

	NumBase      int
	NumTri       int
	NumStateMap  int
	NumTiedState int
	NumTiedCI    int
	NumTiedTmat  int

	Rows []MdefRow
}

type MdefRow struct {
	Base      string
	Left      string
	Right     string
	Position  string
	Attribute string
	Tmat      int
	States    []int
}

// ReadMdef parses a model definition file written by the mdef emitter.
func ReadMdef(r io.Reader) (*Mdef, error) {
	var m Mdef
	counts := map[string]*int{
		"n_base":          &m.NumBase,
		"n_tri":           &m.NumTri,
		"n_state_map":     &m.NumStateMap,
		"n_tied_state":    &m.NumTiedState,
		"n_tied_ci_state": &m.NumTiedCI,
		"n_tied_tmat":     &m.NumTiedTmat,
	}

	sc := bufio.NewScanner(r)
	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		switch {
		case m.Version == "":
			m.Version = text
		case len(fields) == 2 && counts[fields[1]] != nil:
			n, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, fmt.Errorf("mdef line %d: %w", line, err)
			}

			*counts[fields[1]] = n
		default:
			row, err := parseMdefRow(fields)
			if err != nil {
				return nil, fmt.Errorf("mdef line %d: %w", line, err)
			}

			m.Rows = append(m.Rows, row)
		}
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	return &m, nil
}

func parseMdefRow(fields []string) (MdefRow, error) {
	if len(fields) < 7 || fields[len(fields)-1] != nonEmitting {
		return MdefRow{}, fmt.Errorf("malformed row %q", strings.Join(fields, " "))
	}

	row := MdefRow{
		Base:      fields[0],
		Left:      fields[1],
		Right:     fields[2],
		Position:  fields[3],
		Attribute: fields[4],
	}

	var err error
	if row.Tmat, err = strconv.Atoi(fields[5]); err != nil {
		return MdefRow{}, err
	}

	for _, f := range fields[6 : len(fields)-1] {
		id, err := strconv.Atoi(f)
		if err != nil {
			return MdefRow{}, err
		}

		row.States = append(row.States, id)
	}

	return row, nil
}

// CountNames returns the names of the counts preceding the float array of
// the binary model file called name, or false if name is not one.
func CountNames(name string) ([]string, bool) {
	switch name {
	case "means", "variances":
		return []string{"n_codebook", "n_stream", "n_density", "veclen"}, true
	case "mixture_weights":
		return []string{"n_state", "n_stream", "n_density"}, true
	case "transition_matrices":
		return []string{"n_tmat", "n_emit_state", "n_state"}, true
	default:
		return nil, false
	}
}

// ReadBinary decodes the binary model file at path. The file kind is taken
// from the end of its name, so prefixed outputs such as "out/model.means" work.
func ReadBinary(path string) (*s3.File, []string, error) {
	base := filepath.Base(path)

	var names []string
	for _, kind := range []string{"means", "variances", "mixture_weights", "transition_matrices"} {
		if strings.HasSuffix(base, kind) {
			names, _ = CountNames(kind)
			break
		}
	}

	if names == nil {
		return nil, nil, fmt.Errorf("%s: not a Sphinx-3 parameter file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	file, err := s3.Decode(f, len(names))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	return file, names, nil
}
