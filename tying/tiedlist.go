package tying

import (
	"bufio"
	"io"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sphinxkit/htk2s3/types/errtypes"
)

// Tie maps a logical model name to the physical model it shares parameters with.
type Tie struct {
	Logical  string
	Physical string
}

// Relation is a tying relation in first appearance order. Logical names are unique.
type Relation []Tie

// ParseTiedList reads an HTK tied list. A line "A B" ties A to the existing
// model B and a line "A" ties A to itself. A name tied more than once keeps
// its last target.
func ParseTiedList(r io.Reader, reg *Registry) (Relation, error) {
	tr := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	sc := bufio.NewScanner(transform.NewReader(r, tr))

	var rel Relation
	index := make(map[string]int)
	for line := 1; sc.Scan(); line++ {
		fields := strings.Fields(sc.Text())

		var tie Tie
		switch len(fields) {
		case 0:
			continue
		case 1:
			tie = Tie{Logical: fields[0], Physical: fields[0]}
			if _, ok := reg.Lookup(tie.Physical); !ok {
				return nil, &errtypes.ConvertError{Kind: errtypes.Referential, Line: line, Name: tie.Logical, Msg: "tied list names unknown model"}
			}
		case 2:
			tie = Tie{Logical: fields[0], Physical: fields[1]}
			if _, ok := reg.Lookup(tie.Physical); !ok {
				return nil, &errtypes.ConvertError{
					Kind: errtypes.Referential,
					Line: line,
					Name: tie.Physical,
					Msg:  "model " + tie.Logical + " is tied to unknown model",
				}
			}
		default:
			return nil, errtypes.Errorf(errtypes.Syntax, line, "expected one or two fields, got %d", len(fields))
		}

		if i, ok := index[tie.Logical]; ok {
			rel[i] = tie
			continue
		}

		index[tie.Logical] = len(rel)
		rel = append(rel, tie)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	return rel, nil
}
