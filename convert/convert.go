package convert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sphinxkit/htk2s3/htk"
	"github.com/sphinxkit/htk2s3/tying"
)

// DefaultSilencePhone is the base phone marked as a filler in the model definition.
const DefaultSilencePhone = "sil"

// Emitter writes one Sphinx-3 model file from a resolved model set.
type Emitter interface {
	// Name is the file name appended to the output prefix.
	Name() string
	// Emit writes the file to w. It fails if the number of elements written
	// differs from the number declared in the file's header.
	Emit(w io.Writer, res *tying.Resolution) error
}

// Emitters returns the writers for every output file.
func Emitters(silencePhone string) []Emitter {
	return []Emitter{
		mdefEmitter{silencePhone: silencePhone},
		gaudenEmitter{name: "means", vector: func(m *htk.Mixture) []float32 { return m.Mean.Vector }},
		gaudenEmitter{name: "variances", vector: func(m *htk.Mixture) []float32 { return m.Variance.Vector }},
		mixwEmitter{},
		tmatEmitter{},
	}
}

type Options struct {
	HmmDefs  string
	TiedList string
	// Prefix is prepended to each output file name. It may name a directory
	// ("out/") or a file stem ("out/model.").
	Prefix string

	SilencePhone string
	// Sequential writes the output files one after another instead of concurrently.
	Sequential bool

	// Progress, if set, is called when a conversion phase starts.
	Progress func(phase string)
}

// Model is a parsed and resolved model set.
type Model struct {
	Registry   *tying.Registry
	Relation   tying.Relation
	Resolution *tying.Resolution
}

type Output struct {
	Path string
	Size int64
}

type Summary struct {
	RunID string

	Hmms       int
	Monophones int
	Triphones  int
	States     int
	CIStates   int
	Tmats      int

	Outputs []Output
}

// Load parses model definitions and a tied list and resolves the model tying.
func Load(hmmdefs, tiedlist io.Reader) (*Model, error) {
	hmms, err := htk.Parse(hmmdefs)
	if err != nil {
		return nil, fmt.Errorf("model definitions: %w", err)
	}

	reg, err := tying.NewRegistry(hmms)
	if err != nil {
		return nil, err
	}

	rel, err := tying.ParseTiedList(tiedlist, reg)
	if err != nil {
		return nil, fmt.Errorf("tied list: %w", err)
	}

	res, err := tying.Resolve(reg, rel)
	if err != nil {
		return nil, err
	}

	return &Model{Registry: reg, Relation: rel, Resolution: res}, nil
}

// Convert reads the HTK model definitions and tied list named in opts and
// writes the Sphinx-3 model files. Output files written before a failure
// are left in place.
func Convert(ctx context.Context, opts Options) (*Summary, error) {
	progress := opts.Progress
	if progress == nil {
		progress = func(string) {}
	}

	if opts.SilencePhone == "" {
		opts.SilencePhone = DefaultSilencePhone
	}

	runID := uuid.NewString()
	log := slog.With("run", runID)

	progress("loading HTK model definitions")
	log.Info("loading HTK model definitions", "hmmdefs", opts.HmmDefs, "tiedlist", opts.TiedList)

	hmmdefs, err := os.Open(opts.HmmDefs)
	if err != nil {
		return nil, err
	}
	defer hmmdefs.Close()

	tiedlist, err := os.Open(opts.TiedList)
	if err != nil {
		return nil, err
	}
	defer tiedlist.Close()

	m, err := Load(hmmdefs, tiedlist)
	if err != nil {
		return nil, err
	}

	res := m.Resolution
	log.Info("HTK models loaded", "hmms", len(m.Registry.Hmms), "monophones", len(m.Registry.Monophones), "triphones", len(m.Registry.Triphones))

	progress("writing Sphinx-3 model files")
	outputs, err := Write(ctx, res, opts.Prefix, Emitters(opts.SilencePhone), opts.Sequential)
	if err != nil {
		return nil, err
	}

	for _, o := range outputs {
		log.Info("wrote model file", "path", o.Path, "size", o.Size)
	}

	return &Summary{
		RunID:      runID,
		Hmms:       len(m.Registry.Hmms),
		Monophones: len(res.Monophones),
		Triphones:  len(res.Triphones),
		States:     len(res.States),
		CIStates:   len(res.CIStates),
		Tmats:      len(res.Tmats),
		Outputs:    outputs,
	}, nil
}

// Write runs each emitter into prefix+Name(). Emitters only read res, so
// they run concurrently unless sequential is set.
func Write(ctx context.Context, res *tying.Resolution, prefix string, emitters []Emitter, sequential bool) ([]Output, error) {
	outputs := make([]Output, len(emitters))
	write := func(ctx context.Context, i int, e Emitter) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		path := prefix + e.Name()
		slog.Debug("writing model file", "path", path)
		size, err := writeFile(path, func(w io.Writer) error {
			return e.Emit(w, res)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		outputs[i] = Output{Path: path, Size: size}
		return nil
	}

	if sequential {
		for i, e := range emitters {
			if err := write(ctx, i, e); err != nil {
				return nil, err
			}
		}

		return outputs, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for i, e := range emitters {
		g.Go(func() error {
			return write(ctx, i, e)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return outputs, nil
}

func writeFile(path string, fn func(io.Writer) error) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := fn(f); err != nil {
		return 0, err
	}

	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}

	return fi.Size(), f.Close()
}
