package convert

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/golden"

	"github.com/sphinxkit/htk2s3/fs/s3"
	"github.com/sphinxkit/htk2s3/htk"
	"github.com/sphinxkit/htk2s3/tying"
	"github.com/sphinxkit/htk2s3/types/errtypes"
)

func convertTestdata(t *testing.T, sequential bool) (string, *Summary) {
	t.Helper()
	dir := t.TempDir()

	var phases []string
	summary, err := Convert(context.Background(), Options{
		HmmDefs:    filepath.Join("testdata", "hmmdefs"),
		TiedList:   filepath.Join("testdata", "tiedlist"),
		Prefix:     dir + string(os.PathSeparator),
		Sequential: sequential,
		Progress:   func(phase string) { phases = append(phases, phase) },
	})
	require.NoError(t, err)
	assert.Len(t, phases, 2)
	return dir, summary
}

func TestConvert(t *testing.T) {
	dir, summary := convertTestdata(t, false)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 4, summary.Hmms)
	assert.Equal(t, 3, summary.Monophones)
	assert.Equal(t, 3, summary.Triphones)
	assert.Equal(t, 10, summary.States)
	assert.Equal(t, 9, summary.CIStates)
	assert.Equal(t, 1, summary.Tmats)

	var names []string
	for _, o := range summary.Outputs {
		names = append(names, filepath.Base(o.Path))

		fi, err := os.Stat(o.Path)
		require.NoError(t, err)
		assert.Equal(t, fi.Size(), o.Size, o.Path)
	}
	assert.Equal(t, []string{"mdef", "means", "variances", "mixture_weights", "transition_matrices"}, names)

	mdef, err := os.ReadFile(filepath.Join(dir, "mdef"))
	require.NoError(t, err)
	golden.Assert(t, string(mdef), "mdef.golden")

	var means, variances []float32
	for v := range 10 {
		for range 3 {
			means = append(means, float32(v+1))
			variances = append(variances, float32(v+1)+0.5)
		}
	}

	cases := []struct {
		name   string
		counts []uint32
		data   []float32
	}{
		{"means", []uint32{10, 1, 1, 3}, means},
		{"variances", []uint32{10, 1, 1, 3}, variances},
		{"mixture_weights", []uint32{10, 1, 1}, []float32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1}},
		{"transition_matrices", []uint32{1, 3, 4}, []float32{
			0.5, 0.5, 0, 0,
			0, 0.75, 0.25, 0,
			0, 0, 0.875, 0.125,
		}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			f, names, err := ReadBinary(filepath.Join(dir, tt.name))
			require.NoError(t, err)
			assert.Len(t, names, len(tt.counts))
			assert.Equal(t, tt.counts, f.Counts)

			if diff := cmp.Diff(tt.data, f.Data); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConvertSequential(t *testing.T) {
	concurrent, _ := convertTestdata(t, false)
	sequential, _ := convertTestdata(t, true)

	for _, name := range []string{"mdef", "means", "variances", "mixture_weights", "transition_matrices"} {
		a, err := os.ReadFile(filepath.Join(concurrent, name))
		require.NoError(t, err)

		b, err := os.ReadFile(filepath.Join(sequential, name))
		require.NoError(t, err)

		assert.True(t, bytes.Equal(a, b), name)
	}
}

const minimal = `~h "a"
<BEGINHMM>
<NUMSTATES> 3
<STATE> 2
<MEAN> 1
 1.000000e+00
<VARIANCE> 1
 1.000000e+00
<TRANSP> 2
 0.000000e+00 1.000000e+00
 0.000000e+00 0.000000e+00
<ENDHMM>
`

func TestMinimalRoundTrip(t *testing.T) {
	m, err := Load(strings.NewReader(minimal), strings.NewReader("a\n"))
	require.NoError(t, err)

	prefix := filepath.Join(t.TempDir(), "model.")
	outputs, err := Write(context.Background(), m.Resolution, prefix, Emitters(DefaultSilencePhone), false)
	require.NoError(t, err)
	require.Len(t, outputs, 5)
	assert.Equal(t, prefix+"mdef", outputs[0].Path)

	f, err := os.Open(prefix + "mdef")
	require.NoError(t, err)
	defer f.Close()

	mdef, err := ReadMdef(f)
	require.NoError(t, err)

	assert.Equal(t, MdefVersion, mdef.Version)
	assert.Equal(t, 1, mdef.NumBase)
	assert.Equal(t, 0, mdef.NumTri)
	assert.Equal(t, 1, mdef.NumStateMap)
	assert.Equal(t, 1, mdef.NumTiedState)
	assert.Equal(t, 1, mdef.NumTiedCI)
	assert.Equal(t, 1, mdef.NumTiedTmat)
	assert.Equal(t, []MdefRow{{Base: "a", Left: "-", Right: "-", Position: "-", Attribute: "n/a", Tmat: 0, States: []int{0}}}, mdef.Rows)

	tmat, _, err := ReadBinary(prefix + "transition_matrices")
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 0, 1}, tmat.Counts)
	assert.Empty(t, tmat.Data)

	mixw, _, err := ReadBinary(prefix + "mixture_weights")
	require.NoError(t, err)
	assert.Equal(t, []float32{1}, mixw.Data)
}

// uniform builds a monophone whose states each have mixtures Gaussians of
// dimension dim.
func uniform(t *testing.T, name string, tmat []float32, dim int, mixtures ...int) *tying.Resolution {
	t.Helper()

	hmm := htk.Hmm{Name: name, Tmat: &htk.Tmat{Values: tmat}}
	var v float32
	for i, n := range mixtures {
		state := htk.State{ID: i}
		for j := range n {
			mean := make([]float32, dim)
			for k := range mean {
				mean[k] = v
				v++
			}

			state.Mixtures = append(state.Mixtures, htk.WeightedMixture{
				Index:  j + 1,
				Weight: 1 / float32(n),
				Mixture: &htk.Mixture{
					Mean:     &htk.Mean{Vector: mean},
					Variance: &htk.Variance{Vector: make([]float32, dim)},
				},
			})
		}

		hmm.States = append(hmm.States, htk.IndexedState{Index: i + 2, State: &state})
	}

	reg, err := tying.NewRegistry([]*htk.Hmm{&hmm})
	require.NoError(t, err)

	res, err := tying.Resolve(reg, tying.Relation{{Logical: name, Physical: name}})
	require.NoError(t, err)
	return res
}

func TestGaudenLayout(t *testing.T) {
	res := uniform(t, "a", make([]float32, 16), 3, 4, 4)

	var b bytes.Buffer
	e := gaudenEmitter{name: "means", vector: func(m *htk.Mixture) []float32 { return m.Mean.Vector }}
	require.NoError(t, e.Emit(&b, res))

	assert.Equal(t, s3.HeaderSize()+4*5+2*4*3*4, int64(b.Len()))

	f, err := s3.Decode(&b, 4)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 1, 4, 3}, f.Counts)
	require.Len(t, f.Data, 24)

	// state-major, then mixture, then dimension
	for i, v := range f.Data {
		assert.Equal(t, float32(i), v)
	}
}

func TestMixwLayout(t *testing.T) {
	res := uniform(t, "a", make([]float32, 16), 2, 4, 4)

	var b bytes.Buffer
	require.NoError(t, mixwEmitter{}.Emit(&b, res))

	f, err := s3.Decode(&b, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint32{2, 1, 4}, f.Counts)
	assert.Equal(t, []float32{0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25}, f.Data)
}

func TestTmatLayout(t *testing.T) {
	res := uniform(t, "a", []float32{0, 1, 2, 3, 4, 5, 6, 7, 8}, 1, 1)

	var b bytes.Buffer
	require.NoError(t, tmatEmitter{}.Emit(&b, res))

	f, err := s3.Decode(&b, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 1, 2}, f.Counts)
	// only a11 and a12 survive
	assert.Equal(t, []float32{4, 5}, f.Data)
}

func TestEmitConsistency(t *testing.T) {
	res := uniform(t, "a", make([]float32, 16), 3, 2, 1)

	cases := []struct {
		emitter Emitter
		want    int
		got     int
	}{
		{gaudenEmitter{name: "means", vector: func(m *htk.Mixture) []float32 { return m.Mean.Vector }}, 12, 9},
		{gaudenEmitter{name: "variances", vector: func(m *htk.Mixture) []float32 { return m.Variance.Vector }}, 12, 9},
		{mixwEmitter{}, 4, 3},
	}

	for _, tt := range cases {
		t.Run(tt.emitter.Name(), func(t *testing.T) {
			err := tt.emitter.Emit(io.Discard, res)

			var cerr *errtypes.ConvertError
			require.True(t, errors.As(err, &cerr), "got %v", err)
			assert.Equal(t, errtypes.Consistency, cerr.Kind)
			assert.Equal(t, tt.want, cerr.Want)
			assert.Equal(t, tt.got, cerr.Got)
		})
	}
}

func TestMdefFiller(t *testing.T) {
	res := uniform(t, "SIL", make([]float32, 9), 1, 1)

	for _, tt := range []struct {
		silence string
		attrib  string
	}{
		{"sil", "filler"},
		{"SIL", "filler"},
		{"sp", "n/a"},
	} {
		var b bytes.Buffer
		require.NoError(t, mdefEmitter{silencePhone: tt.silence}.Emit(&b, res))

		m, err := ReadMdef(&b)
		require.NoError(t, err)
		require.Len(t, m.Rows, 1)
		assert.Equal(t, tt.attrib, m.Rows[0].Attribute, tt.silence)
	}
}

func TestMdefStateWidth(t *testing.T) {
	state := func(id int) htk.IndexedState {
		return htk.IndexedState{Index: id + 2, State: &htk.State{ID: id, Mixtures: []htk.WeightedMixture{{
			Index:   1,
			Weight:  1,
			Mixture: &htk.Mixture{Mean: &htk.Mean{Vector: []float32{0}}, Variance: &htk.Variance{Vector: []float32{1}}},
		}}}}
	}

	tmat := &htk.Tmat{Values: make([]float32, 16)}
	reg, err := tying.NewRegistry([]*htk.Hmm{
		{Name: "a", Tmat: tmat, States: []htk.IndexedState{state(0), state(1)}},
		{Name: "b", Tmat: tmat, States: []htk.IndexedState{state(2)}},
	})
	require.NoError(t, err)

	res, err := tying.Resolve(reg, tying.Relation{{Logical: "a", Physical: "a"}, {Logical: "b", Physical: "b"}})
	require.NoError(t, err)

	err = mdefEmitter{silencePhone: DefaultSilencePhone}.Emit(io.Discard, res)

	var cerr *errtypes.ConvertError
	require.True(t, errors.As(err, &cerr), "got %v", err)
	assert.Equal(t, errtypes.Consistency, cerr.Kind)
	assert.Equal(t, 2, cerr.Want)
	assert.Equal(t, 1, cerr.Got)
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
		return path
	}

	hmmdefs := write("hmmdefs", minimal)

	cases := []struct {
		name     string
		hmmdefs  string
		tiedlist string
		kind     errtypes.Kind
	}{
		{"unknown tied model", hmmdefs, write("bad-tiedlist", "a\nb-a+c zz\n"), errtypes.Referential},
		{"bad logical name", hmmdefs, write("bad-name", "a\na+b a\n"), errtypes.Classification},
		{"orphan triphone", write("orphan", strings.Replace(minimal, `"a"`, `"b-a+c"`, 1)), write("tiedlist", "a\n"), errtypes.Classification},
		{"lexical", write("lexical", minimal+"@"), write("tiedlist", "a\n"), errtypes.Lexical},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(context.Background(), Options{
				HmmDefs:  tt.hmmdefs,
				TiedList: tt.tiedlist,
				Prefix:   filepath.Join(dir, tt.name) + ".",
			})
			assert.True(t, errtypes.IsKind(err, tt.kind), "got %v", err)
			assert.NoFileExists(t, filepath.Join(dir, tt.name)+".mdef")
		})
	}

	_, err := Convert(context.Background(), Options{HmmDefs: filepath.Join(dir, "missing"), TiedList: hmmdefs})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteCanceled(t *testing.T) {
	m, err := Load(strings.NewReader(minimal), strings.NewReader("a\n"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	prefix := filepath.Join(t.TempDir(), "model.")
	_, err = Write(ctx, m.Resolution, prefix, Emitters(DefaultSilencePhone), true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, prefix+"mdef")
}

func TestCountNames(t *testing.T) {
	names, ok := CountNames("means")
	assert.True(t, ok)
	assert.Equal(t, []string{"n_codebook", "n_stream", "n_density", "veclen"}, names)

	_, ok = CountNames("mdef")
	assert.False(t, ok)

	_, _, err := ReadBinary(filepath.Join(t.TempDir(), "model.mdef"))
	assert.Error(t, err)
}
