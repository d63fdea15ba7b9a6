// Package s3 reads and writes the binary container shared by the Sphinx-3
// parameter files (means, variances, mixture weights, transition matrices).
//
// A file is a text header ("s3", key value lines, "endhdr"), a 4-byte
// byte order magic, a fixed number of 4-byte counts, and a float32 array
// prefixed by its element count. Writers use the native byte order; readers
// detect the order from the magic.
package s3

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strings"
)

// Magic is written in the writer's byte order right after the text header.
const Magic uint32 = 0x11223344

const (
	headerBegin = "s3"
	headerEnd   = "endhdr"
	Version     = "1.0"
)

var (
	ErrMagic = errors.New("s3: bad byte order magic")
	ErrCount = errors.New("s3: element count does not match header counts")
)

// chunkSize is the number of float32 elements decoded per read.
const chunkSize = 1 << 16

// Encoder writes a single container. Errors are sticky: after the first
// failed write every call is a no-op and Flush reports the error.
type Encoder struct {
	w     *bufio.Writer
	order binary.ByteOrder
	buf   [4]byte
	err   error

	floats int
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: bufio.NewWriter(w), order: binary.NativeEndian}
}

func (e *Encoder) write(b []byte) {
	if e.err != nil {
		return
	}

	_, e.err = e.w.Write(b)
}

// WriteHeader writes the text header and the byte order magic.
func (e *Encoder) WriteHeader() error {
	e.write([]byte(headerBegin + "\n" + "version " + Version + "\n" + headerEnd + "\n"))
	e.order.PutUint32(e.buf[:], Magic)
	e.write(e.buf[:])
	return e.err
}

// WriteUint32 writes counts. The element count prefixing the float array is
// written with it too.
func (e *Encoder) WriteUint32(vs ...uint32) error {
	for _, v := range vs {
		e.order.PutUint32(e.buf[:], v)
		e.write(e.buf[:])
	}

	return e.err
}

// WriteFloat32 appends one element to the float array.
func (e *Encoder) WriteFloat32(f float32) {
	e.order.PutUint32(e.buf[:], math.Float32bits(f))
	e.write(e.buf[:])
	if e.err == nil {
		e.floats++
	}
}

// Floats returns the number of float32 elements written so far.
func (e *Encoder) Floats() int {
	return e.floats
}

func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}

	return e.w.Flush()
}

// HeaderSize is the byte length of the text header and magic written by an Encoder.
func HeaderSize() int64 {
	return int64(len(headerBegin+"\n"+"version "+Version+"\n"+headerEnd+"\n")) + 4
}

// File is a decoded container.
type File struct {
	// Header holds the key value lines between "s3" and "endhdr".
	Header    map[string]string
	ByteOrder binary.ByteOrder
	Counts    []uint32
	Data      []float32
}

// Decode reads a container with numCounts counts before the float array.
func Decode(r io.Reader, numCounts int) (*File, error) {
	br := bufio.NewReader(r)

	line, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("s3: read header: %w", err)
	}

	if strings.TrimSpace(line) != headerBegin {
		return nil, fmt.Errorf("s3: bad header %q", strings.TrimSpace(line))
	}

	f := File{Header: make(map[string]string)}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("s3: read header: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == headerEnd {
			break
		}

		key, value, _ := strings.Cut(line, " ")
		f.Header[key] = strings.TrimSpace(value)
	}

	var bts [4]byte
	if _, err := io.ReadFull(br, bts[:]); err != nil {
		return nil, fmt.Errorf("s3: read magic: %w", err)
	}

	switch {
	case binary.LittleEndian.Uint32(bts[:]) == Magic:
		f.ByteOrder = binary.LittleEndian
	case binary.BigEndian.Uint32(bts[:]) == Magic:
		f.ByteOrder = binary.BigEndian
	default:
		return nil, ErrMagic
	}

	f.Counts = make([]uint32, numCounts)
	if err := binary.Read(br, f.ByteOrder, f.Counts); err != nil {
		return nil, fmt.Errorf("s3: read counts: %w", err)
	}

	var n uint32
	if err := binary.Read(br, f.ByteOrder, &n); err != nil {
		return nil, fmt.Errorf("s3: read element count: %w", err)
	}

	if want, ok := elements(f.Counts); !ok || uint64(n) != want {
		return nil, fmt.Errorf("%w: %d elements for counts %v", ErrCount, n, f.Counts)
	}

	// grown as data is read, never sized from n alone
	f.Data = make([]float32, 0, min(n, chunkSize))
	for chunk := make([]float32, min(n, chunkSize)); len(f.Data) < int(n); {
		c := chunk[:min(int(n)-len(f.Data), len(chunk))]
		if err := binary.Read(br, f.ByteOrder, c); err != nil {
			return nil, fmt.Errorf("s3: read %d elements: %w", n, err)
		}

		f.Data = append(f.Data, c...)
	}

	if _, err := br.ReadByte(); !errors.Is(err, io.EOF) {
		return nil, errors.New("s3: trailing data after float array")
	}

	return &f, nil
}

// elements returns the product of counts, or false when it does not fit the
// uint32 element count.
func elements(counts []uint32) (uint64, bool) {
	if slices.Contains(counts, 0) {
		return 0, true
	}

	n := uint64(1)
	for _, c := range counts {
		n *= uint64(c)
		if n > math.MaxUint32 {
			return 0, false
		}
	}

	return n, true
}
