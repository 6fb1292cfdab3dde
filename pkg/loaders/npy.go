package loaders

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/df07/go-drtm/pkg/core"
	"github.com/sbinet/npyio"
)

// ErrShortSnapshot is returned when a snapshot holds fewer values than requested
var ErrShortSnapshot = errors.New("snapshot has too few elements")

// NPYMagic is the prefix of every .npy file
const NPYMagic = "\x93NUMPY"

// NPYFloat64 is the dtype descriptor of little-endian float64 data
const NPYFloat64 = "<f8"

// NPYArray is a decoded .npy file converted to float64
type NPYArray struct {
	Shape []int
	Data  []float64
}

// LoadNPY reads a .npy file of any floating point or integer dtype into float64
func LoadNPY(filename string) (*NPYArray, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open NPY file: %w", err)
	}
	defer file.Close()

	array, err := ReadNPY(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return array, nil
}

// ReadNPY decodes .npy content from a reader
func ReadNPY(r io.Reader) (*NPYArray, error) {
	reader, err := npyio.NewReader(r)
	if err != nil {
		return nil, err
	}
	if reader.Header.Descr.Fortran {
		return nil, fmt.Errorf("fortran-ordered arrays are not supported")
	}

	shape := append([]int(nil), reader.Header.Descr.Shape...)
	var data []float64

	switch reader.Header.Descr.Type {
	case "<f8", "f8", "float64":
		err = reader.Read(&data)
	case "<f4", "f4", "float32":
		var raw []float32
		err = reader.Read(&raw)
		data = make([]float64, len(raw))
		for i, v := range raw {
			data[i] = float64(v)
		}
	case "<i8", "i8", "int64":
		var raw []int64
		err = reader.Read(&raw)
		data = make([]float64, len(raw))
		for i, v := range raw {
			data[i] = float64(v)
		}
	case "<i4", "i4", "int32":
		var raw []int32
		err = reader.Read(&raw)
		data = make([]float64, len(raw))
		for i, v := range raw {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("unsupported dtype %q", reader.Header.Descr.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read array data: %w", err)
	}

	return &NPYArray{Shape: shape, Data: data}, nil
}

// ReadVectorTail returns the last n values of the flattened array in filename.
// Snapshots may hold several vectors; the most recent one is at the end.
func ReadVectorTail(filename string, n int) ([]float64, error) {
	array, err := LoadNPY(filename)
	if err != nil {
		return nil, err
	}
	if len(array.Data) < n {
		return nil, fmt.Errorf("%s has %d values, need %d: %w", filename, len(array.Data), n, ErrShortSnapshot)
	}
	return append([]float64(nil), array.Data[len(array.Data)-n:]...), nil
}

// LoadImageNPY reads a (height, width, bands) array as an image
func LoadImageNPY(filename string) (*core.Image, error) {
	array, err := LoadNPY(filename)
	if err != nil {
		return nil, err
	}
	if len(array.Shape) != 3 {
		return nil, fmt.Errorf("%s: expected a (height, width, bands) array, got shape %v", filename, array.Shape)
	}
	img := core.NewImage(array.Shape[1], array.Shape[0], array.Shape[2])
	copy(img.Pix, array.Data)
	return img, nil
}

// SaveImageNPY writes an image as a float64 (height, width, bands) array
func SaveImageNPY(img *core.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create NPY file: %w", err)
	}

	w := bufio.NewWriter(file)
	if err := WriteNPY(w, img.Shape(), img.Pix); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return file.Close()
}

// WriteNPY writes float64 data with the given C-order shape
func WriteNPY(w io.Writer, shape []int, data []float64) error {
	if n := shapeSize(shape); n != len(data) {
		return fmt.Errorf("shape %v needs %d values, got %d", shape, n, len(data))
	}
	header, err := EncodeNPYHeader(NPYFloat64, shape, 0)
	if err != nil {
		return err
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	buf := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	_, err = w.Write(buf)
	return err
}

// EncodeNPYHeader returns a version 1.0 header (magic, version, length and
// dictionary) for the given dtype and shape. The header is padded with spaces
// to a multiple of 64 bytes and to at least minSize bytes, which lets callers
// reserve room to rewrite the shape in place later.
func EncodeNPYHeader(descr string, shape []int, minSize int) ([]byte, error) {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, formatShape(shape))

	prefix := len(NPYMagic) + 4
	total := prefix + len(dict) + 1
	if rem := total % 64; rem != 0 {
		total += 64 - rem
	}
	if minSize > total {
		if minSize%64 != 0 {
			return nil, fmt.Errorf("header size %d is not a multiple of 64", minSize)
		}
		total = minSize
	}
	if total-prefix > math.MaxUint16 {
		return nil, fmt.Errorf("header too large: %d bytes", total)
	}

	var buf bytes.Buffer
	buf.WriteString(NPYMagic)
	buf.Write([]byte{1, 0})
	binary.Write(&buf, binary.LittleEndian, uint16(total-prefix))
	buf.WriteString(dict)
	buf.WriteString(strings.Repeat(" ", total-prefix-len(dict)-1))
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// formatShape renders a shape as a Python tuple
func formatShape(shape []int) string {
	switch len(shape) {
	case 0:
		return "()"
	case 1:
		return "(" + strconv.Itoa(shape[0]) + ",)"
	}
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = strconv.Itoa(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func shapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
