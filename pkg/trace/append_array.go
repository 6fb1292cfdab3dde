package trace

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"github.com/df07/go-drtm/pkg/loaders"
	"github.com/sbinet/npyio"
)

// ErrShapeMismatch is returned when rows do not match the array's row shape
var ErrShapeMismatch = errors.New("trace shape mismatch")

// headerReserve is the header size of new files, leaving room for the
// leading dimension to grow without moving the data
const headerReserve = 128

// AppendArray is a float64 .npy file whose leading dimension grows in place.
// The file stays readable by NumPy after every Flush.
type AppendArray struct {
	path       string
	file       *os.File
	rowShape   []int
	rowSize    int
	rows       int
	headerSize int
	dirty      bool
}

// Open opens or creates the array at path. An existing file must hold
// little-endian float64 data whose trailing dimensions equal rowShape; its
// rows are kept and new rows are appended after them.
func Open(path string, rowShape []int) (*AppendArray, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}

	a := &AppendArray{
		path:     path,
		file:     file,
		rowShape: append([]int(nil), rowShape...),
		rowSize:  1,
	}
	for _, d := range rowShape {
		a.rowSize *= d
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat trace file: %w", err)
	}

	if info.Size() == 0 {
		a.headerSize = headerReserve
		a.dirty = true
		err = a.writeHeader()
	} else {
		err = a.readHeader(info.Size())
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to seek trace file: %w", err)
	}
	return a, nil
}

// readHeader validates an existing file and loads its row count
func (a *AppendArray) readHeader(size int64) error {
	prefix := make([]byte, 10)
	if _, err := a.file.ReadAt(prefix, 0); err != nil {
		return fmt.Errorf("failed to read NPY prefix: %w", err)
	}
	if string(prefix[:6]) != loaders.NPYMagic {
		return fmt.Errorf("not an NPY file")
	}
	if prefix[6] != 1 {
		return fmt.Errorf("unsupported NPY version %d.%d", prefix[6], prefix[7])
	}
	a.headerSize = 10 + int(binary.LittleEndian.Uint16(prefix[8:10]))

	header := make([]byte, a.headerSize)
	if _, err := a.file.ReadAt(header, 0); err != nil {
		return fmt.Errorf("failed to read NPY header: %w", err)
	}
	reader, err := npyio.NewReader(bytes.NewReader(header))
	if err != nil {
		return fmt.Errorf("failed to parse NPY header: %w", err)
	}

	descr := reader.Header.Descr
	if descr.Type != loaders.NPYFloat64 || descr.Fortran {
		return fmt.Errorf("%w: dtype %s (fortran %v), expected %s", ErrShapeMismatch, descr.Type, descr.Fortran, loaders.NPYFloat64)
	}
	if len(descr.Shape) == 0 || !slices.Equal(descr.Shape[1:], a.rowShape) {
		return fmt.Errorf("%w: file shape %v, rows of %v", ErrShapeMismatch, descr.Shape, a.rowShape)
	}
	a.rows = descr.Shape[0]

	// Rows appended after the last Flush are not covered by the header and
	// are dropped
	expected := int64(a.headerSize) + int64(a.rows*a.rowSize*8)
	if size < expected {
		return fmt.Errorf("file is %d bytes, header describes %d", size, expected)
	}
	if size > expected {
		if err := a.file.Truncate(expected); err != nil {
			return fmt.Errorf("failed to drop unflushed rows: %w", err)
		}
	}
	return nil
}

// writeHeader rewrites the header in place with the current row count
func (a *AppendArray) writeHeader() error {
	header, err := loaders.EncodeNPYHeader(loaders.NPYFloat64, a.Shape(), a.headerSize)
	if err != nil {
		return err
	}
	if len(header) != a.headerSize {
		return fmt.Errorf("header grew from %d to %d bytes", a.headerSize, len(header))
	}
	if _, err := a.file.WriteAt(header, 0); err != nil {
		return fmt.Errorf("failed to write NPY header: %w", err)
	}
	return nil
}

// Append writes one or more rows, given flattened in C order
func (a *AppendArray) Append(values ...float64) error {
	if a.file == nil {
		return fmt.Errorf("%s: append to closed trace", a.path)
	}
	if len(values) == 0 || len(values)%a.rowSize != 0 {
		return fmt.Errorf("%w: %d values for rows of %v", ErrShapeMismatch, len(values), a.rowShape)
	}

	buf := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	if _, err := a.file.Write(buf); err != nil {
		return fmt.Errorf("failed to append to %s: %w", a.path, err)
	}

	a.rows += len(values) / a.rowSize
	a.dirty = true
	return nil
}

// Flush updates the header to cover every appended row and syncs the file
func (a *AppendArray) Flush() error {
	if a.file == nil {
		return nil
	}
	if a.dirty {
		if err := a.writeHeader(); err != nil {
			return fmt.Errorf("%s: %w", a.path, err)
		}
		a.dirty = false
	}
	return a.file.Sync()
}

// Close flushes and releases the file. Closing twice is a no-op.
func (a *AppendArray) Close() error {
	if a.file == nil {
		return nil
	}
	flushErr := a.Flush()
	closeErr := a.file.Close()
	a.file = nil
	return errors.Join(flushErr, closeErr)
}

// Rows returns the number of rows in the array
func (a *AppendArray) Rows() int {
	return a.rows
}

// Shape returns the full NumPy shape (rows, rowShape...)
func (a *AppendArray) Shape() []int {
	return append([]int{a.rows}, a.rowShape...)
}

// Path returns the file path
func (a *AppendArray) Path() string {
	return a.path
}
