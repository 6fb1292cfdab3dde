package trace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/apache/arrow/go/v17/arrow"
	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/df07/go-drtm/pkg/loaders"
)

// History is the content of a trace directory
type History struct {
	Loss          []float64
	Reflectance   [][]float64
	Transmittance [][]float64
}

// Len returns the number of complete iterations in the history
func (h *History) Len() int {
	return min(len(h.Loss), len(h.Reflectance), len(h.Transmittance))
}

// LoadHistory reads the three trace arrays of dir
func LoadHistory(dir string) (*History, error) {
	loss, err := loaders.LoadNPY(filepath.Join(dir, LossFile))
	if err != nil {
		return nil, err
	}
	refl, err := loadRows(filepath.Join(dir, ReflectanceFile))
	if err != nil {
		return nil, err
	}
	trans, err := loadRows(filepath.Join(dir, TransmittanceFile))
	if err != nil {
		return nil, err
	}
	return &History{Loss: loss.Data, Reflectance: refl, Transmittance: trans}, nil
}

// loadRows reads a 2-D array as a slice of rows
func loadRows(path string) ([][]float64, error) {
	a, err := loaders.LoadNPY(path)
	if err != nil {
		return nil, err
	}
	if len(a.Shape) != 2 {
		return nil, fmt.Errorf("%s: %w: expected 2-D array, got shape %v", path, ErrShapeMismatch, a.Shape)
	}
	rows := make([][]float64, a.Shape[0])
	for i := range rows {
		rows[i] = a.Data[i*a.Shape[1] : (i+1)*a.Shape[1]]
	}
	return rows, nil
}

// Schema returns the Arrow schema of an exported history with the given band count
func Schema(bands int) *arrow.Schema {
	fields := []arrow.Field{
		{Name: "iteration", Type: arrow.PrimitiveTypes.Int64},
		{Name: "loss", Type: arrow.PrimitiveTypes.Float64},
	}
	for _, prefix := range []string{"reflectance", "transmittance"} {
		for b := 0; b < bands; b++ {
			fields = append(fields, arrow.Field{Name: fmt.Sprintf("%s_%d", prefix, b), Type: arrow.PrimitiveTypes.Float64})
		}
	}
	return arrow.NewSchema(fields, nil)
}

// ExportArrow writes the history of dir to an Arrow IPC file at out, one row
// per iteration. Iterations only present in some arrays are dropped.
func ExportArrow(dir, out string) (int, error) {
	history, err := LoadHistory(dir)
	if err != nil {
		return 0, err
	}
	n := history.Len()
	bands := 0
	if n > 0 {
		bands = len(history.Reflectance[0])
		if len(history.Transmittance[0]) != bands {
			return 0, fmt.Errorf("%w: reflectance has %d bands, transmittance %d", ErrShapeMismatch, bands, len(history.Transmittance[0]))
		}
	}

	schema := Schema(bands)
	builder := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer builder.Release()

	for i := 0; i < n; i++ {
		builder.Field(0).(*array.Int64Builder).Append(int64(i))
		builder.Field(1).(*array.Float64Builder).Append(history.Loss[i])
		for b := 0; b < bands; b++ {
			builder.Field(2 + b).(*array.Float64Builder).Append(history.Reflectance[i][b])
			builder.Field(2 + bands + b).(*array.Float64Builder).Append(history.Transmittance[i][b])
		}
	}

	record := builder.NewRecord()
	defer record.Release()

	file, err := os.Create(out)
	if err != nil {
		return 0, fmt.Errorf("failed to create arrow file: %w", err)
	}
	defer file.Close()

	writer, err := ipc.NewFileWriter(file, ipc.WithSchema(schema), ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return 0, fmt.Errorf("failed to create arrow writer: %w", err)
	}
	if err := writer.Write(record); err != nil {
		writer.Close()
		return 0, fmt.Errorf("failed to write arrow record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish arrow file: %w", err)
	}
	return n, file.Close()
}
