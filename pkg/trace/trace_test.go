package trace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow/go/v17/arrow/array"
	"github.com/apache/arrow/go/v17/arrow/ipc"
	"github.com/apache/arrow/go/v17/arrow/memory"

	"github.com/df07/go-drtm/pkg/loaders"
)

func TestAppendArray_CreateAppendReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflect.npy")

	a, err := Open(path, []int{4})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := a.Append(1, 2, 3, 4); err != nil {
		t.Fatal(err)
	}
	if err := a.Append(5, 6, 7, 8, 9, 10, 11, 12); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Second Close should be a no-op, got %v", err)
	}

	loaded, err := loaders.LoadNPY(path)
	if err != nil {
		t.Fatalf("LoadNPY failed: %v", err)
	}
	if len(loaded.Shape) != 2 || loaded.Shape[0] != 3 || loaded.Shape[1] != 4 {
		t.Fatalf("Expected shape (3, 4), got %v", loaded.Shape)
	}

	// Reopening continues after the existing rows
	a, err = Open(path, []int{4})
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if a.Rows() != 3 {
		t.Errorf("Expected 3 rows after reopen, got %d", a.Rows())
	}
	if err := a.Append(13, 14, 15, 16); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	loaded, err = loaders.LoadNPY(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Shape[0] != 4 {
		t.Errorf("Expected 4 rows, got %d", loaded.Shape[0])
	}
	for i, v := range loaded.Data {
		if v != float64(i+1) {
			t.Fatalf("Element %d: expected %d, got %g", i, i+1, v)
		}
	}
}

func TestAppendArray_FlushKeepsFileReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loss.npy")
	a, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	for i := 0; i < 3; i++ {
		if err := a.Append(float64(i) * 0.5); err != nil {
			t.Fatal(err)
		}
		if err := a.Flush(); err != nil {
			t.Fatal(err)
		}
		loaded, err := loaders.LoadNPY(path)
		if err != nil {
			t.Fatalf("LoadNPY after flush %d failed: %v", i, err)
		}
		if len(loaded.Data) != i+1 || len(loaded.Shape) != 1 {
			t.Errorf("After %d appends: shape %v", i+1, loaded.Shape)
		}
	}
}

func TestAppendArray_DropsUnflushedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reflect.npy")
	a, err := Open(path, []int{4})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Append(1, 2, 3, 4); err != nil {
		t.Fatal(err)
	}
	if err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := a.Append(5, 6, 7, 8); err != nil {
		t.Fatal(err)
	}
	// Process dies before the header covers the second row
	a.file.Close()

	a, err = Open(path, []int{4})
	if err != nil {
		t.Fatalf("Reopen after an interrupted append failed: %v", err)
	}
	if a.Rows() != 1 {
		t.Errorf("Expected 1 flushed row, got %d", a.Rows())
	}
	if err := a.Append(9, 10, 11, 12); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	loaded, err := loaders.LoadNPY(path)
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{1, 2, 3, 4, 9, 10, 11, 12}
	if len(loaded.Data) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, loaded.Data)
	}
	for i, v := range expected {
		if loaded.Data[i] != v {
			t.Errorf("Element %d: expected %g, got %g", i, v, loaded.Data[i])
		}
	}
}

func TestAppendArray_Errors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trans.npy")

	a, err := Open(path, []int{4})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Append(1, 2, 3); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for partial row, got %v", err)
	}
	a.Close()

	if _, err := Open(path, []int{3}); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch when reopening with other row shape, got %v", err)
	}

	notNPY := filepath.Join(dir, "junk.npy")
	if err := os.WriteFile(notNPY, []byte("definitely not numpy"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(notNPY, nil); err == nil {
		t.Error("Expected error for non-NPY file")
	}

	if err := a.Append(1, 2, 3, 4); err == nil {
		t.Error("Expected error appending to closed array")
	}
}

func TestAppendArray_ContinuesNumPySavedFile(t *testing.T) {
	// A plain minimal-header file, as numpy.save would write it
	path := filepath.Join(t.TempDir(), "loss.npy")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := loaders.WriteNPY(file, []int{2}, []float64{7, 8}); err != nil {
		t.Fatal(err)
	}
	file.Close()

	a, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := a.Append(9); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	loaded, err := loaders.LoadNPY(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Data) != 3 || loaded.Data[2] != 9 {
		t.Errorf("Unexpected data %v", loaded.Data)
	}
}

func TestSet_RecordAndExportArrow(t *testing.T) {
	dir := t.TempDir()

	for run := 0; run < 2; run++ {
		set, err := OpenSet(dir, 4)
		if err != nil {
			t.Fatalf("OpenSet failed: %v", err)
		}
		for i := 0; i < 3; i++ {
			v := float64(run*3 + i)
			if err := set.Record(v, []float64{v, v, v, v}, []float64{-v, -v, -v, -v}); err != nil {
				t.Fatal(err)
			}
		}
		if err := set.Close(); err != nil {
			t.Fatal(err)
		}
	}

	history, err := LoadHistory(dir)
	if err != nil {
		t.Fatal(err)
	}
	if history.Len() != 6 {
		t.Fatalf("Expected 6 iterations over two runs, got %d", history.Len())
	}

	out := filepath.Join(dir, "trace.arrow")
	n, err := ExportArrow(dir, out)
	if err != nil {
		t.Fatalf("ExportArrow failed: %v", err)
	}
	if n != 6 {
		t.Errorf("Expected 6 exported rows, got %d", n)
	}

	file, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()

	reader, err := ipc.NewFileReader(file, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		t.Fatalf("failed to open arrow file: %v", err)
	}
	defer reader.Close()

	if got := reader.Schema().NumFields(); got != 10 {
		t.Errorf("Expected 10 columns, got %d", got)
	}
	record, err := reader.Record(0)
	if err != nil {
		t.Fatal(err)
	}
	if record.NumRows() != 6 {
		t.Errorf("Expected 6 rows, got %d", record.NumRows())
	}
	loss := record.Column(1).(*array.Float64)
	if loss.Value(4) != 4 {
		t.Errorf("Expected loss 4 at iteration 4, got %g", loss.Value(4))
	}
	trans := record.Column(6).(*array.Float64)
	if trans.Value(5) != -5 {
		t.Errorf("Expected transmittance_0 -5 at iteration 5, got %g", trans.Value(5))
	}
}
