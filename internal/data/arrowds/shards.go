package arrowds

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/klauspost/compress/zstd"
)

// readShard opens one Feather v2 (Arrow IPC file) shard and calls visit
// for every record batch. Shards with a .zst suffix are decompressed
// first; the converters emit those for server-side stores where browser
// compatibility doesn't matter.
func readShard(path string, visit func(arrow.Record) error) error {
	var rs ipc.ReadAtSeeker

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("zstd reader for %s: %w", path, err)
		}
		defer dec.Close()
		raw, err := io.ReadAll(dec)
		if err != nil {
			return fmt.Errorf("decompress %s: %w", path, err)
		}
		rs = bytes.NewReader(raw)
	} else {
		rs = f
	}

	r, err := ipc.NewFileReader(rs, ipc.WithAllocator(memory.DefaultAllocator))
	if err != nil {
		return fmt.Errorf("open arrow file %s: %w", path, err)
	}
	defer r.Close()

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read record from %s: %w", path, err)
		}
		if err := visit(rec); err != nil {
			return err
		}
	}
}

// colIndex finds a column by any of its candidate names. The converters
// changed naming over time (Cell_Num vs cell_num), so lookups tolerate
// both.
func colIndex(rec arrow.Record, names ...string) int {
	for i, f := range rec.Schema().Fields() {
		for _, name := range names {
			if f.Name == name {
				return i
			}
		}
	}
	return -1
}

// floatAt reads a numeric cell as float64 regardless of the physical
// column type the converter chose.
func floatAt(col arrow.Array, i int) (float64, bool) {
	if col == nil || col.IsNull(i) {
		return 0, false
	}
	switch c := col.(type) {
	case *array.Float32:
		return float64(c.Value(i)), true
	case *array.Float64:
		return c.Value(i), true
	case *array.Int16:
		return float64(c.Value(i)), true
	case *array.Int32:
		return float64(c.Value(i)), true
	case *array.Int64:
		return float64(c.Value(i)), true
	case *array.Uint16:
		return float64(c.Value(i)), true
	case *array.Uint32:
		return float64(c.Value(i)), true
	}
	return 0, false
}

// intAt reads a numeric cell as int.
func intAt(col arrow.Array, i int) (int, bool) {
	v, ok := floatAt(col, i)
	if !ok {
		return 0, false
	}
	return int(v), true
}

// stringAt reads a string cell, stringifying numeric ids where the
// converter stored them as numbers.
func stringAt(col arrow.Array, i int) (string, bool) {
	if col == nil || col.IsNull(i) {
		return "", false
	}
	switch c := col.(type) {
	case *array.String:
		return c.Value(i), true
	case *array.LargeString:
		return c.Value(i), true
	default:
		if v, ok := floatAt(col, i); ok {
			return fmt.Sprintf("%d", int64(v)), true
		}
	}
	return "", false
}

// floatListAt reads one row of a list<float> column.
func floatListAt(col arrow.Array, i int) []float64 {
	lst, ok := col.(*array.List)
	if !ok || lst.IsNull(i) {
		return nil
	}
	start, end := lst.ValueOffsets(i)
	values := lst.ListValues()

	out := make([]float64, 0, end-start)
	for j := start; j < end; j++ {
		if v, ok := floatAt(values, int(j)); ok {
			out = append(out, v)
		}
	}
	return out
}
