// Package parquet reads columnar trip-record files into a trip.Table.
package parquet

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"tripload/internal/trip"
)

// readBatchSize bounds the rows decoded per arrow record.
const readBatchSize = 64 * 1024

// ReadTable loads the whole file at path.
//
// Column names are kept as written; the normalizer folds their case. Values are
// converted to the plain Go types documented on trip.Table: integer columns
// become int64, floating columns float64, timestamps time.Time in UTC and
// strings string. Nulls become nil.
func ReadTable(ctx context.Context, path string) (*trip.Table, error) {
	pf, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}
	defer pf.Close()

	fr, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{BatchSize: readBatchSize}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("parquet reader %s: %w", path, err)
	}

	tbl, err := fr.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	defer tbl.Release()

	return fromArrow(tbl)
}

func fromArrow(tbl arrow.Table) (*trip.Table, error) {
	schema := tbl.Schema()
	out := &trip.Table{
		Columns: make([]string, schema.NumFields()),
		Rows:    make([][]any, 0, tbl.NumRows()),
	}
	for i, f := range schema.Fields() {
		out.Columns[i] = f.Name
	}

	tr := array.NewTableReader(tbl, readBatchSize)
	defer tr.Release()

	for tr.Next() {
		rec := tr.Record()
		n := int(rec.NumRows())
		base := len(out.Rows)
		for i := 0; i < n; i++ {
			out.Rows = append(out.Rows, make([]any, len(out.Columns)))
		}
		for c := 0; c < int(rec.NumCols()); c++ {
			col := rec.Column(c)
			for i := 0; i < n; i++ {
				v, err := cell(col, i)
				if err != nil {
					return nil, fmt.Errorf("column %s row %d: %w", out.Columns[c], base+i, err)
				}
				out.Rows[base+i][c] = v
			}
		}
	}
	if err := tr.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// cell converts one arrow value to its trip.Table representation.
func cell(arr arrow.Array, i int) (any, error) {
	if arr.IsNull(i) {
		return nil, nil
	}
	switch a := arr.(type) {
	case *array.Int64:
		return a.Value(i), nil
	case *array.Int32:
		return int64(a.Value(i)), nil
	case *array.Int16:
		return int64(a.Value(i)), nil
	case *array.Int8:
		return int64(a.Value(i)), nil
	case *array.Uint32:
		return int64(a.Value(i)), nil
	case *array.Float64:
		return a.Value(i), nil
	case *array.Float32:
		return float64(a.Value(i)), nil
	case *array.String:
		return a.Value(i), nil
	case *array.LargeString:
		return a.Value(i), nil
	case *array.Boolean:
		return a.Value(i), nil
	case *array.Timestamp:
		unit := a.DataType().(*arrow.TimestampType).Unit
		return a.Value(i).ToTime(unit).UTC(), nil
	case *array.Date32:
		return a.Value(i).ToTime().UTC(), nil
	case *array.Dictionary:
		return cell(a.Dictionary(), a.GetValueIndex(i))
	}
	// Anything else is handed over in its text form; the normalizer decides.
	return arr.ValueStr(i), nil
}
