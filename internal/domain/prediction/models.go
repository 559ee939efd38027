package prediction

import (
	"encoding/json"
	"fmt"

	"fraudserve/internal/domain/transaction"
)

// NumModelFeatures is the width of a model input row.
const NumModelFeatures = 7

// TransferIndicatorColumn is the only one-hot column the model consumes.
const TransferIndicatorColumn = "type_TRANSFER"

// PredictionField is the field added to each original record in the response.
const PredictionField = "prediction"

// ModelColumns is the exact, ordered column layout the classifier accepts.
var ModelColumns = [NumModelFeatures]string{
	transaction.FieldStep,
	transaction.FieldOldBalanceOrg,
	transaction.FieldNewBalanceOrig,
	transaction.FieldNewBalanceDest,
	transaction.FieldDiffNewOldBalance,
	transaction.FieldDiffNewOldDestiny,
	TransferIndicatorColumn,
}

// ScaledColumns are rescaled by the fitted min-max scaler, in this order.
var ScaledColumns = []string{
	transaction.FieldAmount,
	transaction.FieldOldBalanceOrg,
	transaction.FieldNewBalanceOrig,
	transaction.FieldOldBalanceDest,
	transaction.FieldNewBalanceDest,
	transaction.FieldDiffNewOldBalance,
	transaction.FieldDiffNewOldDestiny,
}

// ModelInputRow is one prepared record in ModelColumns order.
type ModelInputRow [NumModelFeatures]float64

// Frame is a column-oriented numeric table produced by the encoder and
// rescaled in place by the scaler. Columns keep insertion order.
type Frame struct {
	rows    int
	columns []string
	index   map[string]int
	data    [][]float64
}

// NewFrame creates an empty frame with a fixed number of rows.
func NewFrame(rows int) *Frame {
	return &Frame{
		rows:  rows,
		index: make(map[string]int),
	}
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	return f.rows
}

// Columns returns the column names in order.
func (f *Frame) Columns() []string {
	cols := make([]string, len(f.columns))
	copy(cols, f.columns)
	return cols
}

// Has reports whether the frame has a column.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the values of a column. The slice aliases frame storage, so
// writes through it change the frame.
func (f *Frame) Column(name string) ([]float64, bool) {
	i, ok := f.index[name]
	if !ok {
		return nil, false
	}
	return f.data[i], true
}

// SetColumn adds a column, or replaces an existing one in place.
func (f *Frame) SetColumn(name string, values []float64) error {
	if len(values) != f.rows {
		return fmt.Errorf("column %q has %d values, frame has %d rows", name, len(values), f.rows)
	}
	if i, ok := f.index[name]; ok {
		f.data[i] = values
		return nil
	}
	f.index[name] = len(f.columns)
	f.columns = append(f.columns, name)
	f.data = append(f.data, values)
	return nil
}

// Result holds the caller's original records, each with a prediction attached.
type Result struct {
	Version string
	Records []*transaction.Record
}

// MarshalJSON encodes the result as an array of records.
func (r *Result) MarshalJSON() ([]byte, error) {
	records := r.Records
	if records == nil {
		records = []*transaction.Record{}
	}
	return json.Marshal(records)
}

// Flagged counts records predicted as fraud.
func (r *Result) Flagged() int {
	n := 0
	for _, rec := range r.Records {
		v, _ := rec.Get(PredictionField)
		if p, ok := v.(int); ok && p != 0 {
			n++
		}
	}
	return n
}
