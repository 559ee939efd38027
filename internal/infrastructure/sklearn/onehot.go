package sklearn

import (
	"errors"
	"fmt"
	"math"

	"fraudserve/internal/domain/prediction"
	"fraudserve/internal/domain/transaction"
)

const (
	handleValue = "value"
	handleError = "error"
)

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrMissingCategory = errors.New("missing category")
)

// OneHot is a fitted one-hot encoder over a single categorical column.
// Encoded columns take the place of the source column; every other field is
// passed through as a numeric column, NaN when the value is not a number.
// Input fields named like an encoded column are dropped, so indicators only
// ever come from the source column.
type OneHot struct {
	Column        string   `json:"column"`
	Categories    []string `json:"categories"`
	HandleUnknown string   `json:"handle_unknown"`
	HandleMissing string   `json:"handle_missing"`
	UseCatNames   bool     `json:"use_cat_names"`
}

func (e *OneHot) validate() error {
	if e.Column == "" {
		return errors.New("column is required")
	}
	if len(e.Categories) == 0 {
		return errors.New("at least one category is required")
	}
	seen := make(map[string]bool, len(e.Categories))
	for _, c := range e.Categories {
		if seen[c] {
			return fmt.Errorf("duplicate category %q", c)
		}
		seen[c] = true
	}
	if e.HandleUnknown == "" {
		e.HandleUnknown = handleValue
	}
	if e.HandleMissing == "" {
		e.HandleMissing = handleValue
	}
	for _, h := range []string{e.HandleUnknown, e.HandleMissing} {
		if h != handleValue && h != handleError {
			return fmt.Errorf("unsupported handling %q", h)
		}
	}
	return nil
}

// FeatureNames returns the columns the encoder emits for its categories.
func (e *OneHot) FeatureNames() []string {
	names := make([]string, len(e.Categories))
	for i, c := range e.Categories {
		if e.UseCatNames {
			names[i] = fmt.Sprintf("%s_%s", e.Column, c)
		} else {
			names[i] = fmt.Sprintf("%s_%d", e.Column, i+1)
		}
	}
	return names
}

// Transform encodes records into a frame.
func (e *OneHot) Transform(records []*transaction.Record) (*prediction.Frame, error) {
	frame := prediction.NewFrame(len(records))

	names := e.FeatureNames()
	encoded := make(map[string]bool, len(names))
	for _, name := range names {
		encoded[name] = true
	}

	for _, col := range columns(records) {
		if encoded[col] {
			continue
		}
		if col == e.Column {
			indicators, err := e.encode(records)
			if err != nil {
				return nil, err
			}
			for i, name := range names {
				if err := frame.SetColumn(name, indicators[i]); err != nil {
					return nil, err
				}
			}
			continue
		}

		values := make([]float64, len(records))
		for i, r := range records {
			v, ok := r.Get(col)
			if !ok || v == nil {
				values[i] = math.NaN()
				continue
			}
			values[i], _ = transaction.AsFloat(v)
		}
		if err := frame.SetColumn(col, values); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func (e *OneHot) encode(records []*transaction.Record) ([][]float64, error) {
	index := make(map[string]int, len(e.Categories))
	for i, c := range e.Categories {
		index[c] = i
	}

	indicators := make([][]float64, len(e.Categories))
	for i := range indicators {
		indicators[i] = make([]float64, len(records))
	}

	for row, r := range records {
		v, ok := r.Get(e.Column)
		if !ok || v == nil {
			if e.HandleMissing == handleError {
				return nil, fmt.Errorf("%w in column %q at row %d", ErrMissingCategory, e.Column, row)
			}
			continue
		}
		s, isString := v.(string)
		i, known := index[s]
		if !isString || !known {
			if e.HandleUnknown == handleError {
				return nil, fmt.Errorf("%w %v in column %q at row %d", ErrUnknownCategory, v, e.Column, row)
			}
			continue
		}
		indicators[i][row] = 1
	}
	return indicators, nil
}

// columns returns the union of record fields in first-seen order.
func columns(records []*transaction.Record) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range records {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}
