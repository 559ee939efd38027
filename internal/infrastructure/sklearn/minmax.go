package sklearn

import (
	"errors"
	"fmt"
	"math"

	"fraudserve/internal/domain/prediction"
)

// ErrScalerNotFitted is returned by a MinMax that was not built by DecodeScaler.
var ErrScalerNotFitted = errors.New("min-max scaler is not initialised")

// epsilon is float64 machine epsilon.
const epsilon = 2.220446049250313e-16

// MinMax is a fitted min-max scaler.
type MinMax struct {
	FeatureNamesIn []string   `json:"feature_names_in"`
	DataMin        []float64  `json:"data_min"`
	DataMax        []float64  `json:"data_max"`
	FeatureRange   [2]float64 `json:"feature_range"`
	Clip           bool       `json:"clip"`

	scale []float64
	min   []float64
}

func (s *MinMax) init() error {
	n := len(s.DataMin)
	if n == 0 {
		return errors.New("data_min is required")
	}
	if len(s.DataMax) != n {
		return fmt.Errorf("data_max has %d values, data_min has %d", len(s.DataMax), n)
	}
	if len(s.FeatureNamesIn) != 0 && len(s.FeatureNamesIn) != n {
		return fmt.Errorf("feature_names_in has %d names, data_min has %d values", len(s.FeatureNamesIn), n)
	}
	if err := checkFeatureNames(s.FeatureNamesIn); err != nil {
		return err
	}
	if s.FeatureRange == [2]float64{} {
		s.FeatureRange = [2]float64{0, 1}
	}
	lo, hi := s.FeatureRange[0], s.FeatureRange[1]
	if lo >= hi {
		return fmt.Errorf("minimum of feature_range must be smaller than maximum, got (%g, %g)", lo, hi)
	}

	s.scale = make([]float64, n)
	s.min = make([]float64, n)
	for i := range n {
		span := s.DataMax[i] - s.DataMin[i]
		// Constant features keep a unit scale.
		if span < 10*epsilon {
			span = 1
		}
		s.scale[i] = (hi - lo) / span
		s.min[i] = lo - s.DataMin[i]*s.scale[i]
	}
	return nil
}

// Transform rescales columns in place. The columns must be exactly the ones
// the scaler was fit on, in the same order. Transform never mutates s.
func (s *MinMax) Transform(frame *prediction.Frame, columns []string) error {
	if s.scale == nil {
		return ErrScalerNotFitted
	}
	if len(columns) != len(s.scale) {
		return fmt.Errorf("X has %d features, but MinMaxScaler is expecting %d features as input", len(columns), len(s.scale))
	}
	for i, name := range s.FeatureNamesIn {
		if columns[i] != name {
			return fmt.Errorf("feature names should match those passed during fit: position %d is %q, fit with %q", i, columns[i], name)
		}
	}

	lo, hi := s.FeatureRange[0], s.FeatureRange[1]
	for i, name := range columns {
		values, ok := frame.Column(name)
		if !ok {
			return fmt.Errorf("feature %q seen at fit time is missing", name)
		}
		for row, v := range values {
			v = v*s.scale[i] + s.min[i]
			if s.Clip {
				v = math.Max(lo, math.Min(hi, v))
			}
			values[row] = v
		}
	}
	return nil
}
