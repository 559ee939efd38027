// Package sklearn decodes JSON exports of fitted scikit-learn style
// preprocessing and model objects and applies them to prediction frames.
package sklearn

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"fraudserve/internal/domain/prediction"
)

// Artifact kinds understood by the decoders.
const (
	KindOneHot       = "onehot"
	KindMinMax       = "minmax"
	KindLogistic     = "logistic"
	KindTreeEnsemble = "tree_ensemble"
)

var ErrUnknownKind = errors.New("unknown artifact kind")

// DecodeEncoder decodes an encoder artifact of the given kind.
func DecodeEncoder(kind string, data []byte) (prediction.Encoder, error) {
	switch kind {
	case KindOneHot:
		var enc OneHot
		if err := decodeStrict(data, &enc); err != nil {
			return nil, fmt.Errorf("failed to decode onehot encoder: %w", err)
		}
		if err := enc.validate(); err != nil {
			return nil, fmt.Errorf("invalid onehot encoder: %w", err)
		}
		return &enc, nil
	}
	return nil, fmt.Errorf("%w for encoder: %q", ErrUnknownKind, kind)
}

// DecodeScaler decodes a scaler artifact of the given kind.
func DecodeScaler(kind string, data []byte) (prediction.Scaler, error) {
	switch kind {
	case KindMinMax:
		var sc MinMax
		if err := decodeStrict(data, &sc); err != nil {
			return nil, fmt.Errorf("failed to decode minmax scaler: %w", err)
		}
		if err := sc.init(); err != nil {
			return nil, fmt.Errorf("invalid minmax scaler: %w", err)
		}
		return &sc, nil
	}
	return nil, fmt.Errorf("%w for scaler: %q", ErrUnknownKind, kind)
}

// DecodeClassifier decodes a classifier artifact of the given kind.
func DecodeClassifier(kind string, data []byte) (prediction.Classifier, error) {
	switch kind {
	case KindLogistic:
		var lr Logistic
		if err := decodeStrict(data, &lr); err != nil {
			return nil, fmt.Errorf("failed to decode logistic classifier: %w", err)
		}
		if err := lr.validate(); err != nil {
			return nil, fmt.Errorf("invalid logistic classifier: %w", err)
		}
		return &lr, nil
	case KindTreeEnsemble:
		var te TreeEnsemble
		if err := decodeStrict(data, &te); err != nil {
			return nil, fmt.Errorf("failed to decode tree ensemble: %w", err)
		}
		if err := te.validate(); err != nil {
			return nil, fmt.Errorf("invalid tree ensemble: %w", err)
		}
		return &te, nil
	}
	return nil, fmt.Errorf("%w for classifier: %q", ErrUnknownKind, kind)
}

// decodeStrict rejects trailing data after the artifact object.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after artifact object")
	}
	return nil
}

// floats decodes either a flat number list or a single-row matrix, the two
// shapes exporters emit for coef_ and intercept_.
type floats []float64

func (f *floats) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] != '[' {
		var v float64
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = floats{v}
		return nil
	}

	var flat []float64
	if err := json.Unmarshal(data, &flat); err == nil {
		*f = flat
		return nil
	}

	var matrix [][]float64
	if err := json.Unmarshal(data, &matrix); err != nil {
		return err
	}
	if len(matrix) != 1 {
		return fmt.Errorf("expected a single row, got %d", len(matrix))
	}
	*f = matrix[0]
	return nil
}

func checkFeatureNames(names []string) error {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return fmt.Errorf("duplicate feature name %q", n)
		}
		seen[n] = true
	}
	return nil
}
