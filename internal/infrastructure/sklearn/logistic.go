package sklearn

import (
	"errors"
	"fmt"
	"math"

	"fraudserve/internal/domain/prediction"
)

// Logistic is a fitted binary logistic regression.
type Logistic struct {
	FeatureNamesIn []string `json:"feature_names_in"`
	Coef           floats   `json:"coef"`
	Intercept      floats   `json:"intercept"`
	Threshold      *float64 `json:"threshold"`
}

func (m *Logistic) validate() error {
	if len(m.Coef) == 0 {
		return errors.New("coef is required")
	}
	if len(m.Intercept) > 1 {
		return fmt.Errorf("expected a single intercept, got %d", len(m.Intercept))
	}
	if len(m.FeatureNamesIn) != 0 && len(m.FeatureNamesIn) != len(m.Coef) {
		return fmt.Errorf("feature_names_in has %d names, coef has %d values", len(m.FeatureNamesIn), len(m.Coef))
	}
	if t := m.threshold(); t <= 0 || t >= 1 {
		return fmt.Errorf("threshold must be in (0, 1), got %g", t)
	}
	return checkFeatureNames(m.FeatureNamesIn)
}

func (m *Logistic) threshold() float64 {
	if m.Threshold == nil {
		return 0.5
	}
	return *m.Threshold
}

func (m *Logistic) FeatureNames() []string {
	return m.FeatureNamesIn
}

// Probability returns the positive-class probability of one row.
func (m *Logistic) Probability(row prediction.ModelInputRow) float64 {
	z := 0.0
	if len(m.Intercept) == 1 {
		z = m.Intercept[0]
	}
	for i := 0; i < len(m.Coef) && i < len(row); i++ {
		z += m.Coef[i] * row[i]
	}
	return 1 / (1 + math.Exp(-z))
}

// Predict labels a row 1 when its probability exceeds the threshold.
func (m *Logistic) Predict(rows []prediction.ModelInputRow) ([]int, error) {
	if len(m.Coef) != prediction.NumModelFeatures {
		return nil, fmt.Errorf("X has %d features, but LogisticRegression is expecting %d features as input",
			prediction.NumModelFeatures, len(m.Coef))
	}
	t := m.threshold()
	out := make([]int, len(rows))
	for i, row := range rows {
		if m.Probability(row) > t {
			out[i] = 1
		}
	}
	return out, nil
}
