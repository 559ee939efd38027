package prediction

import (
	"errors"

	"fraudserve/internal/domain/transaction"
)

// Encoder applies a fitted categorical encoding. It decides which one-hot
// columns exist; every other record field becomes a numeric column.
type Encoder interface {
	Transform(records []*transaction.Record) (*Frame, error)
}

// Scaler rescales the named columns of a frame in place.
type Scaler interface {
	Transform(frame *Frame, columns []string) error
}

// Classifier runs inference over prepared rows and returns one class label
// per row.
type Classifier interface {
	// FeatureNames is the column layout the classifier was fit on. An empty
	// result means the artifact did not record it.
	FeatureNames() []string
	Predict(rows []ModelInputRow) ([]int, error)
}

// Artifacts is the read-only, once-loaded state a pipeline serves with.
type Artifacts struct {
	Version    string
	Encoder    Encoder
	Scaler     Scaler
	Classifier Classifier
}

func (a Artifacts) validate() error {
	if a.Encoder == nil {
		return errors.New("encoder artifact is required")
	}
	if a.Scaler == nil {
		return errors.New("scaler artifact is required")
	}
	if a.Classifier == nil {
		return errors.New("classifier artifact is required")
	}
	return nil
}

// CheckClassifierColumns reports whether a classifier was fit on exactly
// ModelColumns, in order.
func CheckClassifierColumns(c Classifier) error {
	names := c.FeatureNames()
	if len(names) == 0 {
		return nil
	}
	if len(names) != NumModelFeatures {
		return artifactIncompatible(StagePrepared, nil,
			"classifier expects %d features, prepared rows have %d", len(names), NumModelFeatures)
	}
	for i, name := range names {
		if name != ModelColumns[i] {
			return artifactIncompatible(StagePrepared, nil,
				"classifier feature %d is %q, prepared rows have %q", i, name, ModelColumns[i])
		}
	}
	return nil
}
