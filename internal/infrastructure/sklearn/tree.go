package sklearn

import (
	"errors"
	"fmt"

	"fraudserve/internal/domain/prediction"
)

const leaf = -1

// Tree is one fitted decision tree in the flat node-array layout sklearn
// keeps in tree_. Node i splits on Feature[i] at Threshold[i]; rows with
// x <= threshold go left. Leaves have both children set to -1.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// TreeEnsemble covers a single decision tree and forests of them. Leaf
// class weights are normalized per tree and averaged across trees.
type TreeEnsemble struct {
	FeatureNamesIn []string `json:"feature_names_in"`
	NFeaturesIn    int      `json:"n_features_in"`
	Classes        []int    `json:"classes"`
	Trees          []Tree   `json:"trees"`

	nClasses int
}

func (m *TreeEnsemble) validate() error {
	if len(m.Trees) == 0 {
		return errors.New("at least one tree is required")
	}
	if err := checkFeatureNames(m.FeatureNamesIn); err != nil {
		return err
	}
	if m.NFeaturesIn == 0 {
		m.NFeaturesIn = len(m.FeatureNamesIn)
	}
	if len(m.FeatureNamesIn) != 0 && len(m.FeatureNamesIn) != m.NFeaturesIn {
		return fmt.Errorf("feature_names_in has %d names, n_features_in is %d", len(m.FeatureNamesIn), m.NFeaturesIn)
	}

	m.nClasses = len(m.Classes)
	for ti := range m.Trees {
		n, err := m.Trees[ti].validate(m.NFeaturesIn)
		if err != nil {
			return fmt.Errorf("tree %d: %w", ti, err)
		}
		if m.nClasses == 0 {
			m.nClasses = n
		}
		if n != m.nClasses {
			return fmt.Errorf("tree %d has %d classes, expected %d", ti, n, m.nClasses)
		}
	}
	if m.Classes == nil {
		m.Classes = make([]int, m.nClasses)
		for i := range m.Classes {
			m.Classes[i] = i
		}
	}
	return nil
}

// validate checks the node arrays and returns the number of classes.
func (t *Tree) validate(nFeatures int) (int, error) {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return 0, errors.New("tree has no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return 0, errors.New("node arrays differ in length")
	}
	classes := len(t.Value[0])
	if classes == 0 {
		return 0, errors.New("node values are empty")
	}
	for i := range n {
		if len(t.Value[i]) != classes {
			return 0, fmt.Errorf("node %d has %d class values, expected %d", i, len(t.Value[i]), classes)
		}
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf && r == leaf {
			continue
		}
		// Children always come after their parent, which also rules out cycles.
		if l <= i || r <= i || l >= n || r >= n {
			return 0, fmt.Errorf("node %d has invalid children (%d, %d)", i, l, r)
		}
		if t.Feature[i] < 0 || (nFeatures > 0 && t.Feature[i] >= nFeatures) {
			return 0, fmt.Errorf("node %d splits on invalid feature %d", i, t.Feature[i])
		}
	}
	return classes, nil
}

func (t *Tree) apply(row prediction.ModelInputRow) int {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if row[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

func (m *TreeEnsemble) FeatureNames() []string {
	return m.FeatureNamesIn
}

// Probabilities returns averaged class probabilities for one row.
func (m *TreeEnsemble) Probabilities(row prediction.ModelInputRow) []float64 {
	proba := make([]float64, m.nClasses)
	for ti := range m.Trees {
		value := m.Trees[ti].Value[m.Trees[ti].apply(row)]
		total := 0.0
		for _, v := range value {
			total += v
		}
		if total == 0 {
			continue
		}
		for c, v := range value {
			proba[c] += v / total
		}
	}
	for c := range proba {
		proba[c] /= float64(len(m.Trees))
	}
	return proba
}

// Predict returns the class with the highest averaged probability; ties go
// to the lower class index.
func (m *TreeEnsemble) Predict(rows []prediction.ModelInputRow) ([]int, error) {
	if m.NFeaturesIn != 0 && m.NFeaturesIn != prediction.NumModelFeatures {
		return nil, fmt.Errorf("X has %d features, but the tree ensemble is expecting %d features as input",
			prediction.NumModelFeatures, m.NFeaturesIn)
	}
	for ti := range m.Trees {
		for i, f := range m.Trees[ti].Feature {
			if m.Trees[ti].ChildrenLeft[i] != leaf && f >= prediction.NumModelFeatures {
				return nil, fmt.Errorf("tree %d splits on feature %d, but rows have %d features", ti, f, prediction.NumModelFeatures)
			}
		}
	}

	out := make([]int, len(rows))
	for i, row := range rows {
		proba := m.Probabilities(row)
		best := 0
		for c := 1; c < len(proba); c++ {
			if proba[c] > proba[best] {
				best = c
			}
		}
		out[i] = m.Classes[best]
	}
	return out, nil
}
