// Package classifier runs a pre-trained random forest exported from
// scikit-learn. Only inference is supported; the artifact is never modified.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/mat"
)

const leaf = -1

var ErrInvalidArtifact = errors.New("invalid model artifact")

// Tree mirrors the arrays of a fitted sklearn tree_ object. Value holds the
// per-node class weights, flattened to [node][class].
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type Forest struct {
	ModelVersion string   `json:"version"`
	NFeatures    int      `json:"n_features"`
	FeatureNames []string `json:"feature_names,omitempty"`
	Classes      []int    `json:"classes"`
	Trees        []Tree   `json:"trees"`
}

func LoadForest(path string) (*Forest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open model artifact: %w", err)
	}
	defer f.Close()
	return ReadForest(f)
}

func ReadForest(r io.Reader) (*Forest, error) {
	var forest Forest
	if err := json.NewDecoder(r).Decode(&forest); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrInvalidArtifact, err)
	}
	if err := forest.validate(); err != nil {
		return nil, err
	}
	return &forest, nil
}

func (f *Forest) validate() error {
	if f.NFeatures <= 0 {
		return fmt.Errorf("%w: n_features must be positive", ErrInvalidArtifact)
	}
	if len(f.Classes) < 2 {
		return fmt.Errorf("%w: need at least two classes, got %d", ErrInvalidArtifact, len(f.Classes))
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("%w: forest has no trees", ErrInvalidArtifact)
	}
	for i, t := range f.Trees {
		if err := t.validate(f.NFeatures, len(f.Classes)); err != nil {
			return fmt.Errorf("%w: tree %d: %v", ErrInvalidArtifact, i, err)
		}
	}
	return nil
}

func (t Tree) validate(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("no nodes")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for node := 0; node < n; node++ {
		l, r := t.ChildrenLeft[node], t.ChildrenRight[node]
		if len(t.Value[node]) != nClasses {
			return fmt.Errorf("node %d: value has %d classes, want %d", node, len(t.Value[node]), nClasses)
		}
		if l == leaf || r == leaf {
			if l != r {
				return fmt.Errorf("node %d: only one child set", node)
			}
			continue
		}
		if l <= node || l >= n || r <= node || r >= n {
			return fmt.Errorf("node %d: child index out of range", node)
		}
		if t.Feature[node] < 0 || t.Feature[node] >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", node, t.Feature[node])
		}
	}
	return nil
}

func (f *Forest) NumFeatures() int { return f.NFeatures }

func (f *Forest) Version() string { return f.ModelVersion }

// Predict returns one class label per row of X. Like sklearn's
// RandomForestClassifier.predict, the leaf class distributions are averaged
// over all trees and the most probable class wins, ties going to the first.
func (f *Forest) Predict(ctx context.Context, X mat.Matrix) ([]int, error) {
	if X == nil {
		return []int{}, nil
	}
	rows, cols := X.Dims()
	if cols != f.NFeatures {
		return nil, fmt.Errorf("model expects %d features, got %d", f.NFeatures, cols)
	}

	labels := make([]int, rows)
	proba := make([]float64, len(f.Classes))
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		mat.Row(row, i, X)
		for k := range proba {
			proba[k] = 0
		}
		for t := range f.Trees {
			f.Trees[t].accumulate(row, proba)
		}

		best := 0
		for k := 1; k < len(proba); k++ {
			if proba[k] > proba[best] {
				best = k
			}
		}
		labels[i] = f.Classes[best]
	}
	return labels, nil
}

// accumulate adds the normalized class distribution of the leaf reached by x.
// Features are compared at float32 precision, as sklearn does.
func (t *Tree) accumulate(x []float64, proba []float64) {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if float64(float32(x[t.Feature[node]])) <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}

	value := t.Value[node]
	var total float64
	for _, v := range value {
		total += v
	}
	if total == 0 {
		return
	}
	for k, v := range value {
		proba[k] += v / total
	}
}
