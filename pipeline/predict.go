package pipeline

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Classifier is a pre-trained binary model. Predict returns one label per row
// of X, each 0 or 1.
type Classifier interface {
	NumFeatures() int
	Version() string
	Predict(ctx context.Context, X mat.Matrix) ([]int, error)
}

// ModelProvider hands out the shared classifier, loading it if needed.
type ModelProvider interface {
	Model(ctx context.Context) (Classifier, error)
}

type ModelFunc func(ctx context.Context) (Classifier, error)

func (f ModelFunc) Model(ctx context.Context) (Classifier, error) { return f(ctx) }

// StaticModel serves an already constructed classifier.
func StaticModel(c Classifier) ModelProvider {
	return ModelFunc(func(context.Context) (Classifier, error) { return c, nil })
}

// Predict runs the classifier once over X. A nil X (no rows) yields no labels
// without calling the model.
func Predict(ctx context.Context, clf Classifier, X *mat.Dense) ([]int, error) {
	if X == nil {
		return []int{}, nil
	}
	rows, cols := X.Dims()
	if cols != clf.NumFeatures() {
		return nil, fmt.Errorf("%w: rows have %d features, model %s expects %d",
			ErrFeatureShapeMismatch, cols, clf.Version(), clf.NumFeatures())
	}

	labels, err := clf.Predict(ctx, X)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrFeatureShapeMismatch, err)
	}
	if len(labels) != rows {
		return nil, fmt.Errorf("%w: model returned %d labels for %d rows", ErrFeatureShapeMismatch, len(labels), rows)
	}
	for i, l := range labels {
		if l != 0 && l != 1 {
			return nil, fmt.Errorf("%w: row %d: label %d is not binary", ErrFeatureShapeMismatch, i, l)
		}
	}
	return labels, nil
}
