package pipeline

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	numericFeatures = 8
	// NumFeatures is the model input width: the clinic code plus the numeric features.
	NumFeatures = numericFeatures + 1
)

// FeatureNames is the model column order.
var FeatureNames = [NumFeatures]string{
	"AGE",
	"CLINIC",
	"TOTAL_NUMBER_OF_CANCELLATIONS",
	"LEAD_TIME",
	"TOTAL_NUMBER_OF_RESCHEDULED",
	"TOTAL_NUMBER_OF_NOSHOW",
	"TOTAL_NUMBER_OF_SUCCESS_APPOINTMENT",
	"HOUR_OF_DAY",
	"NUM_OF_MONTH",
}

// FeatureMatrix lays out the projection in model column order with clinic
// replaced by its code. It returns nil for an empty projection.
func FeatureMatrix(p Projection, codes []float64) (*mat.Dense, error) {
	if len(codes) != p.Len() {
		return nil, fmt.Errorf("%w: %d clinic codes for %d rows", ErrFeatureShapeMismatch, len(codes), p.Len())
	}
	if p.Len() == 0 {
		return nil, nil
	}

	data := make([]float64, 0, p.Len()*NumFeatures)
	for i, r := range p.Rows {
		data = append(data, r.Numeric[0], codes[i])
		data = append(data, r.Numeric[1:]...)
	}
	return mat.NewDense(p.Len(), NumFeatures, data), nil
}
