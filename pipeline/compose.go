package pipeline

import (
	"fmt"
	"sort"

	"noshow-prediction-api/models"
)

// NoShowLabel maps a model label to the YES/NO column value.
func NoShowLabel(label int) (string, error) {
	switch label {
	case 1:
		return models.NoShowYes, nil
	case 0:
		return models.NoShowNo, nil
	}
	return "", fmt.Errorf("%w: label %d is not binary", ErrFeatureShapeMismatch, label)
}

// RecommendationFor is DoubleBook exactly when the no-show value is YES.
func RecommendationFor(noShow string) models.Recommendation {
	if noShow == models.NoShowYes {
		return models.DoubleBook
	}
	return models.DontDoubleBook
}

// Compose joins labels back to their appointments and orders the result by
// appointment date. The sort is stable, so appointments at the same time keep
// dataset order.
func Compose(ids []Identity, clinics []string, labels []int) (models.ResultSet, error) {
	if len(ids) != len(labels) || len(clinics) != len(labels) {
		return nil, fmt.Errorf("%w: %d identities, %d clinics, %d labels",
			ErrFeatureShapeMismatch, len(ids), len(clinics), len(labels))
	}

	rs := make(models.ResultSet, len(labels))
	for i, l := range labels {
		noShow, err := NoShowLabel(l)
		if err != nil {
			return nil, err
		}
		rs[i] = models.PredictionResult{
			MRN:             ids[i].MRN,
			AppointmentDate: ids[i].ApptDate,
			Clinic:          clinics[i],
			NoShow:          noShow,
			Recommendation:  RecommendationFor(noShow),
		}
	}

	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].AppointmentDate.Before(rs[j].AppointmentDate)
	})
	return rs, nil
}

func Summarize(rs models.ResultSet) models.Summary {
	s := models.Summary{Total: len(rs)}
	for _, r := range rs {
		if r.NoShow == models.NoShowYes {
			s.NoShows++
		}
	}
	s.Shows = s.Total - s.NoShows
	return s
}
