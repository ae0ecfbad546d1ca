package pipeline

import (
	"fmt"
	"time"

	"noshow-prediction-api/models"
)

// TimestampLayout is the only accepted request timestamp format, and also the
// format appointment dates are rendered in.
const TimestampLayout = "2006-01-02 15:04:05"

// Window is a parsed prediction request. Both bounds are inclusive; an empty
// Clinics means every clinic.
type Window struct {
	Start   time.Time
	End     time.Time
	Clinics []string
}

func ParseRequest(req models.PredictionRequest) (Window, error) {
	start, err := time.Parse(TimestampLayout, req.StartDatetime)
	if err != nil {
		return Window{}, fmt.Errorf("%w: start_datetime %q, want YYYY-MM-DD HH:MM:SS", ErrMalformedTimestamp, req.StartDatetime)
	}
	end, err := time.Parse(TimestampLayout, req.EndDatetime)
	if err != nil {
		return Window{}, fmt.Errorf("%w: end_datetime %q, want YYYY-MM-DD HH:MM:SS", ErrMalformedTimestamp, req.EndDatetime)
	}
	if start.After(end) {
		return Window{}, ErrInvalidWindow
	}

	var clinics []string
	seen := make(map[string]struct{}, len(req.ClinicSelector))
	for _, c := range req.ClinicSelector {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		clinics = append(clinics, c)
	}
	return Window{Start: start, End: end, Clinics: clinics}, nil
}
