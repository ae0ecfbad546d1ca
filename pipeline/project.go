package pipeline

import (
	"time"

	"noshow-prediction-api/dataset"
)

// Identity is carried alongside each feature row so predictions can be joined
// back to the appointment they belong to.
type Identity struct {
	MRN      string
	ApptDate time.Time
}

// Row is one filtered appointment in model shape. Clinic is still the raw
// string; Numeric holds the remaining features in model column order
// without the clinic column.
type Row struct {
	Identity
	Clinic  string
	Numeric [numericFeatures]float64
}

type Projection struct {
	Rows []Row
}

func (p Projection) Len() int { return len(p.Rows) }

func (p Projection) Identities() []Identity {
	out := make([]Identity, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.Identity
	}
	return out
}

func (p Projection) Clinics() []string {
	out := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.Clinic
	}
	return out
}

// Project keeps appointments with start <= date <= end and, when clinics is
// non-empty, an exact clinic match. Dataset order is preserved.
func Project(store *dataset.Store, start, end time.Time, clinics []string) Projection {
	var allowed map[string]struct{}
	if len(clinics) > 0 {
		allowed = make(map[string]struct{}, len(clinics))
		for _, c := range clinics {
			allowed[c] = struct{}{}
		}
	}

	var rows []Row
	for _, a := range store.Records() {
		if a.ApptDate.Before(start) || a.ApptDate.After(end) {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[a.Clinic]; !ok {
				continue
			}
		}
		rows = append(rows, Row{
			Identity: Identity{MRN: a.MRN, ApptDate: a.ApptDate},
			Clinic:   a.Clinic,
			Numeric: [numericFeatures]float64{
				a.Age,
				a.TotalCancellations,
				a.LeadTime,
				a.TotalRescheduled,
				a.TotalNoShow,
				a.TotalSuccessAppointments,
				float64(a.HourOfDay),
				float64(a.NumOfMonth),
			},
		})
	}
	return Projection{Rows: rows}
}
