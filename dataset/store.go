// Package dataset holds the historical appointment records the predictor
// scores. A Store is built once at startup and never modified afterwards, so
// it can be shared by concurrent requests without locking.
package dataset

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"

	"noshow-prediction-api/models"
)

var (
	ErrInvalidRecord = errors.New("invalid appointment record")
	ErrUnknownSource = errors.New("unknown dataset source")
)

type ClinicCount struct {
	Name         string
	Appointments int
}

type Store struct {
	records     []models.Appointment
	clinics     []ClinicCount
	minDate     time.Time
	maxDate     time.Time
	fingerprint string
}

// NewStore validates records and freezes them in the given order. The caller
// must not modify the slice afterwards.
func NewStore(records []models.Appointment) (*Store, error) {
	counts := make(map[string]int)
	s := &Store{records: records}

	h := xxhash.New()
	var buf [8]byte
	writeFloat := func(f float64) {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(f))
		_, _ = h.Write(buf[:])
	}

	for i, r := range records {
		if err := validate(r); err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidRecord, i+1, err)
		}
		counts[r.Clinic]++

		if i == 0 || r.ApptDate.Before(s.minDate) {
			s.minDate = r.ApptDate
		}
		if i == 0 || r.ApptDate.After(s.maxDate) {
			s.maxDate = r.ApptDate
		}

		_, _ = h.WriteString(r.MRN)
		_, _ = h.WriteString("\x00")
		_, _ = h.WriteString(r.Clinic)
		_, _ = h.WriteString("\x00")
		binary.LittleEndian.PutUint64(buf[:], uint64(r.ApptDate.UnixNano()))
		_, _ = h.Write(buf[:])
		for _, f := range []float64{r.Age, r.TotalCancellations, r.LeadTime, r.TotalRescheduled,
			r.TotalNoShow, r.TotalSuccessAppointments, float64(r.HourOfDay), float64(r.NumOfMonth)} {
			writeFloat(f)
		}
	}

	s.clinics = make([]ClinicCount, 0, len(counts))
	for name, n := range counts {
		s.clinics = append(s.clinics, ClinicCount{Name: name, Appointments: n})
	}
	sort.Slice(s.clinics, func(i, j int) bool { return s.clinics[i].Name < s.clinics[j].Name })

	s.fingerprint = strconv.FormatUint(h.Sum64(), 16)
	return s, nil
}

func validate(r models.Appointment) error {
	switch {
	case r.MRN == "":
		return errors.New("empty MRN")
	case r.Clinic == "":
		return errors.New("empty CLINIC")
	case r.ApptDate.IsZero():
		return errors.New("missing APPT_DATE")
	case r.HourOfDay < 0 || r.HourOfDay > 23:
		return fmt.Errorf("HOUR_OF_DAY %d out of range 0-23", r.HourOfDay)
	case r.NumOfMonth < 1 || r.NumOfMonth > 12:
		return fmt.Errorf("NUM_OF_MONTH %d out of range 1-12", r.NumOfMonth)
	}
	counters := []struct {
		name string
		v    float64
	}{
		{"TOTAL_NUMBER_OF_CANCELLATIONS", r.TotalCancellations},
		{"TOTAL_NUMBER_OF_RESCHEDULED", r.TotalRescheduled},
		{"TOTAL_NUMBER_OF_NOSHOW", r.TotalNoShow},
		{"TOTAL_NUMBER_OF_SUCCESS_APPOINTMENT", r.TotalSuccessAppointments},
	}
	for _, c := range counters {
		if c.v < 0 || math.IsNaN(c.v) {
			return fmt.Errorf("%s must be a non-negative number, got %v", c.name, c.v)
		}
	}
	if math.IsNaN(r.Age) || math.IsNaN(r.LeadTime) {
		return errors.New("AGE and LEAD_TIME must be numbers")
	}
	return nil
}

// Records returns the appointments in load order. The slice is shared and
// must be treated as read-only.
func (s *Store) Records() []models.Appointment { return s.records }

func (s *Store) Len() int { return len(s.records) }

// Clinics returns the distinct clinic names, sorted, with their appointment counts.
func (s *Store) Clinics() []ClinicCount {
	out := make([]ClinicCount, len(s.clinics))
	copy(out, s.clinics)
	return out
}

// Bounds reports the earliest and latest appointment dates. ok is false for
// an empty store.
func (s *Store) Bounds() (minDate, maxDate time.Time, ok bool) {
	if len(s.records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.minDate, s.maxDate, true
}

func (s *Store) Fingerprint() string { return s.fingerprint }
