package models

import "time"

// PredictionRequest is the body of POST /process/.
type PredictionRequest struct {
	StartDatetime  string   `json:"start_datetime"`
	EndDatetime    string   `json:"end_datetime"`
	ClinicSelector []string `json:"clinic_selector"`
}

const (
	NoShowYes = "YES"
	NoShowNo  = "NO"
)

type Recommendation string

const (
	DoubleBook     Recommendation = "DOUBLE_BOOK"
	DontDoubleBook Recommendation = "DONT_DOUBLE_BOOK"
)

// Label is the display text used in the result table.
func (r Recommendation) Label() string {
	if r == DoubleBook {
		return "DOUBLE-BOOK"
	}
	return "DON'T DOUBLE-BOOK"
}

type PredictionResult struct {
	MRN             string         `json:"mrn"`
	AppointmentDate time.Time      `json:"appointment_date"`
	Clinic          string         `json:"clinic"`
	NoShow          string         `json:"no_show"`
	Recommendation  Recommendation `json:"recommendation"`
}

// ResultSet is ordered by AppointmentDate ascending.
type ResultSet []PredictionResult

// ResultRow is the display form of a PredictionResult.
type ResultRow struct {
	MRN             string `json:"MRN"`
	AppointmentDate string `json:"APPOINTMENT DATE"`
	Clinic          string `json:"CLINIC"`
	NoShow          string `json:"NO SHOW (Y/N)"`
	Recommendation  string `json:"RECOMMENDATION"`
}

type Summary struct {
	Total   int `json:"total"`
	NoShows int `json:"no_shows"`
	Shows   int `json:"shows"`
}

type PredictionResponse struct {
	FinalDF      string  `json:"final_df"`
	RunID        string  `json:"run_id"`
	Summary      Summary `json:"summary"`
	Encoder      string  `json:"encoder"`
	ModelVersion string  `json:"model_version"`
}
