package dataset

import (
	"context"
	"fmt"
	"regexp"

	"gorm.io/gorm"

	"noshow-prediction-api/models"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// LoadPostgres reads the appointment table through gorm. MRN is cast to text
// so numeric identifier columns load the same way as CSV exports.
func LoadPostgres(ctx context.Context, db *gorm.DB, table string) ([]models.Appointment, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	var records []models.Appointment
	err := db.WithContext(ctx).
		Table(table).
		Select(`mrn::text AS mrn, appt_date, age::float8 AS age, clinic,
			total_number_of_cancellations::float8 AS total_number_of_cancellations,
			lead_time::float8 AS lead_time,
			total_number_of_rescheduled::float8 AS total_number_of_rescheduled,
			total_number_of_noshow::float8 AS total_number_of_noshow,
			total_number_of_success_appointment::float8 AS total_number_of_success_appointment,
			hour_of_day::int AS hour_of_day, num_of_month::int AS num_of_month`).
		Order("appt_date, mrn").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}

	for i := range records {
		records[i].MRN = NormalizeMRN(records[i].MRN)
		records[i].ApptDate = records[i].ApptDate.UTC()
	}
	return records, nil
}
