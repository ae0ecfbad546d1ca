package dataset

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"noshow-prediction-api/models"
)

func LoadSQLite(ctx context.Context, path, table string) ([]models.Appointment, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT CAST(mrn AS TEXT), CAST(appt_date AS TEXT), age, clinic,
			total_number_of_cancellations, lead_time, total_number_of_rescheduled,
			total_number_of_noshow, total_number_of_success_appointment,
			hour_of_day, num_of_month
		FROM `+table+`
		ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var records []models.Appointment
	for rows.Next() {
		var (
			rec  models.Appointment
			date string
		)
		if err := rows.Scan(&rec.MRN, &date, &rec.Age, &rec.Clinic,
			&rec.TotalCancellations, &rec.LeadTime, &rec.TotalRescheduled,
			&rec.TotalNoShow, &rec.TotalSuccessAppointments,
			&rec.HourOfDay, &rec.NumOfMonth); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(records)+1, err)
		}
		if rec.ApptDate, err = ParseApptDate(date); err != nil {
			return nil, fmt.Errorf("row %d: appt_date: %w", len(records)+1, err)
		}
		rec.MRN = NormalizeMRN(rec.MRN)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return records, nil
}
