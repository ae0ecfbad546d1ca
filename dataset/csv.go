package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"noshow-prediction-api/models"
)

const (
	colMRN           = "MRN"
	colApptDate      = "APPT_DATE"
	colAge           = "AGE"
	colClinic        = "CLINIC"
	colCancellations = "TOTAL_NUMBER_OF_CANCELLATIONS"
	colLeadTime      = "LEAD_TIME"
	colRescheduled   = "TOTAL_NUMBER_OF_RESCHEDULED"
	colNoShow        = "TOTAL_NUMBER_OF_NOSHOW"
	colSuccess       = "TOTAL_NUMBER_OF_SUCCESS_APPOINTMENT"
	colHourOfDay     = "HOUR_OF_DAY"
	colNumOfMonth    = "NUM_OF_MONTH"
)

var requiredColumns = []string{
	colMRN, colApptDate, colAge, colClinic, colCancellations, colLeadTime,
	colRescheduled, colNoShow, colSuccess, colHourOfDay, colNumOfMonth,
}

var dateLayouts = []string{
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// ParseApptDate accepts the date layouts found in exported appointment data.
// Values without a zone are read as UTC.
func ParseApptDate(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", v)
}

func LoadCSV(path string) ([]models.Appointment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses the appointment export. Columns are matched by header name,
// case-insensitively; columns the model does not use are ignored.
func ReadCSV(r io.Reader) ([]models.Appointment, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("dataset is empty: missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("dataset missing required column %s", col)
		}
	}

	var records []models.Appointment
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		rec, err := parseRow(func(col string) string { return row[index[col]] })
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(get func(col string) string) (models.Appointment, error) {
	var (
		rec models.Appointment
		err error
	)
	rec.MRN = NormalizeMRN(get(colMRN))
	rec.Clinic = strings.TrimSpace(get(colClinic))

	if rec.ApptDate, err = ParseApptDate(get(colApptDate)); err != nil {
		return rec, fmt.Errorf("%s: %w", colApptDate, err)
	}

	floats := []struct {
		col string
		dst *float64
	}{
		{colAge, &rec.Age},
		{colCancellations, &rec.TotalCancellations},
		{colLeadTime, &rec.LeadTime},
		{colRescheduled, &rec.TotalRescheduled},
		{colNoShow, &rec.TotalNoShow},
		{colSuccess, &rec.TotalSuccessAppointments},
	}
	for _, f := range floats {
		if *f.dst, err = parseFloat(get(f.col)); err != nil {
			return rec, fmt.Errorf("%s: %w", f.col, err)
		}
	}

	if rec.HourOfDay, err = parseWhole(get(colHourOfDay)); err != nil {
		return rec, fmt.Errorf("%s: %w", colHourOfDay, err)
	}
	if rec.NumOfMonth, err = parseWhole(get(colNumOfMonth)); err != nil {
		return rec, fmt.Errorf("%s: %w", colNumOfMonth, err)
	}
	return rec, nil
}

func parseFloat(v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", v)
	}
	return f, nil
}

func parseWhole(v string) (int, error) {
	f, err := parseFloat(v)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not a whole number: %q", v)
	}
	return int(f), nil
}

// NormalizeMRN trims the identifier and drops a trailing ".0" that spreadsheet
// exports add to numeric MRNs.
func NormalizeMRN(v string) string {
	v = strings.TrimSpace(v)
	if i := strings.IndexByte(v, '.'); i > 0 && strings.Trim(v[i+1:], "0") == "" {
		if _, err := strconv.ParseUint(v[:i], 10, 64); err == nil {
			return v[:i]
		}
	}
	return v
}
