package dataset

import (
	"context"
	"database/sql"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"noshow-prediction-api/config"
	"noshow-prediction-api/models"
)

func record(mrn, clinic string, date time.Time) models.Appointment {
	return models.Appointment{
		MRN:                      mrn,
		ApptDate:                 date,
		Age:                      8,
		Clinic:                   clinic,
		LeadTime:                 30,
		TotalSuccessAppointments: 2,
		HourOfDay:                date.Hour(),
		NumOfMonth:               int(date.Month()),
	}
}

func TestNewStore(t *testing.T) {
	jan1 := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	jan9 := time.Date(2024, 1, 9, 14, 0, 0, 0, time.UTC)
	records := []models.Appointment{
		record("2", "PEDIATRICS", jan9),
		record("1", "CARDIOLOGY", jan1),
		record("3", "PEDIATRICS", jan1),
	}

	s, err := NewStore(records)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, "2", s.Records()[0].MRN, "load order is kept")

	minDate, maxDate, ok := s.Bounds()
	require.True(t, ok)
	assert.Equal(t, jan1, minDate)
	assert.Equal(t, jan9, maxDate)

	assert.Equal(t, []ClinicCount{{"CARDIOLOGY", 1}, {"PEDIATRICS", 2}}, s.Clinics())
	s.Clinics()[0].Name = "changed"
	assert.Equal(t, "CARDIOLOGY", s.Clinics()[0].Name)

	assert.NotEmpty(t, s.Fingerprint())
}

func TestStoreFingerprint(t *testing.T) {
	date := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	a, err := NewStore([]models.Appointment{record("1", "A", date)})
	require.NoError(t, err)
	b, err := NewStore([]models.Appointment{record("1", "A", date)})
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	changed := record("1", "A", date)
	changed.TotalNoShow = 1
	c, err := NewStore([]models.Appointment{changed})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	d, err := NewStore([]models.Appointment{record("1", "A", date.Add(time.Nanosecond))})
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint(), "sub-microsecond date change")
}

func TestEmptyStore(t *testing.T) {
	s, err := NewStore(nil)
	require.NoError(t, err)
	_, _, ok := s.Bounds()
	assert.False(t, ok)
	assert.Empty(t, s.Clinics())
}

func TestNewStoreRejectsInvalidRecords(t *testing.T) {
	date := time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		mutate func(*models.Appointment)
	}{
		{"empty mrn", func(a *models.Appointment) { a.MRN = "" }},
		{"empty clinic", func(a *models.Appointment) { a.Clinic = "" }},
		{"missing date", func(a *models.Appointment) { a.ApptDate = time.Time{} }},
		{"hour out of range", func(a *models.Appointment) { a.HourOfDay = 24 }},
		{"month out of range", func(a *models.Appointment) { a.NumOfMonth = 0 }},
		{"negative counter", func(a *models.Appointment) { a.TotalNoShow = -1 }},
		{"nan age", func(a *models.Appointment) { a.Age = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := record("1", "A", date)
			tt.mutate(&r)
			_, err := NewStore([]models.Appointment{record("0", "A", date), r})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
			assert.Contains(t, err.Error(), "row 2")
		})
	}
}

const sampleCSV = "\ufeffMRN,APPT_DATE,AGE,CLINIC,TOTAL_NUMBER_OF_CANCELLATIONS,LEAD_TIME," +
	"TOTAL_NUMBER_OF_RESCHEDULED,TOTAL_NUMBER_OF_NOSHOW,TOTAL_NUMBER_OF_SUCCESS_APPOINTMENT," +
	"HOUR_OF_DAY,NUM_OF_MONTH,IS_NOSHOW\n" +
	"1001.0,2024-01-05 08:30:00,7,ARCADIA CARE CENTER,1,12,0,2,5,8,1,1\n" +
	"1002,1/9/2024 14:00,12.5,PEDIATRICS,0,3,1,0,9,14.0,1,0\n"

func TestReadCSV(t *testing.T) {
	records, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "1001", first.MRN)
	assert.Equal(t, time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC), first.ApptDate)
	assert.Equal(t, "ARCADIA CARE CENTER", first.Clinic)
	assert.Equal(t, 7.0, first.Age)
	assert.Equal(t, 2.0, first.TotalNoShow)
	assert.Equal(t, 8, first.HourOfDay)

	second := records[1]
	assert.Equal(t, time.Date(2024, 1, 9, 14, 0, 0, 0, time.UTC), second.ApptDate)
	assert.Equal(t, 12.5, second.Age)
	assert.Equal(t, 14, second.HourOfDay)
}

func TestReadCSVErrors(t *testing.T) {
	header := "MRN,APPT_DATE,AGE,CLINIC,TOTAL_NUMBER_OF_CANCELLATIONS,LEAD_TIME," +
		"TOTAL_NUMBER_OF_RESCHEDULED,TOTAL_NUMBER_OF_NOSHOW,TOTAL_NUMBER_OF_SUCCESS_APPOINTMENT," +
		"HOUR_OF_DAY,NUM_OF_MONTH\n"
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "missing header"},
		{"missing column", "MRN,APPT_DATE\n1,2024-01-01\n", "missing required column AGE"},
		{"bad date", header + "1,tomorrow,1,A,0,0,0,0,0,1,1\n", "line 2"},
		{"bad number", header + "1,2024-01-01,x,A,0,0,0,0,0,1,1\n", "AGE"},
		{"fractional hour", header + "1,2024-01-01,1,A,0,0,0,0,0,1.5,1\n", "HOUR_OF_DAY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseApptDate(t *testing.T) {
	want := time.Date(2024, 3, 7, 9, 15, 0, 0, time.UTC)
	for _, v := range []string{
		"2024-03-07 09:15:00",
		"2024-03-07T09:15:00",
		"2024-03-07 09:15",
		"3/7/2024 09:15:00",
		"3/7/2024 9:15",
		"2024-03-07T10:15:00+01:00",
		"2024-03-07 09:15:00+00:00",
		"2024-03-07 04:15:00-05:00",
		"2024-03-07 09:15:00Z",
	} {
		got, err := ParseApptDate(v)
		require.NoError(t, err, v)
		assert.True(t, want.Equal(got), v)
		assert.Equal(t, time.UTC, got.Location(), v)
	}

	_, err := ParseApptDate("07.03.2024")
	assert.Error(t, err)
}

func TestNormalizeMRN(t *testing.T) {
	tests := map[string]string{
		"1001.0":  "1001",
		" 1001 ":  "1001",
		"1001.00": "1001",
		"1001.5":  "1001.5",
		"A12.0":   "A12.0",
		".0":      ".0",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeMRN(in), in)
	}
}

func TestLoadCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	s, err := Load(context.Background(), config.DatasetConfig{Source: SourceCSV, Path: path}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	_, err = Load(context.Background(), config.DatasetConfig{Source: "parquet"}, nil)
	assert.ErrorIs(t, err, ErrUnknownSource)

	_, err = Load(context.Background(), config.DatasetConfig{Source: SourcePostgres, Table: "appointments"}, nil)
	assert.Error(t, err)
}

func TestLoadSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE appts (
		mrn INTEGER, appt_date TEXT, age REAL, clinic TEXT,
		total_number_of_cancellations REAL, lead_time REAL, total_number_of_rescheduled REAL,
		total_number_of_noshow REAL, total_number_of_success_appointment REAL,
		hour_of_day INTEGER, num_of_month INTEGER)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO appts VALUES
		(2002, '2024-01-09 14:00:00', 4, 'PEDIATRICS', 0, 3, 1, 0, 9, 14, 1),
		(2001, '2024-01-05 08:30:00', 7, 'CARDIOLOGY', 1, 12, 0, 2, 5, 8, 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	records, err := LoadSQLite(context.Background(), path, "appts")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2002", records[0].MRN, "insertion order")
	assert.Equal(t, "CARDIOLOGY", records[1].Clinic)
	assert.Equal(t, 2.0, records[1].TotalNoShow)
	assert.Equal(t, time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC), records[1].ApptDate)

	_, err = LoadSQLite(context.Background(), path, "appts; DROP TABLE appts")
	assert.Error(t, err)

	s, err := Load(context.Background(), config.DatasetConfig{Source: SourceSQLite, Path: path, Table: "appts"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())
}

func TestLoadSQLiteDatetimeColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appointments.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE appts (
		mrn INTEGER, appt_date DATETIME, age REAL, clinic TEXT,
		total_number_of_cancellations REAL, lead_time REAL, total_number_of_rescheduled REAL,
		total_number_of_noshow REAL, total_number_of_success_appointment REAL,
		hour_of_day INTEGER, num_of_month INTEGER)`)
	require.NoError(t, err)

	date := time.Date(2024, 1, 9, 14, 0, 0, 0, time.FixedZone("EST", -5*3600))
	_, err = db.Exec(`INSERT INTO appts VALUES (?, ?, 4, 'PEDIATRICS', 0, 3, 1, 0, 9, 14, 1)`, 2002, date)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO appts VALUES (2003, '2024-01-10 08:00:00+00:00', 5, 'CARDIOLOGY', 0, 3, 1, 0, 9, 8, 1)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	records, err := LoadSQLite(context.Background(), path, "appts")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, time.Date(2024, 1, 9, 19, 0, 0, 0, time.UTC), records[0].ApptDate)
	assert.Equal(t, time.UTC, records[0].ApptDate.Location())
	assert.Equal(t, time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC), records[1].ApptDate)
}
