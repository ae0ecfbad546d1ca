package models

import "time"

// Appointment is one row of the historical appointment dataset.
type Appointment struct {
	MRN                      string    `gorm:"column:mrn" json:"mrn"`
	ApptDate                 time.Time `gorm:"column:appt_date" json:"appt_date"`
	Age                      float64   `gorm:"column:age" json:"age"`
	Clinic                   string    `gorm:"column:clinic" json:"clinic"`
	TotalCancellations       float64   `gorm:"column:total_number_of_cancellations" json:"total_cancellations"`
	LeadTime                 float64   `gorm:"column:lead_time" json:"lead_time"`
	TotalRescheduled         float64   `gorm:"column:total_number_of_rescheduled" json:"total_rescheduled"`
	TotalNoShow              float64   `gorm:"column:total_number_of_noshow" json:"total_noshow"`
	TotalSuccessAppointments float64   `gorm:"column:total_number_of_success_appointment" json:"total_success_appointments"`
	HourOfDay                int       `gorm:"column:hour_of_day" json:"hour_of_day"`
	NumOfMonth               int       `gorm:"column:num_of_month" json:"num_of_month"`
}

func (Appointment) TableName() string { return "appointments" }
