package models

import "time"

type Clinic struct {
	Name         string `json:"name"`
	DisplayName  string `json:"display_name"`
	Appointments int    `json:"appointments"`
}

type DatasetRange struct {
	Start       *time.Time `json:"start"`
	End         *time.Time `json:"end"`
	Records     int        `json:"records"`
	Fingerprint string     `json:"fingerprint"`
}
