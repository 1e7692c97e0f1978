package models

import "time"

// AttendanceRecord marks a student present or absent on one course day.
// Unique per (registration, date).
type AttendanceRecord struct {
	ID             int64     `db:"id" json:"id"`
	RegistrationID int64     `db:"registration_id" json:"registration_id"`
	Date           time.Time `db:"date" json:"date"`
	Present        bool      `db:"present" json:"present"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// RegistrationAttendance groups a registration's attendance for listings.
type RegistrationAttendance struct {
	RegistrationID int64              `json:"registration_id"`
	StudentID      int64              `json:"student_id"`
	StudentName    string             `json:"student_name"`
	Records        []AttendanceRecord `json:"attendance_records"`
}
