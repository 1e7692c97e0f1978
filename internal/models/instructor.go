package models

import "time"

// Instructor is a teaching profile linked 1:1 to a user account. Courses and
// instructors are joined through course_instructor with an is_lead flag.
type Instructor struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Name           string     `db:"name" json:"name"`
	Email          string     `db:"email" json:"email"`
	Phone          string     `db:"phone" json:"phone"`
	BioEN          string     `db:"bio_en" json:"bio_en"`
	BioBN          *string    `db:"bio_bn" json:"bio_bn,omitempty"`
	Specialization string     `db:"specialization" json:"specialization"`
	ProfileImage   *string    `db:"profile_image" json:"profile_image,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt      *time.Time `db:"deleted_at" json:"-"`
}

// InstructorFilter provides filters for listing instructors.
type InstructorFilter struct {
	Search   string
	Page     int
	PageSize int
}
