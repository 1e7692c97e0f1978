package models

import "time"

// Student is the culinary-school profile linked 1:1 to a user account.
type Student struct {
	ID               int64      `db:"id" json:"id"`
	UserID           int64      `db:"user_id" json:"user_id"`
	Name             string     `db:"name" json:"name"`
	Email            string     `db:"email" json:"email"`
	Phone            string     `db:"phone" json:"phone"`
	Address          *string    `db:"address" json:"address,omitempty"`
	ProfileImage     *string    `db:"profile_image" json:"profile_image,omitempty"`
	RegistrationDate time.Time  `db:"registration_date" json:"registration_date"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
	DeletedAt        *time.Time `db:"deleted_at" json:"-"`
}

// StudentFilter provides filters for listing students.
type StudentFilter struct {
	Search   string
	Page     int
	PageSize int
}
