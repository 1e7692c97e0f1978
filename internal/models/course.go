package models

import "time"

// CourseStatus represents the lifecycle of a course.
type CourseStatus string

// Possible course statuses.
const (
	CourseStatusUpcoming  CourseStatus = "upcoming"
	CourseStatusActive    CourseStatus = "active"
	CourseStatusCompleted CourseStatus = "completed"
	CourseStatusCanceled  CourseStatus = "canceled"
)

// Course is a scheduled cooking course with a bounded number of seats.
// current_enrollment always equals the count of non-canceled registrations;
// the registration repository maintains that inside its transactions.
type Course struct {
	ID                int64        `db:"id" json:"id"`
	TitleEN           string       `db:"title_en" json:"title_en"`
	TitleBN           *string      `db:"title_bn" json:"title_bn,omitempty"`
	DescriptionEN     string       `db:"description_en" json:"description_en"`
	DescriptionBN     *string      `db:"description_bn" json:"description_bn,omitempty"`
	StartDate         time.Time    `db:"start_date" json:"start_date"`
	EndDate           time.Time    `db:"end_date" json:"end_date"`
	DailyStartTime    string       `db:"daily_start_time" json:"daily_start_time"`
	DailyEndTime      string       `db:"daily_end_time" json:"daily_end_time"`
	LocationDetails   string       `db:"location_details" json:"location_details"`
	MaximumCapacity   int          `db:"maximum_capacity" json:"maximum_capacity"`
	CurrentEnrollment int          `db:"current_enrollment" json:"current_enrollment"`
	Price             float64      `db:"price" json:"price"`
	Status            CourseStatus `db:"status" json:"status"`
	FeaturedImage     *string      `db:"featured_image" json:"featured_image,omitempty"`
	Category          string       `db:"category" json:"category"`
	CreatedAt         time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time    `db:"updated_at" json:"updated_at"`
	DeletedAt         *time.Time   `db:"deleted_at" json:"-"`
}

// AvailableSeats returns the number of free seats on the course.
func (c *Course) AvailableSeats() int {
	return c.MaximumCapacity - c.CurrentEnrollment
}

// IsOpenForRegistration reports whether new registrations are accepted.
func (c *Course) IsOpenForRegistration() bool {
	return c.AvailableSeats() > 0 &&
		(c.Status == CourseStatusUpcoming || c.Status == CourseStatusActive)
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	Status   CourseStatus
	Category string
	SortBy   string
	Page     int
	PageSize int
}

// CourseInstructor is the course-instructor pivot.
type CourseInstructor struct {
	CourseID     int64 `db:"course_id" json:"course_id"`
	InstructorID int64 `db:"instructor_id" json:"instructor_id"`
	IsLead       bool  `db:"is_lead" json:"is_lead"`
}

// CourseRecipe is the course-recipe pivot; day_number marks which day of the
// course the recipe is taught.
type CourseRecipe struct {
	ID        int64 `db:"id" json:"id"`
	CourseID  int64 `db:"course_id" json:"course_id"`
	RecipeID  int64 `db:"recipe_id" json:"recipe_id"`
	DayNumber *int  `db:"day_number" json:"day_number,omitempty"`
}

// CourseAvailability is the public availability snapshot for a course.
type CourseAvailability struct {
	CourseID       int64        `json:"course_id"`
	AvailableSeats int          `json:"available_seats"`
	IsAvailable    bool         `json:"is_available"`
	Status         CourseStatus `json:"status"`
}
