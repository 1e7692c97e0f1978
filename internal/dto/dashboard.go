package dto

// CourseStats counts courses per lifecycle status.
type CourseStats struct {
	Total     int `db:"total" json:"total"`
	Upcoming  int `db:"upcoming" json:"upcoming"`
	Active    int `db:"active" json:"active"`
	Completed int `db:"completed" json:"completed"`
	Canceled  int `db:"canceled" json:"canceled"`
}

// StudentStats counts students overall and for the current month.
type StudentStats struct {
	Total        int `db:"total" json:"total"`
	NewThisMonth int `db:"new_this_month" json:"new_this_month"`
}

// RegistrationStats counts registrations per payment status.
type RegistrationStats struct {
	Total          int `db:"total" json:"total"`
	PendingPayment int `db:"pending_payment" json:"pending_payment"`
	Completed      int `db:"completed" json:"completed"`
}

// PaymentStats counts payments per verification status and sums the
// verified amount.
type PaymentStats struct {
	TotalAmount         float64 `db:"total_amount" json:"total_amount"`
	PendingVerification int     `db:"pending_verification" json:"pending_verification"`
	Verified            int     `db:"verified" json:"verified"`
	Rejected            int     `db:"rejected" json:"rejected"`
}

// CertificateStats counts issued certificates.
type CertificateStats struct {
	TotalIssued int `db:"total_issued" json:"total_issued"`
}

// DashboardStats is the admin dashboard rollup.
type DashboardStats struct {
	Courses       CourseStats       `json:"courses"`
	Students      StudentStats      `json:"students"`
	Registrations RegistrationStats `json:"registrations"`
	Payments      PaymentStats      `json:"payments"`
	Certificates  CertificateStats  `json:"certificates"`
}
