package models

// Capability is a named permission granted to a role. Authorization checks
// are set-membership tests against the acting user's resolved capability set.
type Capability string

const (
	CapCoursesView    Capability = "courses:view"
	CapCoursesCreate  Capability = "courses:create"
	CapCoursesEdit    Capability = "courses:edit"
	CapCoursesDelete  Capability = "courses:delete"
	CapCoursesPublish Capability = "courses:publish"
	CapCoursesCancel  Capability = "courses:cancel"

	CapRecipesView   Capability = "recipes:view"
	CapRecipesCreate Capability = "recipes:create"
	CapRecipesEdit   Capability = "recipes:edit"
	CapRecipesDelete Capability = "recipes:delete"

	CapStudentsView   Capability = "students:view"
	CapStudentsCreate Capability = "students:create"
	CapStudentsEdit   Capability = "students:edit"
	CapStudentsDelete Capability = "students:delete"

	CapInstructorsView   Capability = "instructors:view"
	CapInstructorsCreate Capability = "instructors:create"
	CapInstructorsEdit   Capability = "instructors:edit"
	CapInstructorsDelete Capability = "instructors:delete"

	CapRegistrationsCreate Capability = "registrations:create"
	CapRegistrationsVerify Capability = "registrations:verify"
	CapRegistrationsCancel Capability = "registrations:cancel"

	CapPaymentsCreate Capability = "payments:create"
	CapPaymentsView   Capability = "payments:view"
	CapPaymentsVerify Capability = "payments:verify"
	CapPaymentsReport Capability = "payments:report"

	CapCertificatesGenerate Capability = "certificates:generate"
	CapCertificatesView     Capability = "certificates:view"

	CapDashboardView Capability = "dashboard:view"
)

// rolePolicy maps each role to the capabilities it grants. The super-admin
// entry is filled in at init time with every capability defined above.
var rolePolicy = map[UserRole][]Capability{
	RoleAdmin: {
		CapCoursesView, CapCoursesCreate, CapCoursesEdit, CapCoursesPublish, CapCoursesCancel,
		CapRecipesView, CapRecipesCreate, CapRecipesEdit,
		CapStudentsView, CapStudentsCreate, CapStudentsEdit,
		CapInstructorsView, CapInstructorsCreate, CapInstructorsEdit,
		CapRegistrationsVerify,
		CapPaymentsView, CapPaymentsVerify, CapPaymentsReport,
		CapCertificatesGenerate, CapCertificatesView,
		CapDashboardView,
	},
	RoleCourseAdmin: {
		CapCoursesView, CapCoursesCreate, CapCoursesEdit, CapCoursesPublish, CapCoursesCancel,
		CapRecipesView, CapRecipesCreate, CapRecipesEdit,
		CapStudentsView,
		CapInstructorsView,
		CapRegistrationsVerify,
		CapPaymentsView, CapPaymentsVerify,
		CapCertificatesGenerate, CapCertificatesView,
		CapDashboardView,
	},
	RoleInstructor: {
		CapCoursesView,
		CapRecipesView, CapRecipesCreate, CapRecipesEdit,
		CapStudentsView,
	},
	RoleStudent: {
		CapCoursesView,
		CapRecipesView,
		CapPaymentsCreate,
	},
}

var allCapabilities = []Capability{
	CapCoursesView, CapCoursesCreate, CapCoursesEdit, CapCoursesDelete, CapCoursesPublish, CapCoursesCancel,
	CapRecipesView, CapRecipesCreate, CapRecipesEdit, CapRecipesDelete,
	CapStudentsView, CapStudentsCreate, CapStudentsEdit, CapStudentsDelete,
	CapInstructorsView, CapInstructorsCreate, CapInstructorsEdit, CapInstructorsDelete,
	CapRegistrationsCreate, CapRegistrationsVerify, CapRegistrationsCancel,
	CapPaymentsCreate, CapPaymentsView, CapPaymentsVerify, CapPaymentsReport,
	CapCertificatesGenerate, CapCertificatesView,
	CapDashboardView,
}

func init() {
	rolePolicy[RoleSuperAdmin] = allCapabilities
}

// Capabilities resolves the capability set granted to the role.
func (r UserRole) Capabilities() map[Capability]struct{} {
	caps := rolePolicy[r]
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

// Can reports whether the role grants the capability.
func (r UserRole) Can(c Capability) bool {
	for _, granted := range rolePolicy[r] {
		if granted == c {
			return true
		}
	}
	return false
}
