package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. EXPIRED is assigned lazily: access checks
// compare expires_at against the clock instead of relying on a scheduled
// transition, so an ACTIVE row past its expiry is already treated as expired.
const (
	EnrollmentStatusActive    EnrollmentStatus = "ACTIVE"
	EnrollmentStatusExpired   EnrollmentStatus = "EXPIRED"
	EnrollmentStatusCancelled EnrollmentStatus = "CANCELLED"
)

// DefaultEnrollmentDays is the access window granted on enrollment.
const DefaultEnrollmentDays = 365

// Enrollment is a time-bounded grant of access from one user to one course.
type Enrollment struct {
	ID                       string           `db:"id" json:"id"`
	UserID                   string           `db:"user_id" json:"user_id"`
	CourseID                 string           `db:"course_id" json:"course_id"`
	Status                   EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt               time.Time        `db:"enrolled_at" json:"enrolled_at"`
	ExpiresAt                time.Time        `db:"expires_at" json:"expires_at"`
	LastAccessedLessonID     *string          `db:"last_accessed_lesson_id" json:"last_accessed_lesson_id,omitempty"`
	LastVideoPositionSeconds *int             `db:"last_video_position_seconds" json:"last_video_position_seconds,omitempty"`
	LastAccessedAt           *time.Time       `db:"last_accessed_at" json:"last_accessed_at,omitempty"`
	CompletedAt              *time.Time       `db:"completed_at" json:"completed_at,omitempty"`
	CertificateURL           *string          `db:"certificate_url" json:"certificate_url,omitempty"`
	Notes                    *string          `db:"notes" json:"notes,omitempty"`
	CreatedBy                string           `db:"created_by" json:"created_by"`
	UpdatedBy                *string          `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt                time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time        `db:"updated_at" json:"updated_at"`
}

// IsActiveAt reports whether the enrollment grants access at the given
// instant: status must be ACTIVE and the instant strictly before expires_at.
func (e *Enrollment) IsActiveAt(now time.Time) bool {
	return e.Status == EnrollmentStatusActive && now.Before(e.ExpiresAt)
}

// RemainingDays returns whole days of access left (negative once expired).
func (e *Enrollment) RemainingDays(now time.Time) int {
	return int(e.ExpiresAt.Sub(now).Hours() / 24)
}

// EnrollmentDetail enriches Enrollment with user and course info.
type EnrollmentDetail struct {
	Enrollment
	UserName    string `db:"user_name" json:"user_name"`
	UserEmail   string `db:"user_email" json:"user_email"`
	CourseTitle string `db:"course_title" json:"course_title"`
	CourseSlug  string `db:"course_slug" json:"course_slug"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	UserID    string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
