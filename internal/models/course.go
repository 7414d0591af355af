package models

import (
	"time"

	"github.com/lib/pq"
)

// CourseStatus represents the catalog lifecycle of a course.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "DRAFT"
	CourseStatusReview    CourseStatus = "REVIEW"
	CourseStatusPublished CourseStatus = "PUBLISHED"
	CourseStatusArchived  CourseStatus = "ARCHIVED"
	CourseStatusRetired   CourseStatus = "RETIRED"
)

// CourseDifficulty grades course content.
type CourseDifficulty string

const (
	DifficultyBeginner     CourseDifficulty = "BEGINNER"
	DifficultyIntermediate CourseDifficulty = "INTERMEDIATE"
	DifficultyAdvanced     CourseDifficulty = "ADVANCED"
	DifficultyExpert       CourseDifficulty = "EXPERT"
)

// Course holds catalog metadata plus cached aggregates derived from lessons.
// LessonsCount, TotalDurationHours, EnrollmentCount and RatingAverage are
// never hand-edited; they are recomputed whenever the underlying records
// change.
type Course struct {
	ID                 string           `db:"id" json:"id"`
	Title              string           `db:"title" json:"title"`
	Slug               string           `db:"slug" json:"slug"`
	Description        string           `db:"description" json:"description"`
	Category           string           `db:"category" json:"category"`
	Subcategory        *string          `db:"subcategory" json:"subcategory,omitempty"`
	Tags               pq.StringArray   `db:"tags" json:"tags"`
	Difficulty         CourseDifficulty `db:"difficulty" json:"difficulty"`
	CoverImageURL      *string          `db:"cover_image_url" json:"cover_image_url,omitempty"`
	Price              float64          `db:"price" json:"price"`
	Currency           string           `db:"currency" json:"currency"`
	CommunityURL       *string          `db:"community_url" json:"community_url,omitempty"`
	Status             CourseStatus     `db:"status" json:"status"`
	PublishedAt        *time.Time       `db:"published_at" json:"published_at,omitempty"`
	RatingAverage      *float64         `db:"rating_average" json:"rating_average,omitempty"`
	EnrollmentCount    int              `db:"enrollment_count" json:"enrollment_count"`
	LessonsCount       int              `db:"lessons_count" json:"lessons_count"`
	TotalDurationHours float64          `db:"total_duration_hours" json:"total_duration_hours"`
	DeletedAt          *time.Time       `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedBy          string           `db:"created_by" json:"created_by"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// Deleted reports whether the course has been soft-deleted.
func (c *Course) Deleted() bool {
	return c.DeletedAt != nil
}

// CourseFilter captures catalog listing criteria.
type CourseFilter struct {
	Category   string
	Difficulty CourseDifficulty
	Status     CourseStatus
	Search     string
	PublicOnly bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
