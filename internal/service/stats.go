package service

import (
	"math"

	"github.com/dulcevicio/course-api/internal/models"
)

// CourseStats holds the lesson-derived aggregates cached on a course.
type CourseStats struct {
	LessonsCount       int
	TotalDurationHours float64
}

// ComputeCourseStats recomputes the aggregates from the full lesson set.
// Lessons without a duration count toward lessons_count but contribute zero
// hours. The total is rounded to two decimals.
func ComputeCourseStats(lessons []models.Lesson) CourseStats {
	totalSeconds := 0
	for _, lesson := range lessons {
		if lesson.DurationSeconds != nil {
			totalSeconds += *lesson.DurationSeconds
		}
	}
	hours := math.Round(float64(totalSeconds)/3600*100) / 100
	return CourseStats{LessonsCount: len(lessons), TotalDurationHours: hours}
}
