package service

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dulcevicio/course-api/internal/models"
)

func intPtr(v int) *int { return &v }

func TestComputeCourseStatsEmpty(t *testing.T) {
	stats := ComputeCourseStats(nil)
	require.Zero(t, stats.LessonsCount)
	require.Zero(t, stats.TotalDurationHours)
}

func TestComputeCourseStatsRoundsToTwoDecimals(t *testing.T) {
	lessons := []models.Lesson{
		{DurationSeconds: intPtr(3600)},
		{DurationSeconds: intPtr(1900)},
	}
	stats := ComputeCourseStats(lessons)
	require.Equal(t, 2, stats.LessonsCount)
	// 5500s = 1.5277... hours
	require.Equal(t, 1.53, stats.TotalDurationHours)
}

func TestComputeCourseStatsNilDurationCountsLesson(t *testing.T) {
	lessons := []models.Lesson{
		{DurationSeconds: intPtr(1800)},
		{DurationSeconds: nil},
	}
	stats := ComputeCourseStats(lessons)
	require.Equal(t, 2, stats.LessonsCount)
	require.Equal(t, 0.5, stats.TotalDurationHours)
}
