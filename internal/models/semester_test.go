package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSemesterInSession(t *testing.T) {
	start := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	due := time.Date(2025, 12, 18, 0, 0, 0, 0, time.UTC)

	s := &Semester{ClassesStart: start, GradesDue: &due}
	require.False(t, s.InSession(start.Add(-24*time.Hour)))
	require.True(t, s.InSession(start))
	require.True(t, s.InSession(start.AddDate(0, 2, 0)))
	require.True(t, s.InSession(due))
	require.False(t, s.InSession(due.Add(time.Hour)))
}

func TestSemesterInSessionWithoutGradesDue(t *testing.T) {
	start := time.Date(2025, 8, 20, 0, 0, 0, 0, time.UTC)
	s := &Semester{ClassesStart: start}
	require.False(t, s.InSession(start.Add(-time.Minute)))
	require.True(t, s.InSession(start.AddDate(5, 0, 0)))
}
