package repository

import (
	"context"
	"testing"
	"time"

	"github.com/intellego/platform/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListEnrolledFiltersAndKeepsEnrolmentOrder(t *testing.T) {
	repo := NewStudentRepository(openTestDB(t))
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	students := []*model.Student{
		{Name: "García, Juan", Email: "jg@x", Role: model.RoleStudent, Status: model.StatusActive, Subjects: []string{"Física", "Química"}, Division: "C", AcademicYear: "4to Año", Campus: "Colegiales", CreatedAt: base},
		{Name: "Garcia Lopez, Ana", Email: "ag@x", Role: model.RoleStudent, Status: model.StatusActive, Subjects: []string{"Física"}, Division: "C", AcademicYear: "4to Año", Campus: "Colegiales", CreatedAt: base.Add(time.Hour)},
		{Name: "Pérez, Luis", Email: "lp@x", Role: model.RoleStudent, Status: model.StatusActive, Subjects: []string{"Química"}, Division: "C", AcademicYear: "4to Año", Campus: "Colegiales", CreatedAt: base.Add(2 * time.Hour)},
		{Name: "Gómez, Eva", Email: "eg@x", Role: model.RoleStudent, Status: model.StatusActive, Subjects: []string{"Física"}, Division: "D", AcademicYear: "4to Año", Campus: "Colegiales", CreatedAt: base},
		{Name: "Baja, Ex", Email: "ex@x", Role: model.RoleStudent, Status: model.StatusInactive, Subjects: []string{"Física"}, Division: "C", AcademicYear: "4to Año", Campus: "Colegiales", CreatedAt: base},
		{Name: "Profe", Email: "p@x", Role: model.RoleInstructor, Status: model.StatusActive, Subjects: []string{"Física"}, Division: "C", AcademicYear: "4to Año", Campus: "Colegiales", CreatedAt: base},
	}
	for _, s := range students {
		require.NoError(t, repo.Create(ctx, s))
	}

	got, err := repo.ListEnrolled(ctx, EnrollmentFilter{Subject: "Física", Division: "C", AcademicYear: "4to Año", Campus: "Colegiales"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "García, Juan", got[0].Name)
	assert.Equal(t, "Garcia Lopez, Ana", got[1].Name)

	all, err := repo.ListEnrolled(ctx, EnrollmentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	subjects, err := repo.GetSubjects(ctx, students[0].ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Física", "Química"}, subjects)
}
