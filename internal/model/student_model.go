package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleStudent    = "STUDENT"
	RoleInstructor = "INSTRUCTOR"

	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

type Student struct {
	ID           uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string                      `gorm:"type:varchar(255);not null" json:"name"`
	Email        string                      `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Role         string                      `gorm:"type:varchar(20);default:STUDENT;index" json:"role"`
	Status       string                      `gorm:"type:varchar(20);default:ACTIVE;index" json:"status"`
	Subjects     datatypes.JSONSlice[string] `json:"subjects"`
	Campus       string                      `gorm:"type:varchar(100);index" json:"campus"`
	AcademicYear string                      `gorm:"type:varchar(50)" json:"academic_year"`
	Division     string                      `gorm:"type:varchar(20)" json:"division"`
	CreatedAt    time.Time                   `json:"created_at"`
	UpdatedAt    time.Time                   `json:"updated_at"`
}

func (Student) TableName() string {
	return "students"
}

func (s *Student) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *Student) IsEnrolled(subject string) bool {
	return slices.Contains(s.Subjects, subject)
}
