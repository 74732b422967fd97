package models

import "time"

// Class represents an academic class or section.
type Class struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Section   string    `db:"section" json:"section"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassSubjectAssignment is a subject taught in a class with its optional teacher.
type ClassSubjectAssignment struct {
	ID          string  `db:"id" json:"id"`
	ClassID     string  `db:"class_id" json:"class_id"`
	SubjectID   string  `db:"subject_id" json:"subject_id"`
	SubjectName string  `db:"subject_name" json:"subject_name"`
	TeacherID   *string `db:"teacher_id" json:"teacher_id,omitempty"`
	TeacherName *string `db:"teacher_name" json:"teacher_name,omitempty"`
}
