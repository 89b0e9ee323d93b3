package service

import "course-portal/internal/model"

var fallbackCourses = []model.Course{
	{Code: "CS101", Name: "Introduction to Computer Science", Credits: 3, Description: "Fundamental concepts of programming, algorithms, and data structures."},
	{Code: "CS201", Name: "Data Structures and Algorithms", Credits: 4, Description: "Advanced data structures, algorithm analysis, and complexity theory."},
	{Code: "MATH150", Name: "Calculus I", Credits: 4, Description: "Limits, derivatives, and applications of differential calculus."},
	{Code: "MATH250", Name: "Calculus II", Credits: 4, Description: "Integration techniques, sequences, series, and applications."},
	{Code: "ENG101", Name: "Composition I", Credits: 3, Description: "Writing, research, and critical thinking skills development."},
	{Code: "PHYS200", Name: "Physics I", Credits: 4, Description: "Mechanics, thermodynamics, and wave motion fundamentals."},
	{Code: "HIST101", Name: "World History", Credits: 3, Description: "Survey of major world civilizations and historical developments."},
	{Code: "BIOL101", Name: "Biology I", Credits: 4, Description: "Cell biology, genetics, and evolution principles."},
	{Code: "CHEM101", Name: "Chemistry I", Credits: 4, Description: "Atomic structure, bonding, and chemical reactions."},
	{Code: "PSYC101", Name: "Introduction to Psychology", Credits: 3, Description: "Overview of psychological principles, theories, and research methods."},
}

// FallbackCourses returns a copy of the built-in catalog.
func FallbackCourses() []model.Course {
	out := make([]model.Course, len(fallbackCourses))
	copy(out, fallbackCourses)
	return out
}
