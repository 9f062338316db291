package inmemdb

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/school"
)

// Seed fills r with a small mixed CBC / 8-4-4 school and makes 2026 Term 1 current.
func Seed(r *Registry) error {
	levels := []school.ClassLevel{
		{Level: "Grade 7", Curriculum: school.CurriculumCBC, Streams: []string{"Blue", "Green"}},
		{Level: "Grade 8", Curriculum: school.CurriculumCBC, Streams: []string{"Blue", "Green"}},
		{Level: "Grade 9", Curriculum: school.CurriculumCBC, Streams: []string{"Blue", "Green"}},
		{Level: "Form 1", Curriculum: school.Curriculum844, Streams: []string{"A", "B"}},
		{Level: "Form 2", Curriculum: school.Curriculum844, Streams: []string{"A", "B"}},
		{Level: "Form 3", Curriculum: school.Curriculum844},
		{Level: "Form 4", Curriculum: school.Curriculum844, Streams: []string{"East", "West"}},
	}
	for _, cl := range levels {
		if err := r.AddClassLevel(cl); err != nil {
			return errors.Wrap(err, "seeding class levels")
		}
	}

	students := []struct {
		name   string
		level  string
		stream string
		status school.StudentStatus
	}{
		{"Achieng Odhiambo", "Grade 7", "Blue", school.StatusActive},
		{"Brian Kiptoo", "Grade 7", "Blue", school.StatusActive},
		{"Cynthia Njeri", "Grade 7", "Green", school.StatusActive},
		{"David Mutua", "Grade 8", "Blue", school.StatusActive},
		{"Esther Wambui", "Grade 8", "Green", school.StatusActive},
		{"Faith Chepkoech", "Grade 9", "Green", school.StatusActive},
		{"George Omondi", "Form 1", "A", school.StatusActive},
		{"Halima Abdi", "Form 1", "A", school.StatusActive},
		{"Ian Kariuki", "Form 1", "B", school.StatusActive},
		{"Joy Akinyi", "Form 2", "A", school.StatusActive},
		{"Kevin Mwangi", "Form 2", "A", school.StatusActive},
		{"Lucy Wanjiku", "Form 2", "A", school.StatusActive},
		{"Moses Kibet", "Form 2", "A", school.StatusActive},
		{"Nancy Atieno", "Form 2", "A", school.StatusActive},
		{"Oscar Njoroge", "Form 2", "A", school.StatusSuspended},
		{"Purity Muthoni", "Form 2", "B", school.StatusActive},
		{"Quincy Otieno", "Form 3", "", school.StatusActive},
		{"Rose Chebet", "Form 4", "East", school.StatusActive},
		{"Samuel Kamau", "Form 4", "West", school.StatusActive},
		{"Tabitha Nyambura", "Form 4", "West", school.StatusAlumni},
	}
	for i, s := range students {
		err := r.AddStudent(school.Student{
			AdmissionNo: fmt.Sprintf("ADM-%03d", i+1),
			Name:        s.name,
			ClassLevel:  s.level,
			Stream:      school.Stream(s.stream),
			Status:      s.status,
		})
		if err != nil {
			return errors.Wrapf(err, "seeding student %s", s.name)
		}
	}

	r.AddSession(school.AcademicSession{ID: "2025-3", Year: 2025, Term: 3, Status: school.SessionClosed})
	r.AddSession(school.AcademicSession{ID: "2026-1", Year: 2026, Term: 1, IsCurrent: true})
	return nil
}
