package school

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/trezcool/masomo-console/core"
)

// Curricula
const (
	CurriculumCBC Curriculum = "CBC"
	Curriculum844 Curriculum = "8-4-4"
)

// Student lifecycle statuses
const (
	StatusActive    StudentStatus = "active"
	StatusAlumni    StudentStatus = "alumni"
	StatusSuspended StudentStatus = "suspended"
)

// Academic session lifecycle statuses
const (
	SessionPlanned SessionStatus = "planned"
	SessionActive  SessionStatus = "active"
	SessionClosed  SessionStatus = "closed"
)

// Promotion outcome tags
const (
	OutcomePromoted    Outcome = "promoted"
	OutcomeRepeated    Outcome = "repeated"
	OutcomeTransferred Outcome = "transferred"
	OutcomeGraduated   Outcome = "graduated"
)

var Outcomes = []Outcome{OutcomePromoted, OutcomeRepeated, OutcomeTransferred, OutcomeGraduated}

type (
	Curriculum    string
	StudentStatus string
	SessionStatus string
	Outcome       string
)

func (o Outcome) Valid() bool {
	for _, known := range Outcomes {
		if o == known {
			return true
		}
	}
	return false
}

type Student struct {
	AdmissionNo string        `json:"admission_no"`
	Name        string        `json:"name"`
	ClassLevel  string        `json:"class_level"`
	Stream      *string       `json:"stream"`
	Curriculum  Curriculum    `json:"curriculum"`
	Status      StudentStatus `json:"status"`
}

func (s Student) Cohort() string {
	return CohortLabel(s.ClassLevel, s.Stream)
}

func (s Student) IsActive() bool {
	return s.Status == StatusActive
}

// ClassLevel is immutable reference data. An empty Streams list means the level is unstreamed.
type ClassLevel struct {
	Level      string     `json:"level"`
	Curriculum Curriculum `json:"curriculum"`
	Streams    []string   `json:"streams"`
}

func (cl ClassLevel) HasStreams() bool {
	return len(cl.Streams) > 0
}

// HasStream matches stream labels case-insensitively.
func (cl ClassLevel) HasStream(stream string) bool {
	for _, s := range cl.Streams {
		if core.SameLabel(s, stream) {
			return true
		}
	}
	return false
}

// Stream returns the catalog spelling of stream.
func (cl ClassLevel) Stream(stream string) (string, bool) {
	for _, s := range cl.Streams {
		if core.SameLabel(s, stream) {
			return s, true
		}
	}
	return "", false
}

type AcademicSession struct {
	ID        string        `json:"id"`
	Year      int           `json:"year"`
	Term      int           `json:"term"`
	IsCurrent bool          `json:"is_current"`
	Status    SessionStatus `json:"status"`
}

func (s AcademicSession) Label() string {
	return fmt.Sprintf("%d Term %d", s.Year, s.Term)
}

// StudentFilter applies AND operation on set fields; the zero value matches all students.
// An empty Stream matches any stream.
type StudentFilter struct {
	ClassLevel string        `json:"class_level,omitempty"`
	Stream     string        `json:"stream,omitempty"`
	Status     StudentStatus `json:"status,omitempty"`
}

// CohortFilter selects the active students of a class level and stream.
func CohortFilter(level string, stream *string) StudentFilter {
	return StudentFilter{ClassLevel: level, Stream: StreamValue(stream), Status: StatusActive}
}

func (f StudentFilter) IsEmpty() bool {
	return f.ClassLevel == "" && f.Stream == "" && f.Status == ""
}

func (f StudentFilter) Matches(s Student) bool {
	if f.ClassLevel != "" && !core.SameLabel(f.ClassLevel, s.ClassLevel) {
		return false
	}
	if f.Stream != "" && (s.Stream == nil || !core.SameLabel(f.Stream, *s.Stream)) {
		return false
	}
	if f.Status != "" && f.Status != s.Status {
		return false
	}
	return true
}

func (f StudentFilter) Values() url.Values {
	v := make(url.Values)
	if f.ClassLevel != "" {
		v.Set("class_level", f.ClassLevel)
	}
	if f.Stream != "" {
		v.Set("stream", f.Stream)
	}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	return v
}

func (f StudentFilter) String() string {
	if f.IsEmpty() {
		return "all students"
	}
	parts := make([]string, 0, 2)
	if f.ClassLevel != "" {
		parts = append(parts, CohortLabel(f.ClassLevel, Stream(f.Stream)))
	}
	if f.Status != "" {
		parts = append(parts, string(f.Status))
	}
	return strings.Join(parts, ", ")
}

// Stream returns nil for a blank stream label.
func Stream(s string) *string {
	s = core.CleanString(s)
	if s == "" {
		return nil
	}
	return &s
}

func StreamValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CohortLabel renders "Form 2 A" or "Form 3" for unstreamed levels.
func CohortLabel(level string, stream *string) string {
	if stream == nil || *stream == "" {
		return level
	}
	return level + " " + *stream
}
