package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/school"
)

const DefaultStreamCapacity = 45

// Promotion is one recorded change of a student's class or status.
type Promotion struct {
	ID         string         `json:"id"`
	StudentID  string         `json:"student_id"`
	From       string         `json:"from"`
	To         string         `json:"to"`
	SessionID  string         `json:"session_id"`
	Outcome    school.Outcome `json:"outcome"`
	Remarks    string         `json:"remarks,omitempty"`
	Bulk       bool           `json:"bulk"`
	PromotedAt time.Time      `json:"promoted_at"`
}

type Option func(*Registry)

// WithStreamCapacity sets how many active students a stream (or an unstreamed level) takes.
func WithStreamCapacity(n int) Option {
	return func(r *Registry) { r.capacity = n }
}

func WithLogger(logger core.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// Registry is an in-memory school: class levels, students, academic sessions and promotion history.
// It implements the backend the promotion workflow runs against.
type Registry struct {
	mutex    sync.RWMutex
	levels   []school.ClassLevel
	students map[string]*school.Student
	order    []string
	sessions []school.AcademicSession
	history  []Promotion

	capacity int
	logger   core.Logger
	nowFunc  func() time.Time
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		students: make(map[string]*school.Student),
		capacity: DefaultStreamCapacity,
		logger:   core.NopLogger{},
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddClassLevel appends cl to the catalog. Catalog order is the promotion order.
func (r *Registry) AddClassLevel(cl school.ClassLevel) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	cl.Level = core.CleanString(cl.Level)
	if cl.Level == "" {
		return core.NewValidationError(nil, core.FieldError{Field: "level", Error: "this field is required"})
	}
	if _, ok := r.findLevel(cl.Level); ok {
		return school.NewRuleError(school.RuleDuplicate, "class level %s already exists", cl.Level)
	}
	cl.Streams = append([]string(nil), cl.Streams...)
	r.levels = append(r.levels, cl)
	return nil
}

// AddStudent enrolls s into an existing class level and stream.
func (r *Registry) AddStudent(s school.Student) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	s.AdmissionNo = core.CleanString(s.AdmissionNo)
	if _, ok := r.students[s.AdmissionNo]; ok {
		return school.NewRuleError(school.RuleDuplicate, "student %s already exists", s.AdmissionNo)
	}
	cl, ok := r.findLevel(s.ClassLevel)
	if !ok {
		return errors.Wrapf(school.ErrClassLevelNotFound, "%s", s.ClassLevel)
	}
	stream, err := resolveStream(cl, s.Stream)
	if err != nil {
		return err
	}
	s.ClassLevel = cl.Level
	s.Stream = stream
	if s.Status == "" {
		s.Status = school.StatusActive
	}
	if s.Curriculum == "" {
		s.Curriculum = cl.Curriculum
	}
	r.students[s.AdmissionNo] = &s
	r.order = append(r.order, s.AdmissionNo)
	return nil
}

// AddSession registers a session; a current session replaces the previous one as current.
func (r *Registry) AddSession(s school.AcademicSession) school.AcademicSession {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = school.SessionPlanned
	}
	if s.IsCurrent {
		r.clearCurrent()
		s.Status = school.SessionActive
	}
	r.sessions = append(r.sessions, s)
	return s
}

// ActivateSession makes the session id current, closing the previously current one.
func (r *Registry) ActivateSession(id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	idx := r.sessionIndex(id)
	if idx < 0 {
		return errors.Wrapf(school.ErrSessionNotFound, "%s", id)
	}
	r.clearCurrent()
	r.sessions[idx].IsCurrent = true
	r.sessions[idx].Status = school.SessionActive
	r.logger.Info("academic session activated", map[string]interface{}{"session": r.sessions[idx].Label()})
	return nil
}

// CloseSession closes the session id. Promotions are refused until another one is activated.
func (r *Registry) CloseSession(id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	idx := r.sessionIndex(id)
	if idx < 0 {
		return errors.Wrapf(school.ErrSessionNotFound, "%s", id)
	}
	r.sessions[idx].IsCurrent = false
	r.sessions[idx].Status = school.SessionClosed
	return nil
}

func (r *Registry) Student(admissionNo string) (school.Student, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s, ok := r.students[core.CleanString(admissionNo)]
	if !ok {
		return school.Student{}, errors.Wrapf(school.ErrStudentNotFound, "%s", admissionNo)
	}
	return copyStudent(s), nil
}

// History returns the recorded promotions, oldest first.
func (r *Registry) History() []Promotion {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return append([]Promotion(nil), r.history...)
}

func (r *Registry) ListStudents(ctx context.Context, filter school.StudentFilter) ([]school.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	students := make([]school.Student, 0, len(r.order))
	for _, id := range r.order {
		if s := r.students[id]; filter.Matches(*s) {
			students = append(students, copyStudent(s))
		}
	}
	return students, nil
}

func (r *Registry) ListClassLevels(ctx context.Context) ([]school.ClassLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	levels := make([]school.ClassLevel, len(r.levels))
	for i, cl := range r.levels {
		cl.Streams = append([]string{}, cl.Streams...)
		levels[i] = cl
	}
	return levels, nil
}

// GetCurrentSession returns nil when no session is current.
func (r *Registry) GetCurrentSession(ctx context.Context) (*school.AcademicSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if s, ok := r.current(); ok {
		return &s, nil
	}
	return nil, nil
}

func (r *Registry) findLevel(label string) (school.ClassLevel, bool) {
	if i := r.levelIndex(label); i >= 0 {
		return r.levels[i], true
	}
	return school.ClassLevel{}, false
}

// levelIndex returns the catalog position of label or -1.
func (r *Registry) levelIndex(label string) int {
	for i, cl := range r.levels {
		if core.SameLabel(cl.Level, label) {
			return i
		}
	}
	return -1
}

func (r *Registry) sessionIndex(id string) int {
	for i, s := range r.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) current() (school.AcademicSession, bool) {
	for _, s := range r.sessions {
		if s.IsCurrent && s.Status == school.SessionActive {
			return s, true
		}
	}
	return school.AcademicSession{}, false
}

func (r *Registry) clearCurrent() {
	for i := range r.sessions {
		if r.sessions[i].IsCurrent {
			r.sessions[i].IsCurrent = false
			r.sessions[i].Status = school.SessionClosed
		}
	}
}

func copyStudent(s *school.Student) school.Student {
	cp := *s
	if s.Stream != nil {
		stream := *s.Stream
		cp.Stream = &stream
	}
	return cp
}

// FindByLevel looks a class level up by label, ignoring case.
func (r *Registry) FindByLevel(label string) (school.ClassLevel, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.findLevel(label)
}
