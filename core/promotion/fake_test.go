package promotion

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/trezcool/masomo-console/core/school"
)

var (
	streamA = school.Stream("A")
	streamB = school.Stream("B")
)

// fakeBackend serves fixed reference data; the hooks override write and validation calls.
type fakeBackend struct {
	mu         sync.Mutex
	levels     []school.ClassLevel
	students   []school.Student
	session    *school.AcademicSession
	sessionErr error
	listErr    error

	listHook     func(ctx context.Context, filter school.StudentFilter) ([]school.Student, error)
	validateHook func(ctx context.Context, req school.ValidationRequest) (school.Warnings, error)
	promoteHook  func(ctx context.Context, req school.PromotionRequest) (school.ExecutionResult, error)
	bulkHook     func(ctx context.Context, req school.BulkPromotionRequest) (school.OutcomeReport, error)

	listFilters []school.StudentFilter
	validations []school.ValidationRequest
	promotions  []school.PromotionRequest
	bulks       []school.BulkPromotionRequest
}

var _ Backend = (*fakeBackend)(nil)

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		levels: []school.ClassLevel{
			{Level: "Form 1", Curriculum: school.Curriculum844, Streams: []string{"A", "B"}},
			{Level: "Form 2", Curriculum: school.Curriculum844, Streams: []string{"A", "B"}},
			{Level: "Form 3", Curriculum: school.Curriculum844},
		},
		students: []school.Student{
			{AdmissionNo: "ADM-001", Name: "Amani Otieno", ClassLevel: "Form 1", Stream: streamA, Curriculum: school.Curriculum844, Status: school.StatusActive},
			{AdmissionNo: "ADM-002", Name: "Baraka Mwangi", ClassLevel: "Form 1", Stream: streamB, Curriculum: school.Curriculum844, Status: school.StatusActive},
			{AdmissionNo: "ADM-003", Name: "Chebet Kiprop", ClassLevel: "Form 2", Stream: streamA, Curriculum: school.Curriculum844, Status: school.StatusActive},
			{AdmissionNo: "ADM-004", Name: "Dalia Wanjiru", ClassLevel: "Form 2", Stream: streamA, Curriculum: school.Curriculum844, Status: school.StatusActive},
			{AdmissionNo: "ADM-005", Name: "Eric Kamau", ClassLevel: "Form 2", Stream: streamA, Curriculum: school.Curriculum844, Status: school.StatusSuspended},
		},
		session: &school.AcademicSession{ID: "2026-1", Year: 2026, Term: 1, IsCurrent: true, Status: school.SessionActive},
	}
}

func (b *fakeBackend) ListStudents(ctx context.Context, filter school.StudentFilter) ([]school.Student, error) {
	b.mu.Lock()
	b.listFilters = append(b.listFilters, filter)
	hook, err := b.listHook, b.listErr
	b.mu.Unlock()

	if hook != nil {
		return hook(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	return b.match(filter), nil
}

func (b *fakeBackend) match(filter school.StudentFilter) []school.Student {
	b.mu.Lock()
	defer b.mu.Unlock()
	var students []school.Student
	for _, s := range b.students {
		if filter.Matches(s) {
			students = append(students, s)
		}
	}
	return students
}

func (b *fakeBackend) ListClassLevels(context.Context) ([]school.ClassLevel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels, nil
}

func (b *fakeBackend) GetCurrentSession(context.Context) (*school.AcademicSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session, b.sessionErr
}

func (b *fakeBackend) ValidatePromotion(ctx context.Context, req school.ValidationRequest) (school.Warnings, error) {
	b.mu.Lock()
	b.validations = append(b.validations, req)
	hook := b.validateHook
	b.mu.Unlock()

	if hook != nil {
		return hook(ctx, req)
	}
	return school.Warnings{}, nil
}

func (b *fakeBackend) PromoteStudent(ctx context.Context, req school.PromotionRequest) (school.ExecutionResult, error) {
	b.mu.Lock()
	b.promotions = append(b.promotions, req)
	hook := b.promoteHook
	b.mu.Unlock()

	if hook != nil {
		return hook(ctx, req)
	}
	return school.ExecutionResult{Success: true, Message: "Student promoted successfully."}, nil
}

func (b *fakeBackend) BulkPromote(ctx context.Context, req school.BulkPromotionRequest) (school.OutcomeReport, error) {
	b.mu.Lock()
	b.bulks = append(b.bulks, req)
	hook := b.bulkHook
	b.mu.Unlock()

	if hook != nil {
		return hook(ctx, req)
	}
	n := len(b.match(school.CohortFilter(req.SourceLevel, req.SourceStream)))
	return school.OutcomeReport{Succeeded: n, TotalStudents: n}, nil
}

func (b *fakeBackend) counts() (lists, validations, promotions, bulks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listFilters), len(b.validations), len(b.promotions), len(b.bulks)
}

func (b *fakeBackend) lastFilter() school.StudentFilter {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.listFilters) == 0 {
		return school.StudentFilter{}
	}
	return b.listFilters[len(b.listFilters)-1]
}

// setup returns a loaded orchestrator without debounce.
func setup(t *testing.T, backend *fakeBackend, opts ...Option) *Orchestrator {
	t.Helper()
	opts = append([]Option{WithDebounce(0), WithTimeout(time.Second)}, opts...)
	orc := New(backend, opts...)
	if err := orc.Load(context.Background()); err != nil {
		t.Fatalf("orc.Load() failed: %v", err)
	}
	return orc
}
