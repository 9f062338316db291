package promotion

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/school"
)

// Roster is the student list of a screen: the active filter and its last snapshot.
// Snapshots are replaced by re-querying, never patched locally.
type Roster struct {
	backend Backend

	mu       sync.Mutex
	filter   school.StudentFilter
	students []school.Student
	loading  bool
	gen      generation
}

func NewRoster(backend Backend) *Roster {
	return &Roster{backend: backend}
}

// Query sets the active filter and fetches it. Responses of superseded queries are dropped.
func (r *Roster) Query(ctx context.Context, filter school.StudentFilter) ([]school.Student, error) {
	r.mu.Lock()
	r.filter = filter
	r.loading = true
	qctx, t := r.gen.begin(ctx)
	r.mu.Unlock()

	students, err := r.backend.ListStudents(qctx, filter)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.gen.current(t) {
		return nil, errors.Wrap(context.Canceled, "roster query superseded")
	}
	r.gen.settle(t)
	r.loading = false
	if err != nil {
		return nil, errors.Wrapf(err, "listing students (%s)", filter)
	}
	r.students = students
	return r.copyStudents(), nil
}

// Refresh re-runs the active filter.
func (r *Roster) Refresh(ctx context.Context) ([]school.Student, error) {
	return r.Query(ctx, r.Filter())
}

func (r *Roster) Filter() school.StudentFilter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filter
}

func (r *Roster) Students() []school.Student {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.copyStudents()
}

func (r *Roster) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading
}

func (r *Roster) copyStudents() []school.Student {
	students := make([]school.Student, len(r.students))
	copy(students, r.students)
	return students
}
