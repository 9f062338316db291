package promotion

import (
	"context"

	"github.com/trezcool/masomo-console/core/school"
)

// Backend is the remote school API the promotion workflow reads and writes.
// Authentication failures must satisfy errors.Is(err, ErrUnauthenticated).
type Backend interface {
	ListStudents(ctx context.Context, filter school.StudentFilter) ([]school.Student, error)
	ListClassLevels(ctx context.Context) ([]school.ClassLevel, error)
	// GetCurrentSession returns nil, nil when no session is current.
	GetCurrentSession(ctx context.Context) (*school.AcademicSession, error)
	ValidatePromotion(ctx context.Context, req school.ValidationRequest) (school.Warnings, error)
	PromoteStudent(ctx context.Context, req school.PromotionRequest) (school.ExecutionResult, error)
	BulkPromote(ctx context.Context, req school.BulkPromotionRequest) (school.OutcomeReport, error)
}

// SessionBoundary is told when the backend rejected the operator's credential.
// It owns clearing the session and sending the operator back to login.
type SessionBoundary interface {
	Unauthenticated(err error)
}

type BoundaryFunc func(err error)

func (f BoundaryFunc) Unauthenticated(err error) { f(err) }

type nopBoundary struct{}

func (nopBoundary) Unauthenticated(error) {}
