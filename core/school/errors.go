package school

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrStudentNotFound    = errors.New("student not found")
	ErrClassLevelNotFound = errors.New("class level not found")
	ErrSessionNotFound    = errors.New("academic session not found")
	ErrNoCurrentSession   = errors.New("no current academic session")
)

// Rules a promotion can be rejected for.
const (
	RuleStreamRequired  = "stream_required"
	RuleUnknownStream   = "unknown_stream"
	RuleStreamFull      = "stream_full"
	RuleCurriculum      = "curriculum_mismatch"
	RuleStudentInactive = "student_inactive"
	RuleSameCohort      = "same_cohort"
	RuleDuplicate       = "duplicate"
)

// RuleError is a request rejected by a school rule. Message is meant for the operator.
type RuleError struct {
	Rule    string
	Message string
}

func NewRuleError(rule, format string, args ...interface{}) error {
	return &RuleError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

func (e *RuleError) Error() string {
	return e.Message
}

// IsRule reports whether err was caused by a RuleError for rule, or any rule if rule is empty.
func IsRule(err error, rule string) bool {
	var rErr *RuleError
	if !errors.As(err, &rErr) {
		return false
	}
	return rule == "" || rErr.Rule == rule
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrClassLevelNotFound) ||
		errors.Is(err, ErrSessionNotFound)
}
