package inmemdb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core/school"
)

// resolveStream returns the catalog spelling of stream, nil for unstreamed levels.
func resolveStream(cl school.ClassLevel, stream *string) (*string, error) {
	if !cl.HasStreams() {
		return nil, nil
	}
	value := school.StreamValue(stream)
	if value == "" {
		return nil, school.NewRuleError(school.RuleStreamRequired, "a stream is required for %s", cl.Level)
	}
	s, ok := cl.Stream(value)
	if !ok {
		return nil, school.NewRuleError(school.RuleUnknownStream, "%s has no stream %s", cl.Level, value)
	}
	return &s, nil
}

// occupancy counts the active students of a cohort.
func (r *Registry) occupancy(level string, stream *string) int {
	filter := school.CohortFilter(level, stream)
	n := 0
	for _, s := range r.students {
		if filter.Matches(*s) {
			n++
		}
	}
	return n
}

func sameCohort(s school.Student, level string, stream *string) bool {
	return s.ClassLevel == level && school.StreamValue(s.Stream) == school.StreamValue(stream)
}

// ValidatePromotion returns advisory warnings. Only unknown students and class levels are errors.
func (r *Registry) ValidatePromotion(ctx context.Context, req school.ValidationRequest) (school.Warnings, error) {
	if err := ctx.Err(); err != nil {
		return school.Warnings{}, err
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	s, ok := r.students[req.StudentID]
	if !ok {
		return school.Warnings{}, errors.Wrapf(school.ErrStudentNotFound, "%s", req.StudentID)
	}
	cl, ok := r.findLevel(req.TargetLevel)
	if !ok {
		return school.Warnings{}, errors.Wrapf(school.ErrClassLevelNotFound, "%s", req.TargetLevel)
	}

	warnings := make([]string, 0)
	if !s.IsActive() {
		warnings = append(warnings, fmt.Sprintf("%s is %s, not active.", s.Name, s.Status))
	}
	if s.Curriculum != cl.Curriculum {
		warnings = append(warnings, fmt.Sprintf(
			"Curriculum mismatch: %s follows %s but %s follows %s.", s.Name, s.Curriculum, cl.Level, cl.Curriculum,
		))
	}
	if r.levelIndex(cl.Level) < r.levelIndex(s.ClassLevel) {
		warnings = append(warnings, fmt.Sprintf("%s is below %s's current class (%s).", cl.Level, s.Name, s.ClassLevel))
	}

	stream, err := resolveStream(cl, req.TargetStream)
	switch {
	case err != nil:
		warnings = append(warnings, err.Error()+".")
	case sameCohort(*s, cl.Level, stream):
		warnings = append(warnings, fmt.Sprintf("%s is already in %s.", s.Name, school.CohortLabel(cl.Level, stream)))
	default:
		if n := r.occupancy(cl.Level, stream); n >= r.capacity {
			warnings = append(warnings, fmt.Sprintf(
				"%s is at capacity (%d/%d students).", school.CohortLabel(cl.Level, stream), n, r.capacity,
			))
		}
	}
	return school.Warnings{Warnings: warnings}, nil
}

// PromoteStudent applies req within the current session.
// A graduated student becomes alumni and keeps its class; any other outcome moves the student to the target.
func (r *Registry) PromoteStudent(ctx context.Context, req school.PromotionRequest) (school.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return school.ExecutionResult{}, err
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	session, ok := r.current()
	if !ok {
		return school.ExecutionResult{}, school.ErrNoCurrentSession
	}
	s, ok := r.students[req.StudentID]
	if !ok {
		return school.ExecutionResult{}, errors.Wrapf(school.ErrStudentNotFound, "%s", req.StudentID)
	}
	cl, ok := r.findLevel(req.TargetLevel)
	if !ok {
		return school.ExecutionResult{}, errors.Wrapf(school.ErrClassLevelNotFound, "%s", req.TargetLevel)
	}
	stream, err := resolveStream(cl, req.TargetStream)
	if err != nil {
		return school.ExecutionResult{}, err
	}
	if !s.IsActive() {
		return school.ExecutionResult{}, school.NewRuleError(
			school.RuleStudentInactive, "%s is %s and cannot be promoted", s.Name, s.Status,
		)
	}
	outcome := req.Outcome
	if outcome == "" {
		outcome = school.OutcomePromoted
	}

	from := s.Cohort()
	var msg string
	switch outcome {
	case school.OutcomeGraduated:
		s.Status = school.StatusAlumni
		msg = fmt.Sprintf("%s graduated from %s.", s.Name, from)
	default:
		if !sameCohort(*s, cl.Level, stream) && r.occupancy(cl.Level, stream) >= r.capacity {
			return school.ExecutionResult{}, school.NewRuleError(
				school.RuleStreamFull, "%s is full (%d students)", school.CohortLabel(cl.Level, stream), r.capacity,
			)
		}
		s.ClassLevel = cl.Level
		s.Stream = stream
		if outcome == school.OutcomeRepeated {
			msg = fmt.Sprintf("%s repeats %s.", s.Name, s.Cohort())
		} else {
			msg = fmt.Sprintf("%s %s to %s.", s.Name, outcome, s.Cohort())
		}
	}
	r.record(*s, from, session, outcome, req.Remarks, false)
	r.logger.Info("student promoted", map[string]interface{}{
		"student": s.AdmissionNo, "from": from, "to": s.Cohort(), "outcome": outcome, "session": session.Label(),
	})
	return school.ExecutionResult{Success: true, Message: msg}, nil
}

// BulkPromote moves every active student of the source cohort to the target, one student at a time.
// A student that cannot be moved is reported as a failure; the others are still promoted.
func (r *Registry) BulkPromote(ctx context.Context, req school.BulkPromotionRequest) (school.OutcomeReport, error) {
	if err := ctx.Err(); err != nil {
		return school.OutcomeReport{}, err
	}
	r.mutex.Lock()
	defer r.mutex.Unlock()

	session, ok := r.current()
	if !ok {
		return school.OutcomeReport{}, school.ErrNoCurrentSession
	}
	src, ok := r.findLevel(req.SourceLevel)
	if !ok {
		return school.OutcomeReport{}, errors.Wrapf(school.ErrClassLevelNotFound, "%s", req.SourceLevel)
	}
	srcStream, err := resolveStream(src, req.SourceStream)
	if err != nil {
		return school.OutcomeReport{}, err
	}
	dst, ok := r.findLevel(req.TargetLevel)
	if !ok {
		return school.OutcomeReport{}, errors.Wrapf(school.ErrClassLevelNotFound, "%s", req.TargetLevel)
	}
	dstStream, err := resolveStream(dst, req.TargetStream)
	if err != nil {
		return school.OutcomeReport{}, err
	}
	source := school.CohortLabel(src.Level, srcStream)
	target := school.CohortLabel(dst.Level, dstStream)
	if source == target {
		return school.OutcomeReport{}, school.NewRuleError(school.RuleSameCohort, "%s is both the source and the target", source)
	}

	filter := school.CohortFilter(src.Level, srcStream)
	var cohort []*school.Student
	for _, id := range r.order {
		if s := r.students[id]; filter.Matches(*s) {
			cohort = append(cohort, s)
		}
	}

	report := school.OutcomeReport{TotalStudents: len(cohort), Failures: make([]school.StudentFailure, 0)}
	occupied := r.occupancy(dst.Level, dstStream)
	for _, s := range cohort {
		switch {
		case s.Curriculum != dst.Curriculum:
			report.Failures = append(report.Failures, school.StudentFailure{
				StudentID: s.AdmissionNo,
				Reason:    fmt.Sprintf("curriculum mismatch (%s student, %s class)", s.Curriculum, dst.Curriculum),
			})
		case occupied >= r.capacity:
			report.Failures = append(report.Failures, school.StudentFailure{
				StudentID: s.AdmissionNo,
				Reason:    fmt.Sprintf("%s is full (%d students)", target, r.capacity),
			})
		default:
			s.ClassLevel = dst.Level
			s.Stream = dstStream
			occupied++
			report.Succeeded++
			r.record(*s, source, session, school.OutcomePromoted, "", true)
		}
	}
	switch {
	case report.TotalStudents == 0:
		report.Message = fmt.Sprintf("No active students in %s.", source)
	default:
		report.Message = fmt.Sprintf("%d of %d students promoted from %s to %s.",
			report.Succeeded, report.TotalStudents, source, target)
	}

	r.logger.Info("cohort promoted", map[string]interface{}{
		"source": source, "target": target, "session": session.Label(),
		"succeeded": report.Succeeded, "total": report.TotalStudents, "failed": len(report.Failures),
	})
	return report, nil
}

func (r *Registry) record(s school.Student, from string, session school.AcademicSession, outcome school.Outcome, remarks string, bulk bool) {
	r.history = append(r.history, Promotion{
		ID:         uuid.New().String(),
		StudentID:  s.AdmissionNo,
		From:       from,
		To:         s.Cohort(),
		SessionID:  session.ID,
		Outcome:    outcome,
		Remarks:    remarks,
		Bulk:       bulk,
		PromotedAt: r.nowFunc().UTC(),
	})
}
