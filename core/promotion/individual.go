package promotion

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/school"
)

const promotedMessage = "Student promoted successfully."

// ValidationResult holds the advisory warnings of the current selection.
// It is never cached: every selection change replaces or clears it.
type ValidationResult struct {
	Warnings []string
	Blocking bool
}

func (v ValidationResult) HasWarnings() bool {
	return len(v.Warnings) > 0
}

type IndividualState struct {
	StudentID      string
	TargetLevel    string
	TargetStream   *string
	Outcome        school.Outcome
	Remarks        string
	StreamRequired bool

	Validating  bool
	Validation  *ValidationResult
	FieldErrors map[string]string

	Loading    bool
	LastResult *school.ExecutionResult
	LastError  error
}

// IndividualForm promotes one student at a time.
type IndividualForm struct {
	d *deps

	mu    sync.Mutex
	state IndividualState
	gen   generation
}

func newIndividualForm(d *deps) *IndividualForm {
	return &IndividualForm{
		d:     d,
		state: IndividualState{Outcome: school.OutcomePromoted},
	}
}

func (f *IndividualForm) State() IndividualState {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.state
	if st.TargetStream != nil {
		s := *st.TargetStream
		st.TargetStream = &s
	}
	if st.Validation != nil {
		v := ValidationResult{Warnings: append([]string(nil), st.Validation.Warnings...), Blocking: st.Validation.Blocking}
		st.Validation = &v
	}
	if st.FieldErrors != nil {
		flds := make(map[string]string, len(st.FieldErrors))
		for k, v := range st.FieldErrors {
			flds[k] = v
		}
		st.FieldErrors = flds
	}
	return st
}

// Select changes the student and target of the form and re-validates the selection.
// Without a student or a target level the validation result is cleared and nothing is sent.
func (f *IndividualForm) Select(studentID, targetLevel string, targetStream *string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	level, stream := f.d.catalog.normalize(targetLevel, targetStream)
	f.state.StudentID = core.CleanString(studentID)
	f.state.TargetLevel = level
	f.state.TargetStream = stream
	f.state.StreamRequired = f.d.catalog.StreamRequired(level)
	f.state.FieldErrors = nil
	f.state.Validation = nil

	if f.state.StudentID == "" || f.state.TargetLevel == "" {
		f.gen.invalidate()
		f.state.Validating = false
		return
	}

	req := school.ValidationRequest{
		StudentID:    f.state.StudentID,
		TargetLevel:  level,
		TargetStream: stream,
	}
	ctx, t := f.gen.begin(context.Background())
	f.state.Validating = true
	f.d.async(func() { f.validate(ctx, t, req) })
}

func (f *IndividualForm) SetOutcome(outcome school.Outcome) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Outcome = outcome
}

func (f *IndividualForm) SetRemarks(remarks string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Remarks = core.CleanString(remarks)
}

// validate runs one validation query. Failures degrade to "no warnings known".
func (f *IndividualForm) validate(ctx context.Context, t ticket, req school.ValidationRequest) {
	if err := debounce(ctx, f.d.debounce); err != nil {
		return // superseded
	}
	vctx, cancel := f.d.withTimeout(ctx)
	defer cancel()
	res, err := f.d.backend.ValidatePromotion(vctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.gen.current(t) {
		f.d.logger.Debug("discarding stale validation", map[string]interface{}{"student": req.StudentID, "target": req.TargetLevel})
		return
	}
	f.gen.settle(t)
	f.state.Validating = false
	if err != nil {
		if !f.d.escalate(err) {
			f.d.logger.Warn("validating promotion", errors.Wrapf(err, "student %s", req.StudentID))
		}
		f.state.Validation = nil
		return
	}
	f.state.Validation = &ValidationResult{Warnings: append([]string(nil), res.Warnings...)}
}

// Submit promotes the selected student. Input errors are reported as a *core.ValidationError
// and never reach the backend; on failure the form is kept as is for a retry.
// On success the form is cleared, unless another student or target was selected meanwhile.
func (f *IndividualForm) Submit(ctx context.Context) (school.ExecutionResult, error) {
	f.mu.Lock()
	if f.state.Loading {
		f.mu.Unlock()
		return school.ExecutionResult{}, ErrInFlight
	}
	session, err := f.d.sessions.require()
	if err != nil {
		f.mu.Unlock()
		return school.ExecutionResult{}, err
	}
	req := school.PromotionRequest{
		StudentID:    f.state.StudentID,
		TargetLevel:  f.state.TargetLevel,
		TargetStream: f.state.TargetStream,
		Outcome:      f.state.Outcome,
		Remarks:      f.state.Remarks,
	}
	if err := f.d.check(ctx, req); err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) {
			f.state.FieldErrors = vErr.FieldMap()
		}
		f.mu.Unlock()
		return school.ExecutionResult{}, err
	}
	f.state.FieldErrors = nil
	f.state.LastError = nil
	f.state.Loading = true
	f.mu.Unlock()

	f.d.logger.Info("promoting student", map[string]interface{}{
		"student": req.StudentID, "target": school.CohortLabel(req.TargetLevel, req.TargetStream),
		"outcome": req.Outcome, "session": session.Label(),
	})
	pctx, cancel := f.d.withTimeout(ctx)
	res, err := f.d.backend.PromoteStudent(pctx, req)
	cancel()
	if err == nil && !res.Success {
		err = &ExecutionError{Op: "promote student", Message: res.Message}
		if res.Message == "" {
			err = newExecutionError("promote student", errors.New("rejected by server"))
		}
	}

	f.mu.Lock()
	f.state.Loading = false
	if err != nil {
		if f.d.escalate(err) {
			f.state.LastError = err
			f.mu.Unlock()
			return school.ExecutionResult{}, err
		}
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			execErr = newExecutionError("promote student", err)
		}
		f.state.LastError = execErr
		f.mu.Unlock()

		f.d.logger.Error("promoting student", execErr)
		f.d.surface(TabIndividual, NoticeError, execErr.Message)
		return school.ExecutionResult{}, execErr
	}

	if f.selected(req) {
		f.gen.invalidate()
		f.state = IndividualState{
			Outcome:    school.OutcomePromoted,
			LastResult: &res,
		}
	} else {
		// a newer selection was made while submitting; keep it
		f.state.LastResult = &res
	}
	f.mu.Unlock()

	msg := res.Message
	if msg == "" {
		msg = promotedMessage
	}
	f.d.surface(TabIndividual, NoticeSuccess, msg)
	f.d.refreshRoster(ctx)
	return res, nil
}

// selected tells whether the form still targets req. Must be called with f.mu held.
func (f *IndividualForm) selected(req school.PromotionRequest) bool {
	return f.state.StudentID == req.StudentID &&
		f.state.TargetLevel == req.TargetLevel &&
		school.StreamValue(f.state.TargetStream) == school.StreamValue(req.TargetStream)
}
