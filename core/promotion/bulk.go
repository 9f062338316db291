package promotion

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/school"
)

// Phase is a state of the bulk promotion form.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCohortSelected
	PhasePreviewLoaded
	PhaseConfirming
	PhaseExecuting
	PhaseSucceeded
	PhasePartiallySucceeded
	PhaseFailed
)

var phaseNames = [...]string{
	PhaseIdle:               "idle",
	PhaseCohortSelected:     "cohort selected",
	PhasePreviewLoaded:      "preview loaded",
	PhaseConfirming:         "confirming",
	PhaseExecuting:          "executing",
	PhaseSucceeded:          "succeeded",
	PhasePartiallySucceeded: "partially succeeded",
	PhaseFailed:             "failed",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) Terminal() bool {
	return p == PhaseSucceeded || p == PhasePartiallySucceeded || p == PhaseFailed
}

// Cohort selects a class level and, for streamed levels, one of its streams.
type Cohort struct {
	Level  string
	Stream *string
}

func (c Cohort) Label() string {
	return school.CohortLabel(c.Level, c.Stream)
}

// Confirmation is what the operator must explicitly accept before a bulk promotion runs.
type Confirmation struct {
	CohortSize int
	Source     string
	Target     string
	Session    string
}

func (c Confirmation) Prompt() string {
	noun := "students"
	if c.CohortSize == 1 {
		noun = "student"
	}
	return fmt.Sprintf(
		"Promote %d active %s from %s to %s for %s? This cannot be undone.",
		c.CohortSize, noun, c.Source, c.Target, c.Session,
	)
}

type OutcomeKind int

const (
	BulkSucceeded OutcomeKind = iota
	BulkPartiallySucceeded
	BulkFailed
)

func (k OutcomeKind) String() string {
	switch k {
	case BulkSucceeded:
		return "succeeded"
	case BulkPartiallySucceeded:
		return "partially succeeded"
	}
	return "failed"
}

// BulkOutcome is the result of one bulk promotion.
// Report is set unless the call itself failed; Err is set iff Kind is BulkFailed.
type BulkOutcome struct {
	Kind    OutcomeKind
	Request school.BulkPromotionRequest
	Report  school.OutcomeReport
	Err     error
}

func classifyBulk(req school.BulkPromotionRequest, report school.OutcomeReport, err error) BulkOutcome {
	out := BulkOutcome{Request: req, Report: report}
	switch {
	case err != nil:
		out.Kind = BulkFailed
		out.Err = err
	case len(report.Failures) == 0:
		out.Kind = BulkSucceeded
	case report.Succeeded > 0:
		out.Kind = BulkPartiallySucceeded
	default:
		msg := report.Message
		if msg == "" {
			msg = fmt.Sprintf("No students were promoted; %d require attention.", len(report.Failures))
		}
		out.Kind = BulkFailed
		out.Err = &ExecutionError{Op: "bulk promote", Message: msg}
	}
	return out
}

func (o BulkOutcome) Phase() Phase {
	switch o.Kind {
	case BulkSucceeded:
		return PhaseSucceeded
	case BulkPartiallySucceeded:
		return PhasePartiallySucceeded
	}
	return PhaseFailed
}

// Summary is the notification text of the outcome.
func (o BulkOutcome) Summary() string {
	switch o.Kind {
	case BulkSucceeded:
		if o.Report.Message != "" {
			return o.Report.Message
		}
		return fmt.Sprintf("%d/%d students promoted from %s to %s.",
			o.Report.Succeeded, o.Report.TotalStudents, o.Request.Source(), o.Request.Target())
	case BulkPartiallySucceeded:
		return fmt.Sprintf("%d/%d students promoted; %d require attention",
			o.Report.Succeeded, o.Report.TotalStudents, len(o.Report.Failures))
	}
	var execErr *ExecutionError
	if errors.As(o.Err, &execErr) {
		return execErr.Message
	}
	if o.Err != nil {
		return o.Err.Error()
	}
	return genericExecutionMessage
}

// FailureDetails lists the per-student failures as "<admission no>: <reason>".
func (o BulkOutcome) FailureDetails() []string {
	details := make([]string, 0, len(o.Report.Failures))
	for _, f := range o.Report.Failures {
		details = append(details, fmt.Sprintf("%s: %s", f.StudentID, f.Reason))
	}
	return details
}

type BulkState struct {
	Phase                Phase
	Source               Cohort
	Target               Cohort
	SourceStreamRequired bool
	TargetStreamRequired bool

	PreviewLoading bool
	Preview        []school.Student
	PreviewError   error

	FieldErrors  map[string]string
	Confirmation *Confirmation
	LastOutcome  *BulkOutcome
}

// BulkForm promotes every active student of a cohort at once.
// Idle -> CohortSelected -> PreviewLoaded -> Confirming -> Executing -> terminal -> Idle.
type BulkForm struct {
	d        *deps
	cohort   *Roster
	observer func(Phase)

	mu      sync.Mutex
	state   BulkState
	gen     generation
	entered []Phase
}

func newBulkForm(d *deps, observer func(Phase)) *BulkForm {
	return &BulkForm{
		d:        d,
		cohort:   NewRoster(d.backend),
		observer: observer,
	}
}

func (f *BulkForm) State() BulkState {
	f.mu.Lock()
	defer f.mu.Unlock()

	st := f.state
	st.Preview = append([]school.Student(nil), st.Preview...)
	if st.Confirmation != nil {
		c := *st.Confirmation
		st.Confirmation = &c
	}
	if st.LastOutcome != nil {
		out := *st.LastOutcome
		out.Report.Failures = append([]school.StudentFailure(nil), out.Report.Failures...)
		st.LastOutcome = &out
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

func (f *BulkForm) Phase() Phase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Phase
}

// SelectSource changes the cohort to promote. A complete selection (known level, and a
// stream when the level has streams) triggers a preview query; any other one returns to Idle.
func (f *BulkForm) SelectSource(level string, stream *string) error {
	f.mu.Lock()
	defer f.unlock()

	if f.state.Phase == PhaseExecuting {
		return transitionError(f.state.Phase, "change the source cohort")
	}
	level, stream = f.d.catalog.normalize(level, stream)
	f.state.Source = Cohort{Level: level, Stream: stream}
	f.state.SourceStreamRequired = f.d.catalog.StreamRequired(level)
	f.state.Preview = nil
	f.state.PreviewError = nil
	f.state.Confirmation = nil
	f.state.FieldErrors = nil

	if !f.complete(f.state.Source) {
		f.gen.invalidate()
		f.state.PreviewLoading = false
		f.enter(PhaseIdle)
		return nil
	}

	filter := school.CohortFilter(level, stream)
	ctx, t := f.gen.begin(context.Background())
	f.state.PreviewLoading = true
	f.enter(PhaseCohortSelected)
	f.d.async(func() { f.loadPreview(ctx, t, filter) })
	return nil
}

// SelectTarget changes the class the cohort is promoted to. A pending confirmation is withdrawn.
func (f *BulkForm) SelectTarget(level string, stream *string) error {
	f.mu.Lock()
	defer f.unlock()

	if f.state.Phase == PhaseExecuting {
		return transitionError(f.state.Phase, "change the target class")
	}
	level, stream = f.d.catalog.normalize(level, stream)
	f.state.Target = Cohort{Level: level, Stream: stream}
	f.state.TargetStreamRequired = f.d.catalog.StreamRequired(level)
	f.state.FieldErrors = nil
	if f.state.Phase == PhaseConfirming {
		f.state.Confirmation = nil
		f.enter(PhasePreviewLoaded)
	}
	return nil
}

func (f *BulkForm) loadPreview(ctx context.Context, t ticket, filter school.StudentFilter) {
	if err := debounce(ctx, f.d.debounce); err != nil {
		return // superseded
	}
	qctx, cancel := f.d.withTimeout(ctx)
	defer cancel()
	students, err := f.cohort.Query(qctx, filter)

	f.mu.Lock()
	defer f.unlock()
	if !f.gen.current(t) {
		f.d.logger.Debug("discarding stale cohort preview", map[string]interface{}{"cohort": filter.String()})
		return
	}
	f.gen.settle(t)
	f.state.PreviewLoading = false
	if err != nil {
		if !f.d.escalate(err) {
			f.d.logger.Error("loading cohort preview", err)
		}
		f.state.PreviewError = err
		return
	}
	f.state.Preview = students
	if f.state.Phase == PhaseCohortSelected {
		f.enter(PhasePreviewLoaded)
	}
}

// RequestConfirmation checks the request locally and moves to Confirming.
// The returned Confirmation must be shown to, and accepted by, the operator before Execute.
func (f *BulkForm) RequestConfirmation(ctx context.Context) (Confirmation, error) {
	f.mu.Lock()
	defer f.unlock()

	if f.state.Phase != PhasePreviewLoaded {
		return Confirmation{}, transitionError(f.state.Phase, "confirm")
	}
	session, err := f.d.sessions.require()
	if err != nil {
		return Confirmation{}, err
	}
	req := f.request()
	if err := f.d.check(ctx, req); err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) {
			f.state.FieldErrors = vErr.FieldMap()
		}
		return Confirmation{}, err
	}
	f.state.FieldErrors = nil
	if len(f.state.Preview) == 0 {
		return Confirmation{}, errors.Wrapf(ErrEmptyCohort, "%s", req.Source())
	}

	conf := Confirmation{
		CohortSize: len(f.state.Preview),
		Source:     req.Source(),
		Target:     req.Target(),
		Session:    session.Label(),
	}
	f.state.Confirmation = &conf
	f.enter(PhaseConfirming)
	return conf, nil
}

// Cancel withdraws a pending confirmation.
func (f *BulkForm) Cancel() error {
	f.mu.Lock()
	defer f.unlock()

	if f.state.Phase != PhaseConfirming {
		return transitionError(f.state.Phase, "cancel")
	}
	f.state.Confirmation = nil
	f.enter(PhasePreviewLoaded)
	return nil
}

// Reset drops the selection and preview, unless a promotion is executing.
func (f *BulkForm) Reset() error {
	f.mu.Lock()
	defer f.unlock()

	if f.state.Phase == PhaseExecuting {
		return transitionError(f.state.Phase, "reset")
	}
	f.reset()
	return nil
}

// Execute runs the confirmed bulk promotion. Whatever the outcome, the form then
// returns to Idle with its preview cleared and, unless the credential was rejected,
// the roster is refreshed.
// The error is non-nil only when the form was not ready to execute.
func (f *BulkForm) Execute(ctx context.Context) (BulkOutcome, error) {
	f.mu.Lock()
	switch f.state.Phase {
	case PhaseConfirming:
	case PhaseExecuting:
		f.unlock()
		return BulkOutcome{}, ErrInFlight
	default:
		phase := f.state.Phase
		f.unlock()
		return BulkOutcome{}, errors.Wrapf(ErrConfirmationRequired, "bulk promotion %s", phase)
	}
	session, err := f.d.sessions.require()
	if err != nil {
		f.unlock()
		return BulkOutcome{}, err
	}
	req := f.request()
	f.enter(PhaseExecuting)
	f.unlock()

	f.d.logger.Info("bulk promoting cohort", map[string]interface{}{
		"source": req.Source(), "target": req.Target(), "session": session.Label(),
	})
	bctx, cancel := f.d.withTimeout(ctx)
	report, err := f.d.backend.BulkPromote(bctx, req)
	cancel()
	if err != nil && !f.d.escalate(err) {
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			execErr = newExecutionError("bulk promote", err)
		}
		err = execErr
	}
	out := classifyBulk(req, report, err)

	f.mu.Lock()
	f.enter(out.Phase())
	f.state.LastOutcome = &out
	f.reset()
	f.unlock()

	f.report(out)
	if !IsUnauthenticated(out.Err) {
		f.d.refreshRoster(ctx)
	}
	return out, nil
}

func (f *BulkForm) report(out BulkOutcome) {
	switch out.Kind {
	case BulkSucceeded:
		f.d.logger.Info("bulk promotion succeeded", map[string]interface{}{
			"source": out.Request.Source(), "target": out.Request.Target(), "succeeded": out.Report.Succeeded,
		})
		f.d.surface(TabBulk, NoticeSuccess, out.Summary())
	case BulkPartiallySucceeded:
		f.d.logger.Warn("bulk promotion partially succeeded", map[string]interface{}{
			"source": out.Request.Source(), "target": out.Request.Target(),
			"succeeded": out.Report.Succeeded, "total": out.Report.TotalStudents, "failed": len(out.Report.Failures),
		})
		f.d.surface(TabBulk, NoticeWarning, out.Summary(), out.FailureDetails()...)
	default:
		if IsUnauthenticated(out.Err) {
			return // escalated
		}
		f.d.logger.Error("bulk promotion failed", out.Err)
		f.d.surface(TabBulk, NoticeError, out.Summary(), out.FailureDetails()...)
	}
}

func (f *BulkForm) request() school.BulkPromotionRequest {
	return school.BulkPromotionRequest{
		SourceLevel:  f.state.Source.Level,
		SourceStream: f.state.Source.Stream,
		TargetLevel:  f.state.Target.Level,
		TargetStream: f.state.Target.Stream,
	}
}

// complete tells whether c names a catalog level, with a stream when the level has streams.
func (f *BulkForm) complete(c Cohort) bool {
	cl, ok := f.d.catalog.FindByLevel(c.Level)
	if !ok {
		return false
	}
	return !cl.HasStreams() || (c.Stream != nil && cl.HasStream(*c.Stream))
}

func (f *BulkForm) reset() {
	f.gen.invalidate()
	last := f.state.LastOutcome
	f.state = BulkState{LastOutcome: last}
	f.enter(PhaseIdle)
}

// enter must be called with f.mu held; observers are notified by unlock.
func (f *BulkForm) enter(p Phase) {
	f.state.Phase = p
	f.entered = append(f.entered, p)
}

func (f *BulkForm) unlock() {
	entered := f.entered
	f.entered = nil
	f.mu.Unlock()

	if f.observer == nil {
		return
	}
	for _, p := range entered {
		f.observer(p)
	}
}
