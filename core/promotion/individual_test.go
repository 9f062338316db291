package promotion

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/school"
)

func TestIndividualForm_Select_discardsStaleValidation(t *testing.T) {
	backend := newFakeBackend()
	started := make(chan struct{})
	release := make(chan struct{})
	backend.validateHook = func(ctx context.Context, req school.ValidationRequest) (school.Warnings, error) {
		if req.StudentID == "ADM-001" {
			close(started)
			<-release
			return school.Warnings{Warnings: []string{"stale warning"}}, nil
		}
		return school.Warnings{Warnings: []string{"fresh warning"}}, nil
	}
	orc := setup(t, backend)
	form := orc.Individual()

	form.Select("ADM-001", "Form 2", streamA)
	<-started
	form.Select("ADM-002", "Form 2", streamB)

	assert.Eventually(t, func() bool {
		return form.State().Validation != nil
	}, time.Second, 5*time.Millisecond)

	close(release)
	orc.Wait()

	st := form.State()
	assert.False(t, st.Validating)
	require.NotNil(t, st.Validation)
	assert.Equal(t, []string{"fresh warning"}, st.Validation.Warnings)
	assert.False(t, st.Validation.Blocking)
	assert.Equal(t, "ADM-002", st.StudentID)
}

func TestIndividualForm_Select_debounceSendsLatestOnly(t *testing.T) {
	backend := newFakeBackend()
	orc := setup(t, backend, WithDebounce(50*time.Millisecond))
	form := orc.Individual()

	form.Select("ADM-001", "Form 2", streamA)
	form.Select("ADM-001", "Form 2", streamB)
	form.Select("ADM-002", "Form 3", nil)
	orc.Wait()

	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.validations, 1)
	assert.Equal(t, school.ValidationRequest{StudentID: "ADM-002", TargetLevel: "Form 3"}, backend.validations[0])
}

func TestIndividualForm_Select_incomplete(t *testing.T) {
	backend := newFakeBackend()
	orc := setup(t, backend)
	form := orc.Individual()

	form.Select("ADM-001", "Form 2", streamA)
	orc.Wait()
	require.NotNil(t, form.State().Validation)

	form.Select("", "Form 2", streamA)
	orc.Wait()

	st := form.State()
	assert.Nil(t, st.Validation)
	assert.False(t, st.Validating)
	_, validations, _, _ := backend.counts()
	assert.Equal(t, 1, validations)
}

func TestIndividualForm_Select_normalizesTarget(t *testing.T) {
	orc := setup(t, newFakeBackend())
	form := orc.Individual()

	form.Select(" ADM-001 ", "form 2", school.Stream("a"))
	orc.Wait()
	st := form.State()
	assert.Equal(t, "ADM-001", st.StudentID)
	assert.Equal(t, "Form 2", st.TargetLevel)
	require.NotNil(t, st.TargetStream)
	assert.Equal(t, "A", *st.TargetStream)
	assert.True(t, st.StreamRequired)

	// a stream is never kept for an unstreamed level
	form.Select("ADM-001", "Form 3", streamA)
	orc.Wait()
	st = form.State()
	assert.Nil(t, st.TargetStream)
	assert.False(t, st.StreamRequired)
}

func TestIndividualForm_Select_validationFailureIsAdvisory(t *testing.T) {
	backend := newFakeBackend()
	backend.validateHook = func(context.Context, school.ValidationRequest) (school.Warnings, error) {
		return school.Warnings{}, errors.New("connection reset by peer")
	}
	orc := setup(t, backend)
	form := orc.Individual()

	form.Select("ADM-003", "Form 3", nil)
	orc.Wait()
	assert.Nil(t, form.State().Validation)

	_, err := form.Submit(context.Background())
	require.NoError(t, err)
	_, _, promotions, _ := backend.counts()
	assert.Equal(t, 1, promotions)
}

func TestIndividualForm_Submit_localChecks(t *testing.T) {
	tests := []struct {
		name      string
		student   string
		level     string
		stream    *string
		outcome   school.Outcome
		wantField string
	}{
		{name: "no student", level: "Form 3", outcome: school.OutcomePromoted, wantField: "student_id"},
		{name: "bad admission number", student: "ADM 001", level: "Form 3", outcome: school.OutcomePromoted, wantField: "student_id"},
		{name: "no target level", student: "ADM-001", outcome: school.OutcomePromoted, wantField: "target_level"},
		{name: "unknown target level", student: "ADM-001", level: "Grade 13", outcome: school.OutcomePromoted, wantField: "target_level"},
		{name: "streamed level without stream", student: "ADM-001", level: "Form 2", outcome: school.OutcomePromoted, wantField: "target_stream"},
		{name: "unknown stream", student: "ADM-001", level: "Form 2", stream: school.Stream("Z"), outcome: school.OutcomePromoted, wantField: "target_stream"},
		{name: "unknown outcome", student: "ADM-001", level: "Form 3", outcome: "expelled", wantField: "outcome"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			orc := setup(t, backend)
			form := orc.Individual()
			form.Select(tt.student, tt.level, tt.stream)
			form.SetOutcome(tt.outcome)
			orc.Wait()

			_, err := form.Submit(context.Background())
			var vErr *core.ValidationError
			require.True(t, errors.As(err, &vErr), "Submit() error = %v, want *core.ValidationError", err)
			assert.Contains(t, vErr.FieldMap(), tt.wantField)
			assert.Contains(t, form.State().FieldErrors, tt.wantField)

			_, _, promotions, _ := backend.counts()
			assert.Zero(t, promotions, "backend must not be contacted")
		})
	}
}

func TestIndividualForm_Submit_unstreamedLevelNeedsNoStream(t *testing.T) {
	backend := newFakeBackend()
	orc := setup(t, backend)
	form := orc.Individual()
	form.Select("ADM-003", "Form 3", nil)

	_, err := form.Submit(context.Background())
	require.NoError(t, err)
	backend.mu.Lock()
	defer backend.mu.Unlock()
	require.Len(t, backend.promotions, 1)
	assert.Nil(t, backend.promotions[0].TargetStream)
	assert.Equal(t, school.OutcomePromoted, backend.promotions[0].Outcome)
}

func TestIndividualForm_Submit_noSession(t *testing.T) {
	backend := newFakeBackend()
	backend.session = nil
	orc := setup(t, backend)
	form := orc.Individual()
	form.Select("ADM-003", "Form 3", nil)

	_, err := form.Submit(context.Background())
	assert.True(t, errors.Is(err, ErrNoCurrentSession))
	assert.False(t, orc.CanSubmit())
	assert.NotEmpty(t, orc.SessionWarning())

	_, _, promotions, _ := backend.counts()
	assert.Zero(t, promotions)
}

func TestIndividualForm_Submit_success(t *testing.T) {
	backend := newFakeBackend()
	orc := setup(t, backend)
	roster := school.CohortFilter("Form 2", streamA)
	_, err := orc.QueryRoster(context.Background(), roster)
	require.NoError(t, err)

	form := orc.Individual()
	form.Select("ADM-003", "Form 3", nil)
	form.SetRemarks("  good progress ")
	orc.Wait()
	lists, _, _, _ := backend.counts()

	res, err := form.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Success)

	st := form.State()
	assert.Empty(t, st.StudentID)
	assert.Empty(t, st.TargetLevel)
	assert.Nil(t, st.TargetStream)
	assert.Empty(t, st.Remarks)
	assert.Nil(t, st.Validation)
	assert.Equal(t, school.OutcomePromoted, st.Outcome)
	require.NotNil(t, st.LastResult)

	// the active roster filter was re-queried
	newLists, _, _, _ := backend.counts()
	assert.Equal(t, lists+1, newLists)
	assert.Equal(t, roster, backend.lastFilter())

	notice, ok := orc.Notices().Current()
	require.True(t, ok)
	assert.Equal(t, NoticeSuccess, notice.Kind)
	assert.Equal(t, "Student promoted successfully.", notice.Message)

	backend.mu.Lock()
	assert.Equal(t, "good progress", backend.promotions[0].Remarks)
	backend.mu.Unlock()
}

func TestIndividualForm_Submit_keepsNewerSelection(t *testing.T) {
	backend := newFakeBackend()
	started := make(chan struct{})
	release := make(chan struct{})
	backend.promoteHook = func(context.Context, school.PromotionRequest) (school.ExecutionResult, error) {
		close(started)
		<-release
		return school.ExecutionResult{Success: true, Message: "Chebet Kiprop promoted to Form 3."}, nil
	}
	orc := setup(t, backend)
	form := orc.Individual()
	form.Select("ADM-003", "Form 3", nil)
	orc.Wait()

	done := make(chan error, 1)
	go func() {
		_, err := form.Submit(context.Background())
		done <- err
	}()
	<-started
	form.Select("ADM-004", "Form 3", nil)
	close(release)
	require.NoError(t, <-done)
	orc.Wait()

	st := form.State()
	assert.Equal(t, "ADM-004", st.StudentID)
	assert.Equal(t, "Form 3", st.TargetLevel)
	assert.NotNil(t, st.Validation)
	require.NotNil(t, st.LastResult)
	assert.Equal(t, "Chebet Kiprop promoted to Form 3.", st.LastResult.Message)
}

func TestIndividualForm_Submit_failurePreservesForm(t *testing.T) {
	tests := []struct {
		name    string
		result  school.ExecutionResult
		err     error
		wantMsg string
	}{
		{
			name:    "server message",
			err:     apiError{msg: "Stream Form 3 is full"},
			wantMsg: "Stream Form 3 is full",
		},
		{name: "transport error", err: errors.New("dial tcp: connection refused"), wantMsg: genericExecutionMessage},
		{name: "timeout", err: errors.Wrap(context.DeadlineExceeded, "post"), wantMsg: timeoutMessage},
		{name: "rejected result", result: school.ExecutionResult{Message: "Student is suspended"}, wantMsg: "Student is suspended"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.promoteHook = func(context.Context, school.PromotionRequest) (school.ExecutionResult, error) {
				return tt.result, tt.err
			}
			orc := setup(t, backend)
			form := orc.Individual()
			form.Select("ADM-003", "Form 3", nil)
			form.SetOutcome(school.OutcomeRepeated)
			form.SetRemarks("retry")
			orc.Wait()

			_, err := form.Submit(context.Background())
			var execErr *ExecutionError
			require.True(t, errors.As(err, &execErr), "Submit() error = %v", err)
			assert.Equal(t, tt.wantMsg, execErr.Message)

			st := form.State()
			assert.Equal(t, "ADM-003", st.StudentID)
			assert.Equal(t, "Form 3", st.TargetLevel)
			assert.Equal(t, school.OutcomeRepeated, st.Outcome)
			assert.Equal(t, "retry", st.Remarks)
			assert.False(t, st.Loading)
			assert.Equal(t, err, st.LastError)

			notice, ok := orc.Notices().Current()
			require.True(t, ok)
			assert.Equal(t, NoticeError, notice.Kind)
			assert.Equal(t, tt.wantMsg, notice.Message)
		})
	}
}

func TestIndividualForm_Submit_unauthenticated(t *testing.T) {
	backend := newFakeBackend()
	backend.promoteHook = func(context.Context, school.PromotionRequest) (school.ExecutionResult, error) {
		return school.ExecutionResult{}, errors.Wrap(ErrUnauthenticated, "401 Unauthorized")
	}
	var escalated error
	orc := setup(t, backend, WithBoundary(BoundaryFunc(func(err error) { escalated = err })))
	form := orc.Individual()
	form.Select("ADM-003", "Form 3", nil)

	_, err := form.Submit(context.Background())
	assert.True(t, IsUnauthenticated(err))
	assert.True(t, IsUnauthenticated(escalated))
	_, ok := orc.Notices().Current()
	assert.False(t, ok)
}

type apiError struct {
	msg string
}

func (e apiError) Error() string       { return "400 Bad Request: " + e.msg }
func (e apiError) UserMessage() string { return e.msg }
