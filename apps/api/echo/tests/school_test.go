package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-console/core/school"
	inmemdb "github.com/trezcool/masomo-console/storage/inmem"
	"github.com/trezcool/masomo-console/tests"
)

var ctx = context.Background()

func TestHome(t *testing.T) {
	e := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	e.app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Masomo development backend!", rec.Body.String())
}

func TestAuthentication(t *testing.T) {
	e := setup(t)
	expired := *e.conf
	expired.Server.JWTExpirationDelta = -time.Hour

	runHTTPTests(t, e.app, []httpTest{
		{
			name:     "missing token",
			method:   http.MethodGet,
			path:     "/v1/classes",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "malformed token",
			method:   http.MethodGet,
			path:     "/v1/classes",
			token:    "not-a-jwt",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name:     "expired token",
			method:   http.MethodGet,
			path:     "/v1/classes",
			token:    testutil.Token(t, &expired, "registrar", true),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name:     "promotion without admin claim",
			method:   http.MethodPost,
			path:     "/v1/promotions",
			body:     []byte(`{"student_id":"ADM-010","target_level":"Form 3","outcome":"promoted"}`),
			token:    e.staffToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "bulk without admin claim",
			method:   http.MethodPost,
			path:     "/v1/promotions/bulk",
			body:     []byte(`{"source_level":"Form 2","source_stream":"A","target_level":"Form 3"}`),
			token:    e.staffToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
	})
}

func TestQueryStudents(t *testing.T) {
	e := setup(t)
	form2A, err := e.reg.ListStudents(ctx, school.CohortFilter("Form 2", school.Stream("A")))
	require.NoError(t, err)
	require.Len(t, form2A, 5)
	alumni, err := e.reg.ListStudents(ctx, school.StudentFilter{Status: school.StatusAlumni})
	require.NoError(t, err)
	all, err := e.reg.ListStudents(ctx, school.StudentFilter{})
	require.NoError(t, err)

	runHTTPTests(t, e.app, []httpTest{
		{
			name:     "all students",
			method:   http.MethodGet,
			path:     "/v1/students",
			token:    e.staffToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, all),
		},
		{
			name:     "active cohort",
			method:   http.MethodGet,
			path:     "/v1/students?class_level=Form+2&stream=A&status=active",
			token:    e.staffToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, form2A),
		},
		{
			name:     "status is case insensitive",
			method:   http.MethodGet,
			path:     "/v1/students?status=ALUMNI",
			token:    e.staffToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, alumni),
		},
		{
			name:     "unknown level",
			method:   http.MethodGet,
			path:     "/v1/students?class_level=Form+9",
			token:    e.staffToken,
			wantCode: http.StatusOK,
			wantData: []byte(`[]`),
		},
		{
			name:     "invalid status",
			method:   http.MethodGet,
			path:     "/v1/students?status=expelled",
			token:    e.staffToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"status":"status must be one of [active alumni suspended]"}`),
		},
	})
}

func TestQueryClasses(t *testing.T) {
	e := setup(t)
	req, rec := newAuthRequest(http.MethodGet, "/v1/classes", e.staffToken)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var levels []school.ClassLevel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &levels))
	require.Len(t, levels, 7)
	assert.Equal(t, "Grade 7", levels[0].Level)
	assert.Equal(t, "Form 3", levels[5].Level)
	assert.False(t, levels[5].HasStreams())
}

func TestCurrentSession(t *testing.T) {
	e := setup(t)
	runHTTPTests(t, e.app, []httpTest{
		{
			name:     "current",
			method:   http.MethodGet,
			path:     "/v1/sessions/current",
			token:    e.staffToken,
			wantCode: http.StatusOK,
			wantData: []byte(`{"id":"2026-1","year":2026,"term":1,"is_current":true,"status":"active"}`),
		},
	})

	require.NoError(t, e.reg.CloseSession("2026-1"))
	runHTTPTests(t, e.app, []httpTest{
		{
			name:     "none current",
			method:   http.MethodGet,
			path:     "/v1/sessions/current",
			token:    e.staffToken,
			wantCode: http.StatusNoContent,
		},
	})
}

func TestValidatePromotion(t *testing.T) {
	e := setup(t)
	runHTTPTests(t, e.app, []httpTest{
		{
			name:     "no warnings",
			method:   http.MethodPost,
			path:     "/v1/promotions/validate",
			body:     []byte(`{"student_id":"ADM-010","target_level":"Form 3"}`),
			token:    e.adminToken,
			wantCode: http.StatusOK,
			wantData: []byte(`{"warnings":[]}`),
		},
		{
			name:     "advisory warnings",
			method:   http.MethodPost,
			path:     "/v1/promotions/validate",
			body:     []byte(`{"student_id":"ADM-015","target_level":"form 2","target_stream":"a"}`),
			token:    e.adminToken,
			wantCode: http.StatusOK,
			wantData: []byte(`{"warnings":["Oscar Njoroge is suspended, not active.","Oscar Njoroge is already in Form 2 A."]}`),
		},
		{
			name:     "unknown student",
			method:   http.MethodPost,
			path:     "/v1/promotions/validate",
			body:     []byte(`{"student_id":"ADM-999","target_level":"Form 3"}`),
			token:    e.adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "validating promotion: ADM-999: student not found"}),
		},
		{
			name:     "missing fields",
			method:   http.MethodPost,
			path:     "/v1/promotions/validate",
			body:     []byte(`{}`),
			token:    e.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"student_id":"this field is required","target_level":"this field is required"}`),
		},
	})
}

func TestPromote(t *testing.T) {
	e := setup(t)
	runHTTPTests(t, e.app, []httpTest{
		{
			name:     "stream required",
			method:   http.MethodPost,
			path:     "/v1/promotions",
			body:     []byte(`{"student_id":"ADM-010","target_level":"Form 4","outcome":"promoted"}`),
			token:    e.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"target_stream":"a stream is required for this class level"}`),
		},
		{
			name:     "unknown stream",
			method:   http.MethodPost,
			path:     "/v1/promotions",
			body:     []byte(`{"student_id":"ADM-010","target_level":"Form 4","target_stream":"North","outcome":"promoted"}`),
			token:    e.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"target_stream":"this stream is not offered for the class level"}`),
		},
		{
			name:     "unknown class level",
			method:   http.MethodPost,
			path:     "/v1/promotions",
			body:     []byte(`{"student_id":"ADM-010","target_level":"Form 9","outcome":"promoted"}`),
			token:    e.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"target_level":"unknown class level"}`),
		},
		{
			name:     "missing outcome",
			method:   http.MethodPost,
			path:     "/v1/promotions",
			body:     []byte(`{"student_id":"ADM-010","target_level":"Form 3"}`),
			token:    e.adminToken,
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"outcome":"this field is required"}`),
		},
		{
			name:     "inactive student",
			method:   http.MethodPost,
			path:     "/v1/promotions",
			body:     []byte(`{"student_id":"ADM-015","target_level":"Form 3","outcome":"promoted"}`),
			token:    e.adminToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "Oscar Njoroge is suspended and cannot be promoted"}),
		},
		{
			name:     "promoted",
			method:   http.MethodPost,
			path:     "/v1/promotions",
			body:     []byte(`{"student_id":"ADM-010","target_level":"Form 3","outcome":"promoted","remarks":"Top of the class"}`),
			token:    e.adminToken,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, school.ExecutionResult{Success: true, Message: "Joy Akinyi promoted to Form 3."}),
		},
	})

	stud, err := e.reg.Student("ADM-010")
	require.NoError(t, err)
	assert.Equal(t, "Form 3", stud.Cohort())
	history := e.reg.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Top of the class", history[0].Remarks)
	assert.Equal(t, "2026-1", history[0].SessionID)
}

func TestPromote_noCurrentSession(t *testing.T) {
	e := setup(t)
	require.NoError(t, e.reg.CloseSession("2026-1"))

	runHTTPTests(t, e.app, []httpTest{
		{
			name:     "promote",
			method:   http.MethodPost,
			path:     "/v1/promotions",
			body:     []byte(`{"student_id":"ADM-010","target_level":"Form 3","outcome":"promoted"}`),
			token:    e.adminToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "no current academic session"}),
		},
		{
			name:     "bulk",
			method:   http.MethodPost,
			path:     "/v1/promotions/bulk",
			body:     []byte(`{"source_level":"Form 2","source_stream":"A","target_level":"Form 3"}`),
			token:    e.adminToken,
			wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: "no current academic session"}),
		},
	})
}

func TestBulkPromote(t *testing.T) {
	tests := []struct {
		name     string
		opts     []inmemdb.Option
		body     string
		wantCode int
		wantData interface{}
	}{
		{
			name:     "whole cohort",
			body:     `{"source_level":"Form 2","source_stream":"A","target_level":"Form 3"}`,
			wantCode: http.StatusOK,
			wantData: school.OutcomeReport{
				Succeeded: 5, TotalStudents: 5, Failures: []school.StudentFailure{},
				Message: "5 of 5 students promoted from Form 2 A to Form 3.",
			},
		},
		{
			name:     "target fills up",
			opts:     []inmemdb.Option{inmemdb.WithStreamCapacity(3)},
			body:     `{"source_level":"Form 2","source_stream":"A","target_level":"Form 3"}`,
			wantCode: http.StatusOK,
			wantData: school.OutcomeReport{
				Succeeded: 2, TotalStudents: 5,
				Failures: []school.StudentFailure{
					{StudentID: "ADM-012", Reason: "Form 3 is full (3 students)"},
					{StudentID: "ADM-013", Reason: "Form 3 is full (3 students)"},
					{StudentID: "ADM-014", Reason: "Form 3 is full (3 students)"},
				},
				Message: "2 of 5 students promoted from Form 2 A to Form 3.",
			},
		},
		{
			name:     "same cohort",
			body:     `{"source_level":"Form 2","source_stream":"A","target_level":"Form 2","target_stream":"a"}`,
			wantCode: http.StatusConflict,
			wantData: httpErr{Error: "Form 2 A is both the source and the target"},
		},
		{
			name:     "source stream required",
			body:     `{"source_level":"Form 2","target_level":"Form 3"}`,
			wantCode: http.StatusBadRequest,
			wantData: map[string]string{"source_stream": "a stream is required for this class level"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t, tt.opts...)
			req, rec := newAuthRequest(http.MethodPost, "/v1/promotions/bulk", e.adminToken, []byte(tt.body))
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: marchallObj(t, tt.wantData)}, rec)
		})
	}
}
