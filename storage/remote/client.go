package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/promotion"
	"github.com/trezcool/masomo-console/core/school"
)

const (
	DefaultTimeout  = 10 * time.Second
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 64 << 10
)

// APIError is a non-2xx answer of the school server.
type APIError struct {
	Status  int
	Message string
	Fields  map[string]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.UserMessage())
}

// UserMessage is the server's message, or its field errors joined as "field: message".
func (e *APIError) UserMessage() string {
	if e.Message != "" || len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for fld, msg := range e.Fields {
		parts = append(parts, fld+": "+msg)
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func WithLogger(logger core.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// Client talks JSON to the school server's /v1 API.
type Client struct {
	baseURL *url.URL
	tokens  *TokenStore
	http    *http.Client
	timeout time.Duration
	logger  core.Logger
}

var _ promotion.Backend = (*Client)(nil)

func NewClient(baseURL string, tokens *TokenStore, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(core.CleanString(baseURL), "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parsing backend URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("backend URL %q: scheme must be http or https", baseURL)
	}
	if tokens == nil {
		tokens = NewTokenStore("")
	}
	c := &Client{
		baseURL: u,
		tokens:  tokens,
		http:    http.DefaultClient,
		timeout: DefaultTimeout,
		logger:  core.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ListStudents(ctx context.Context, filter school.StudentFilter) ([]school.Student, error) {
	var students []school.Student
	if err := c.do(ctx, http.MethodGet, "/v1/students", filter.Values(), nil, &students); err != nil {
		return nil, err
	}
	if students == nil {
		students = []school.Student{}
	}
	return students, nil
}

func (c *Client) ListClassLevels(ctx context.Context) ([]school.ClassLevel, error) {
	var levels []school.ClassLevel
	if err := c.do(ctx, http.MethodGet, "/v1/classes", nil, nil, &levels); err != nil {
		return nil, err
	}
	return levels, nil
}

// GetCurrentSession maps both 204 No Content and a null body to nil.
func (c *Client) GetCurrentSession(ctx context.Context) (*school.AcademicSession, error) {
	var session *school.AcademicSession
	if err := c.do(ctx, http.MethodGet, "/v1/sessions/current", nil, nil, &session); err != nil {
		return nil, err
	}
	return session, nil
}

func (c *Client) ValidatePromotion(ctx context.Context, req school.ValidationRequest) (school.Warnings, error) {
	var res school.Warnings
	err := c.do(ctx, http.MethodPost, "/v1/promotions/validate", nil, req, &res)
	return res, err
}

func (c *Client) PromoteStudent(ctx context.Context, req school.PromotionRequest) (school.ExecutionResult, error) {
	var res school.ExecutionResult
	err := c.do(ctx, http.MethodPost, "/v1/promotions", nil, req, &res)
	return res, err
}

func (c *Client) BulkPromote(ctx context.Context, req school.BulkPromotionRequest) (school.OutcomeReport, error) {
	var res school.OutcomeReport
	err := c.do(ctx, http.MethodPost, "/v1/promotions/bulk", nil, req, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.baseURL
	u.Path += path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrapf(err, "encoding %s %s", method, path)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return errors.Wrapf(err, "building %s %s", method, path)
	}
	reqID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()
	c.logger.Debug("backend call", map[string]interface{}{
		"method": method, "path": path, "status": resp.StatusCode,
		"request_id": reqID, "duration": time.Since(start).String(),
	})

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		apiErr := decodeError(resp)
		c.tokens.Clear()
		return errors.Wrapf(promotion.ErrUnauthenticated, "%s %s: %s", method, path, apiErr.Error())
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return errors.Wrapf(decodeError(resp), "%s %s", method, path)
	case resp.StatusCode == http.StatusNoContent || out == nil:
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return errors.Wrapf(err, "decoding %s %s", method, path)
	}
	return nil
}

// decodeError reads {"error": "..."} or a {field: message} map from resp.
func decodeError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	data, err := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = core.CleanString(string(data))
		return apiErr
	}
	if msg, ok := payload["error"].(string); ok {
		apiErr.Message = msg
		return apiErr
	}
	apiErr.Fields = make(map[string]string, len(payload))
	for fld, v := range payload {
		if msg, ok := v.(string); ok {
			apiErr.Fields[fld] = msg
		}
	}
	if len(apiErr.Fields) == 0 {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
