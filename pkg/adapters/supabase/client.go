// Package supabase is the gateway's client for the row-level REST store.
// All calls run with the service role; authorization decisions stay in the
// gateway.
package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/august4056/parallel/pkg/httpx"
	"github.com/august4056/parallel/pkg/models"
)

// Client talks to the store's REST surface under /rest/v1.
type Client struct {
	HTTP       *http.Client
	ServiceKey string
	Retries    int
	RetryDelay time.Duration

	restURL string
}

func New(baseURL, serviceKey string) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("store base URL is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, err
	}
	if strings.TrimSpace(serviceKey) == "" {
		return nil, errors.New("store service key is required")
	}
	return &Client{
		HTTP:       &http.Client{Timeout: 10 * time.Second},
		ServiceKey: serviceKey,
		Retries:    2,
		RetryDelay: 200 * time.Millisecond,
		restURL:    trimmed + "/rest/v1",
	}, nil
}

func (c *Client) headers(extra map[string]string) map[string]string {
	h := map[string]string{
		"Authorization": "Bearer " + c.ServiceKey,
		"apikey":        c.ServiceKey,
	}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func (c *Client) list(ctx context.Context, table, query string, out interface{}) error {
	endpoint := c.restURL + "/" + table + "?" + query
	status, body, err := httpx.RequestJSON(ctx, c.HTTP, http.MethodGet, endpoint, nil, c.headers(nil), c.Retries, c.RetryDelay)
	if err != nil {
		return httpx.UpstreamErr("store unreachable", err)
	}
	if status >= 300 {
		return upstreamError(status, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return httpx.UpstreamErr("store returned malformed rows", err)
	}
	return nil
}

// insert posts one row and decodes the representation echo, which arrives as
// a one-element array.
func (c *Client) insert(ctx context.Context, table string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := c.restURL + "/" + table
	headers := c.headers(map[string]string{"Prefer": "return=representation"})
	status, respBody, err := httpx.RequestJSON(ctx, c.HTTP, http.MethodPost, endpoint, body, headers, 0, 0)
	if err != nil {
		return httpx.UpstreamErr("store unreachable", err)
	}
	if status >= 300 {
		return upstreamError(status, respBody)
	}
	return decodeSingle(respBody, out)
}

func decodeSingle(body []byte, out interface{}) error {
	var rows []json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return httpx.UpstreamErr("store returned malformed rows", err)
	}
	if len(rows) == 0 {
		return httpx.UpstreamErr("store returned no representation", nil)
	}
	if err := json.Unmarshal(rows[0], out); err != nil {
		return httpx.UpstreamErr("store returned malformed rows", err)
	}
	return nil
}

// upstreamError extracts the store's message with precedence message, then
// error, then the HTTP status text.
func upstreamError(status int, body []byte) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return httpx.UpstreamErr(msg, nil)
}

// ListAssignments returns every assignment ordered by due date ascending.
func (c *Client) ListAssignments(ctx context.Context) ([]models.Assignment, error) {
	var records []assignmentRecord
	if err := c.list(ctx, "assignments", "select=*&order=due_at.asc", &records); err != nil {
		return nil, err
	}
	out := make([]models.Assignment, 0, len(records))
	for _, r := range records {
		out = append(out, r.toModel())
	}
	return out, nil
}

// AssignmentInsert is a new assignment row.
// AssignmentInsert is a new assignment row. Description is stored as the
// empty string when the instructor supplied none.
type AssignmentInsert struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueAt       string `json:"due_at"`
	CreatedBy   string `json:"created_by"`
}

func (c *Client) InsertAssignment(ctx context.Context, in AssignmentInsert) (models.Assignment, error) {
	var record assignmentRecord
	if err := c.insert(ctx, "assignments", in, &record); err != nil {
		return models.Assignment{}, err
	}
	return record.toModel(), nil
}

// ListSubmissions returns submissions for an assignment, newest first.
// A non-empty userID narrows the result to that user's rows.
func (c *Client) ListSubmissions(ctx context.Context, assignmentID, userID string) ([]models.Submission, error) {
	query := "select=*&assignment_id=eq." + url.QueryEscape(assignmentID)
	if userID != "" {
		query += "&user_id=eq." + url.QueryEscape(userID)
	}
	query += "&order=created_at.desc"
	var records []submissionRecord
	if err := c.list(ctx, "submissions", query, &records); err != nil {
		return nil, err
	}
	out := make([]models.Submission, 0, len(records))
	for _, r := range records {
		out = append(out, r.toModel())
	}
	return out, nil
}

// SubmissionInsert is a new submission row. Status is always set by the
// gateway, never by the caller.
type SubmissionInsert struct {
	AssignmentID string `json:"assignment_id"`
	UserID       string `json:"user_id"`
	RepoURL      string `json:"repo_url"`
	Status       string `json:"status"`
}

func (c *Client) InsertSubmission(ctx context.Context, in SubmissionInsert) (models.Submission, error) {
	in.Status = string(models.StatusQueued)
	var record submissionRecord
	if err := c.insert(ctx, "submissions", in, &record); err != nil {
		return models.Submission{}, err
	}
	return record.toModel(), nil
}

const gradeSelect = "id,submission_id,rubric_json,total_score,graded_at,submission:submissions(user_id)"

// FetchGrade returns the grade for a submission with the owning user joined
// in, or nil when no grade exists.
func (c *Client) FetchGrade(ctx context.Context, submissionID string) (*models.Grade, error) {
	query := "submission_id=eq." + url.QueryEscape(submissionID) + "&select=" + url.QueryEscape(gradeSelect) + "&limit=1"
	var records []gradeRecord
	if err := c.list(ctx, "grades", query, &records); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	g := records[0].toModel()
	return &g, nil
}
