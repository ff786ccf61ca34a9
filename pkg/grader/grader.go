// Package grader dispatches accepted submissions to the grading worker.
// Dispatch is fire and forget: a failed handoff is logged and counted but
// never surfaces to the submitting student, and the worker is expected to
// pull anything it missed.
package grader

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/august4056/parallel/pkg/httpx"
	"github.com/august4056/parallel/pkg/metrics"
)

// Dispatcher posts grading jobs to the worker endpoint.
type Dispatcher struct {
	HTTP    *http.Client
	URL     string
	Token   string
	Timeout time.Duration
	Log     zerolog.Logger
	Metrics *metrics.Registry
}

// Job is the payload handed to the grading worker.
type Job struct {
	SubmissionID string `json:"submissionId"`
	AssignmentID string `json:"assignmentId"`
	RepoURL      string `json:"repoUrl"`
	UserID       string `json:"userId"`
}

func New(url, token string, log zerolog.Logger, reg *metrics.Registry) *Dispatcher {
	return &Dispatcher{
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		URL:     url,
		Token:   token,
		Timeout: 10 * time.Second,
		Log:     log,
		Metrics: reg,
	}
}

// Dispatch hands one job to the worker. It never returns an error; outcomes
// are reported through logs and counters only.
func (d *Dispatcher) Dispatch(ctx context.Context, job Job) {
	if d.URL == "" {
		d.Log.Warn().
			Str("event", "grader.dispatch.skipped").
			Str("submission_id", job.SubmissionID).
			Msg("grader dispatch URL not configured")
		d.count(metrics.GraderDispatchSkipped)
		return
	}
	body, err := json.Marshal(job)
	if err != nil {
		d.fail(job, err, 0)
		return
	}
	headers := map[string]string{}
	if d.Token != "" {
		headers["Authorization"] = "Bearer " + d.Token
	}
	status, _, err := httpx.RequestJSON(ctx, d.HTTP, http.MethodPost, d.URL, body, headers, 0, 0)
	if err != nil || status >= 300 {
		d.fail(job, err, status)
		return
	}
	d.Log.Info().
		Str("event", "grader.dispatched").
		Str("submission_id", job.SubmissionID).
		Str("assignment_id", job.AssignmentID).
		Msg("submission handed to grader")
	d.count(metrics.GraderDispatches)
}

// Async runs Dispatch on its own goroutine with a fresh deadline, detached
// from the request that triggered it.
func (d *Dispatcher) Async(job Job) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
		defer cancel()
		d.Dispatch(ctx, job)
	}()
}

func (d *Dispatcher) fail(job Job, err error, status int) {
	ev := d.Log.Error().
		Str("event", "grader.dispatch.failed").
		Str("submission_id", job.SubmissionID)
	if err != nil {
		ev = ev.Err(err)
	}
	if status != 0 {
		ev = ev.Int("status", status)
	}
	ev.Msg("grader dispatch failed")
	d.count(metrics.GraderDispatchFailures)
}

func (d *Dispatcher) count(name string) {
	if d.Metrics != nil {
		d.Metrics.Inc(name)
	}
}
