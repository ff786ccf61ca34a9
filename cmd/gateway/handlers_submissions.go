package main

import (
	"net/http"

	"github.com/august4056/parallel/pkg/adapters/supabase"
	"github.com/august4056/parallel/pkg/audit"
	"github.com/august4056/parallel/pkg/auth"
	"github.com/august4056/parallel/pkg/grader"
	"github.com/august4056/parallel/pkg/httpx"
	"github.com/august4056/parallel/pkg/metrics"
	"github.com/august4056/parallel/pkg/models"
	"github.com/august4056/parallel/pkg/schema"
	"github.com/august4056/parallel/pkg/stream"
)

// createSubmission records a student's submission. The row is always
// inserted as QUEUED and the grading worker is notified after the response
// is committed; a worker outage never fails the submission.
func (s *Server) createSubmission(w http.ResponseWriter, r *http.Request) {
	var body schema.SubmissionBody
	if err := schema.DecodeJSON(r.Body, &body); err != nil {
		httpx.WriteErr(w, err)
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	created, err := s.Store.InsertSubmission(r.Context(), supabase.SubmissionInsert{
		AssignmentID: body.AssignmentID,
		UserID:       principal.Subject,
		RepoURL:      body.RepoURL,
	})
	if err != nil {
		s.Metrics.Inc(metrics.UpstreamErrors)
		s.Log.Error().Err(err).Msg("submissions.create.failed")
		httpx.WriteErr(w, err)
		return
	}

	s.Metrics.Inc(metrics.SubmissionsCreated)
	s.record(audit.Entry{
		Event:    audit.EventSubmissionCreated,
		Actor:    principal.Subject,
		Role:     principal.Role,
		ClientIP: httpx.ClientIP(r),
		ObjectID: created.ID,
	})
	s.publish(stream.TypeSubmissionCreated, map[string]string{
		"submissionId": created.ID,
		"assignmentId": created.AssignmentID,
	})
	if s.Grader != nil {
		s.Grader.Async(grader.Job{
			SubmissionID: created.ID,
			AssignmentID: created.AssignmentID,
			RepoURL:      created.RepoURL,
			UserID:       created.UserID,
		})
	}
	httpx.WriteJSON(w, http.StatusCreated, created)
}

// listSubmissions scopes results by role: instructors see every submission
// for the assignment, students only their own.
func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	query, err := schema.ParseSubmissionQuery(r.URL.Query())
	if err != nil {
		httpx.WriteErr(w, err)
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	userID := principal.Subject
	if principal.Role == models.RoleInstructor {
		userID = ""
	}

	submissions, err := s.Store.ListSubmissions(r.Context(), query.AssignmentID, userID)
	if err != nil {
		s.Metrics.Inc(metrics.UpstreamErrors)
		s.Log.Error().Err(err).Msg("submissions.list.failed")
		httpx.WriteErr(w, err)
		return
	}
	if submissions == nil {
		submissions = []models.Submission{}
	}
	httpx.WriteJSON(w, http.StatusOK, submissions)
}
