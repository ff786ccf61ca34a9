package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/august4056/parallel/pkg/audit"
	"github.com/august4056/parallel/pkg/auth"
	"github.com/august4056/parallel/pkg/httpx"
	"github.com/august4056/parallel/pkg/metrics"
	"github.com/august4056/parallel/pkg/models"
	"github.com/august4056/parallel/pkg/schema"
)

// getGrade returns the grade for a submission. A grade that does not exist
// and a grade the caller may not see are indistinguishable: both are 404,
// so probing cannot reveal whether another student's submission was graded.
func (s *Server) getGrade(w http.ResponseWriter, r *http.Request) {
	param, err := schema.ParseGradeParam(chi.URLParam(r, "submissionId"))
	if err != nil {
		httpx.WriteErr(w, err)
		return
	}

	grade, err := s.Store.FetchGrade(r.Context(), param.SubmissionID)
	if err != nil {
		s.Metrics.Inc(metrics.UpstreamErrors)
		s.Log.Error().Err(err).Msg("grades.fetch.failed")
		httpx.WriteErr(w, err)
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	if grade == nil || (principal.Role != models.RoleInstructor && grade.OwnerID != principal.Subject) {
		s.Metrics.Inc(metrics.GradeLookupsMasked)
		httpx.WriteErr(w, httpx.NotFoundErr("Grade not found"))
		return
	}

	s.record(audit.Entry{
		Event:    audit.EventGradeViewed,
		Actor:    principal.Subject,
		Role:     principal.Role,
		ClientIP: httpx.ClientIP(r),
		ObjectID: grade.ID,
	})
	httpx.WriteJSON(w, http.StatusOK, grade)
}
