package main

import (
	"net/http"

	"github.com/august4056/parallel/pkg/adapters/supabase"
	"github.com/august4056/parallel/pkg/audit"
	"github.com/august4056/parallel/pkg/auth"
	"github.com/august4056/parallel/pkg/httpx"
	"github.com/august4056/parallel/pkg/metrics"
	"github.com/august4056/parallel/pkg/models"
	"github.com/august4056/parallel/pkg/schema"
	"github.com/august4056/parallel/pkg/stream"
)

// listAssignments is readable with or without a token. Anonymous callers
// see the same catalog as authenticated ones.
func (s *Server) listAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := s.Store.ListAssignments(r.Context())
	if err != nil {
		s.Metrics.Inc(metrics.UpstreamErrors)
		s.Log.Error().Err(err).Msg("assignments.list.failed")
		httpx.WriteErr(w, err)
		return
	}
	if assignments == nil {
		assignments = []models.Assignment{}
	}
	httpx.WriteJSON(w, http.StatusOK, assignments)
}

func (s *Server) createAssignment(w http.ResponseWriter, r *http.Request) {
	var body schema.AssignmentBody
	if err := schema.DecodeJSON(r.Body, &body); err != nil {
		httpx.WriteErr(w, err)
		return
	}

	principal, _ := auth.PrincipalFromContext(r.Context())
	description := ""
	if body.Description != nil {
		description = *body.Description
	}
	created, err := s.Store.InsertAssignment(r.Context(), supabase.AssignmentInsert{
		Title:       body.Title,
		Description: description,
		DueAt:       body.DueAt,
		CreatedBy:   principal.Subject,
	})
	if err != nil {
		s.Metrics.Inc(metrics.UpstreamErrors)
		s.Log.Error().Err(err).Msg("assignments.create.failed")
		httpx.WriteErr(w, err)
		return
	}

	s.Metrics.Inc(metrics.AssignmentsCreated)
	s.record(audit.Entry{
		Event:    audit.EventAssignmentCreated,
		Actor:    principal.Subject,
		Role:     principal.Role,
		ClientIP: httpx.ClientIP(r),
		ObjectID: created.ID,
	})
	s.publish(stream.TypeAssignmentCreated, map[string]string{"assignmentId": created.ID})
	httpx.WriteJSON(w, http.StatusCreated, created)
}
