package main

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/august4056/parallel/pkg/metrics"
	"github.com/august4056/parallel/pkg/models"
)

const submissionUUID = "3a1d9c2e-7b4f-4e6a-9d8c-5f2e1a0b3c4d"

func gradeFor(owner string) *models.Grade {
	score := 87.5
	gradedAt := "2026-09-15T10:00:00Z"
	return &models.Grade{
		ID:           "g-1",
		SubmissionID: submissionUUID,
		RubricJSON:   json.RawMessage(`{"tests":10}`),
		TotalScore:   &score,
		GradedAt:     &gradedAt,
		OwnerID:      owner,
	}
}

func TestGetGradeAsOwner(t *testing.T) {
	store := &fakeStore{grade: gradeFor("alice")}
	s := newTestServer(store)

	rr := doRequest(s, http.MethodGet, "/grades/"+submissionUUID, mintToken(t, "alice", "STUDENT"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}
	got := jsonBody(t, rr)
	if got["id"] != "g-1" {
		t.Fatalf("unexpected grade: %v", got)
	}
	if got["totalScore"] != 87.5 {
		t.Fatalf("unexpected totalScore: %v", got["totalScore"])
	}
	if _, leaked := got["OwnerID"]; leaked {
		t.Fatal("owner id must not be serialized")
	}
}

func TestGetGradeAsInstructor(t *testing.T) {
	store := &fakeStore{grade: gradeFor("alice")}
	s := newTestServer(store)

	rr := doRequest(s, http.MethodGet, "/grades/"+submissionUUID, mintToken(t, "inst-1", "INSTRUCTOR"), "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestGetGradeMaskedForOtherStudent(t *testing.T) {
	store := &fakeStore{grade: gradeFor("alice")}
	s := newTestServer(store)

	rr := doRequest(s, http.MethodGet, "/grades/"+submissionUUID, mintToken(t, "bob", "STUDENT"), "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for non-owner, got %d", rr.Code)
	}
	if got := jsonBody(t, rr); got["error"] != "Grade not found" {
		t.Fatalf("unexpected error message: %v", got["error"])
	}
	if got := s.Metrics.Counter(metrics.GradeLookupsMasked); got != 1 {
		t.Fatalf("expected masked lookup counted, got %d", got)
	}
}

func TestGetGradeAbsent(t *testing.T) {
	store := &fakeStore{grade: nil}
	s := newTestServer(store)

	rr := doRequest(s, http.MethodGet, "/grades/"+submissionUUID, mintToken(t, "alice", "STUDENT"), "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for absent grade, got %d", rr.Code)
	}
}

func TestGetGradeBadSubmissionID(t *testing.T) {
	store := &fakeStore{}
	s := newTestServer(store)

	rr := doRequest(s, http.MethodGet, "/grades/not-a-uuid", mintToken(t, "alice", "STUDENT"), "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if store.calls != 0 {
		t.Fatalf("store must not be contacted, got %d calls", store.calls)
	}
}

func TestGetGradeUpstreamFailure(t *testing.T) {
	store := &fakeStore{err: upstreamFailure()}
	s := newTestServer(store)

	rr := doRequest(s, http.MethodGet, "/grades/"+submissionUUID, mintToken(t, "alice", "STUDENT"), "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if got := jsonBody(t, rr); got["error"] != "Internal server error" {
		t.Fatalf("upstream details must not leak, got %v", got["error"])
	}
}
