package supabase

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/august4056/parallel/pkg/models"
)

// numeric accepts JSON numbers and numeric strings. The store serializes
// decimal columns as strings.
type numeric struct {
	Value *float64
}

func (n *numeric) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		n.Value = nil
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		n.Value = nil
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("numeric value %q: %w", s, err)
	}
	n.Value = &f
	return nil
}

type assignmentRecord struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueAt       string  `json:"due_at"`
	CreatedBy   string  `json:"created_by"`
	CreatedAt   string  `json:"created_at"`
}

func (r assignmentRecord) toModel() models.Assignment {
	description := ""
	if r.Description != nil {
		description = *r.Description
	}
	return models.Assignment{
		ID:          r.ID,
		Title:       r.Title,
		Description: description,
		DueAt:       r.DueAt,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
	}
}

type submissionRecord struct {
	ID           string  `json:"id"`
	AssignmentID string  `json:"assignment_id"`
	UserID       string  `json:"user_id"`
	RepoURL      string  `json:"repo_url"`
	Status       string  `json:"status"`
	Score        numeric `json:"score"`
	Feedback     *string `json:"feedback"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func (r submissionRecord) toModel() models.Submission {
	return models.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		UserID:       r.UserID,
		RepoURL:      r.RepoURL,
		Status:       models.ParseStatus(r.Status),
		Score:        r.Score.Value,
		Feedback:     r.Feedback,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type gradeRecord struct {
	ID           string          `json:"id"`
	SubmissionID string          `json:"submission_id"`
	RubricJSON   json.RawMessage `json:"rubric_json"`
	TotalScore   numeric         `json:"total_score"`
	GradedAt     *string         `json:"graded_at"`
	Submission   *struct {
		UserID string `json:"user_id"`
	} `json:"submission"`
}

func (r gradeRecord) toModel() models.Grade {
	g := models.Grade{
		ID:           r.ID,
		SubmissionID: r.SubmissionID,
		RubricJSON:   r.RubricJSON,
		TotalScore:   r.TotalScore.Value,
		GradedAt:     r.GradedAt,
	}
	if r.Submission != nil {
		g.OwnerID = r.Submission.UserID
	}
	return g
}
