package models

import "encoding/json"

// Role is the authorization role carried by a verified token.
type Role string

const (
	RoleStudent    Role = "STUDENT"
	RoleInstructor Role = "INSTRUCTOR"
)

// ParseRole normalizes a raw claim value. Anything unrecognized is STUDENT.
func ParseRole(raw string) Role {
	switch raw {
	case string(RoleInstructor):
		return RoleInstructor
	default:
		return RoleStudent
	}
}

// Status is the grading lifecycle state of a submission.
type Status string

const (
	StatusQueued     Status = "QUEUED"
	StatusProcessing Status = "PROCESSING"
	StatusComplete   Status = "COMPLETE"
	StatusFailed     Status = "FAILED"
)

// ParseStatus normalizes a stored status value. Unknown values are QUEUED.
func ParseStatus(raw string) Status {
	switch Status(raw) {
	case StatusProcessing, StatusComplete, StatusFailed:
		return Status(raw)
	default:
		return StatusQueued
	}
}

// Assignment is the client-facing assignment shape. Description is never
// null: a missing description reads back as the empty string.
type Assignment struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueAt       string `json:"dueAt"`
	CreatedBy   string `json:"createdBy"`
	CreatedAt   string `json:"createdAt"`
}

// Submission is the client-facing submission shape. Score and Feedback stay
// in the payload as null until grading fills them in.
type Submission struct {
	ID           string   `json:"id"`
	AssignmentID string   `json:"assignmentId"`
	UserID       string   `json:"userId"`
	RepoURL      string   `json:"repoUrl"`
	Status       Status   `json:"status"`
	Score        *float64 `json:"score"`
	Feedback     *string  `json:"feedback"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`
}

// Grade is the client-facing grade shape. OwnerID is resolved from the
// joined submission row and is not serialized to clients.
type Grade struct {
	ID           string          `json:"id"`
	SubmissionID string          `json:"submissionId"`
	RubricJSON   json.RawMessage `json:"rubricJson"`
	TotalScore   *float64        `json:"totalScore"`
	GradedAt     *string         `json:"gradedAt"`
	OwnerID      string          `json:"-"`
}

// Event is a gateway occurrence published to the instructor stream.
type Event struct {
	Type string          `json:"type"`
	At   string          `json:"at"`
	Data json.RawMessage `json:"data,omitempty"`
}
