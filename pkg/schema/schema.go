// Package schema defines the request shapes the gateway accepts and turns
// validation failures into per-field error details.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/august4056/parallel/pkg/httpx"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// SubmissionBody is the POST /submissions payload.
type SubmissionBody struct {
	AssignmentID string `json:"assignmentId" validate:"required,uuid"`
	RepoURL      string `json:"repoUrl" validate:"required,url"`
}

// AssignmentBody is the POST /assignments payload.
type AssignmentBody struct {
	Title       string  `json:"title" validate:"required,min=1,max=255"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	DueAt       string  `json:"dueAt" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// SubmissionQuery is the GET /submissions query string.
type SubmissionQuery struct {
	AssignmentID string `json:"assignmentId" validate:"required,uuid"`
}

// GradeParam is the GET /grades/{submissionId} path parameter.
type GradeParam struct {
	SubmissionID string `json:"submissionId" validate:"required,uuid"`
}

// DecodeJSON strictly decodes one JSON object into dst and validates it.
// Unknown fields, trailing data, and constraint violations all surface as a
// validation error with field details.
func DecodeJSON(r io.Reader, dst interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return httpx.ValidationErr(decodeDetails(err))
	}
	if dec.More() {
		return httpx.ValidationErr(map[string]string{"body": "must be a single JSON object"})
	}
	return Check(dst)
}

// Check validates an already-populated shape.
func Check(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return httpx.ValidationErr(map[string]string{"body": "is invalid"})
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = message(fe)
	}
	return httpx.ValidationErr(details)
}

// ParseSubmissionQuery validates the assignmentId query parameter.
func ParseSubmissionQuery(q url.Values) (SubmissionQuery, error) {
	sq := SubmissionQuery{AssignmentID: strings.TrimSpace(q.Get("assignmentId"))}
	if err := Check(&sq); err != nil {
		return SubmissionQuery{}, err
	}
	return sq, nil
}

// ParseGradeParam validates the submissionId path parameter.
func ParseGradeParam(submissionID string) (GradeParam, error) {
	gp := GradeParam{SubmissionID: strings.TrimSpace(submissionID)}
	if err := Check(&gp); err != nil {
		return GradeParam{}, err
	}
	return gp, nil
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "datetime":
		return "must be an ISO 8601 timestamp"
	default:
		return "is invalid"
	}
}

func decodeDetails(err error) map[string]string {
	msg := err.Error()
	if idx := strings.Index(msg, "unknown field "); idx >= 0 {
		field := strings.Trim(msg[idx+len("unknown field "):], `"`)
		return map[string]string{field: "is not an allowed field"}
	}
	var ute *json.UnmarshalTypeError
	if errors.As(err, &ute) && ute.Field != "" {
		return map[string]string{ute.Field: "has the wrong type"}
	}
	return map[string]string{"body": "must be valid JSON"}
}
