// Package audit emits the gateway's learning and access events as
// structured log records. Actor identifiers can be salted-hash redacted
// before they leave the process.
package audit

import (
	"github.com/rs/zerolog"

	"github.com/august4056/parallel/pkg/models"
)

// Event names recorded by the gateway.
const (
	EventAssignmentCreated = "assignment.created"
	EventSubmissionCreated = "submission.created"
	EventGradeViewed       = "grade.viewed"
	EventAuthDenied        = "auth.denied"
)

type Recorder struct {
	Log      zerolog.Logger
	HashSalt []byte
	Redact   bool
}

// Entry is one auditable occurrence.
type Entry struct {
	Event    string
	Actor    string
	Role     models.Role
	ClientIP string
	ObjectID string
	Detail   map[string]interface{}
}

// Record writes the entry. With Redact set the actor id is replaced by a
// salted hash so logs can be shipped without exposing user ids.
func (r *Recorder) Record(e Entry) {
	if e.Event == "" {
		return
	}
	actor := e.Actor
	if r.Redact && actor != "" {
		actor = hashString(actor, r.HashSalt)
	}
	ev := r.Log.Info().Str("event", e.Event)
	if actor != "" {
		ev = ev.Str("actor", actor)
	}
	if e.Role != "" {
		ev = ev.Str("role", string(e.Role))
	}
	if e.ClientIP != "" {
		ev = ev.Str("client_ip", e.ClientIP)
	}
	if e.ObjectID != "" {
		ev = ev.Str("object_id", e.ObjectID)
	}
	if len(e.Detail) > 0 {
		ev = ev.Interface("detail", e.Detail)
	}
	ev.Msg("audit")
}
