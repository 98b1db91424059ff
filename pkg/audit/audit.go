// Package audit captures every state-changing action in the registry core as
// an immutable event. Events are written in the same transaction as the
// mutation they describe; a failed audit write aborts the whole transaction.
package audit

import (
	"context"
	"time"

	id "landregistry/pkg/domain"
	dErrors "landregistry/pkg/domain-errors"
	"landregistry/pkg/requestcontext"
)

// Action is the closed vocabulary of auditable actions. Adding an action here
// is the only way to record a new event type.
type Action string

const (
	ActionParcelCreated            Action = "PARCEL_CREATED"
	ActionApplicationCreated       Action = "APPLICATION_CREATED"
	ActionApplicationStatusChanged Action = "APPLICATION_STATUS_CHANGED"
	ActionCertificateIssued        Action = "CERTIFICATE_ISSUED"
	ActionCertificateRevoked       Action = "CERTIFICATE_REVOKED"
)

var knownActions = map[Action]bool{
	ActionParcelCreated:            true,
	ActionApplicationCreated:       true,
	ActionApplicationStatusChanged: true,
	ActionCertificateIssued:        true,
	ActionCertificateRevoked:       true,
}

// Valid reports whether the action belongs to the closed vocabulary.
func (a Action) Valid() bool { return knownActions[a] }

// Event is one immutable audit fact. ActorID is nil for system actions.
type Event struct {
	ActorID   id.UserID         `json:"actor_id"`
	Action    Action            `json:"action"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Store persists audit events. Implementations must be append-only: no
// update or delete surface exists by design.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Recorder is the single entry point services use to write audit events. It
// upgrades storage failures to integrity errors so the transactional
// coordinator rolls the whole unit of work back.
type Recorder struct {
	store Store
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// Record appends one event. The actor may be nil (system action); the action
// must come from the closed vocabulary.
func (r *Recorder) Record(ctx context.Context, actor id.UserID, action Action, detail string, metadata map[string]string) error {
	if !action.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown audit action %q", action)
	}
	event := Event{
		ActorID:   actor,
		Action:    action,
		Detail:    detail,
		Metadata:  metadata,
		Timestamp: requestcontext.Now(ctx),
	}
	if err := r.store.Append(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeIntegrity, "audit write failed")
	}
	return nil
}
