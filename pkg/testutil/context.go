package testutil

import (
	"net/http"
	"time"

	id "landregistry/pkg/domain"
	"landregistry/pkg/requestcontext"
)

// WithActor adds an actor ID to the request context, simulating what the
// auth middleware does for authenticated requests. Invalid IDs are silently
// ignored.
func WithActor(req *http.Request, actorID string) *http.Request {
	parsed, err := id.ParseUserID(actorID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithActorID(req.Context(), parsed))
}

// WithTime pins the request-scoped clock so tests control observed time.
func WithTime(req *http.Request, now time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), now))
}
