// Package transports holds what the HTTP and WebSocket front ends share:
// caller identification and the error to status mapping.
package transports

import (
	"context"
	"net/http"
	"strings"

	"echo/conversation"
	"echo/core"
)

// UserIDHeader identifies the caller. Authentication is out of scope; a
// gateway in front of the service is expected to set it.
const UserIDHeader = "X-User-ID"

// UserIDQuery is accepted as well since browsers cannot set headers on a
// WebSocket handshake.
const UserIDQuery = "user_id"

// DefaultUserID is used when the request names no user.
const DefaultUserID = "1"

type UserResolver func(r *http.Request) string

// HeaderUserResolver reads UserIDHeader, then UserIDQuery, then falls back
// to defaultUserID.
func HeaderUserResolver(defaultUserID string) UserResolver {
	if defaultUserID == "" {
		defaultUserID = DefaultUserID
	}
	return func(r *http.Request) string {
		if id := strings.TrimSpace(r.Header.Get(UserIDHeader)); id != "" {
			return id
		}
		if id := strings.TrimSpace(r.URL.Query().Get(UserIDQuery)); id != "" {
			return id
		}
		return defaultUserID
	}
}

// Conversations is the orchestrator as seen by a transport.
type Conversations interface {
	Start(ctx context.Context, userID string) (conversation.StartResult, error)
	Message(ctx context.Context, userID string, in core.AudioInput) (conversation.MessageResult, error)
	End(ctx context.Context, userID string) (conversation.EndResult, error)
}

// HTTPStatus maps an error kind onto a response status.
func HTTPStatus(kind core.ErrorKind) int {
	switch kind {
	case core.KindNone:
		return http.StatusOK
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the error text shown to clients. Internal failures are not described.
func PublicMessage(err error) string {
	if core.KindOf(err) == core.KindInternal {
		return "internal server error"
	}
	return err.Error()
}
