package api

import (
	"fmt"

	"github.com/podscrub/podscrub/internal/models"
)

// OutcomeKind tags the transport-level result of one status request.
type OutcomeKind int

const (
	// OutcomeSuccess is a 2xx response with a parseable body.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeClientError is any 4xx: bad or expired token, unknown episode,
	// missing parameters. Permanent for the session.
	OutcomeClientError
	// OutcomeServerError is any 5xx. Transient.
	OutcomeServerError
	// OutcomeNetworkFailure covers everything that never produced an HTTP
	// status: DNS, refused connections, timeouts, unreadable bodies. Transient.
	OutcomeNetworkFailure
)

// String returns the kind's wire-ish name, for logs.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientError:
		return "client_error"
	case OutcomeServerError:
		return "server_error"
	case OutcomeNetworkFailure:
		return "network_failure"
	}
	return fmt.Sprintf("outcome(%d)", int(k))
}

// Outcome is the classified result of one status fetch. Transport status
// always wins over body content: a non-2xx is never OutcomeSuccess no matter
// what the body parses to, though a parseable 4xx body is retained so its
// message can surface to the user.
type Outcome struct {
	Kind    OutcomeKind
	Code    int
	Payload *models.StatusPayload
	Err     error
}

// Success wraps a parsed 2xx payload.
func Success(p *models.StatusPayload) Outcome {
	return Outcome{Kind: OutcomeSuccess, Code: 200, Payload: p}
}

// ClientError wraps a 4xx, keeping the payload when the body parsed.
func ClientError(code int, p *models.StatusPayload) Outcome {
	return Outcome{Kind: OutcomeClientError, Code: code, Payload: p}
}

// ServerError wraps a 5xx.
func ServerError(code int) Outcome {
	return Outcome{Kind: OutcomeServerError, Code: code}
}

// NetworkFailure wraps a transport error.
func NetworkFailure(err error) Outcome {
	return Outcome{Kind: OutcomeNetworkFailure, Err: err}
}
