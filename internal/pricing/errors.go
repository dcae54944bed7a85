package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
)

// Kind classifies why an engine call failed.
type Kind string

const (
	// KindTransport: the request never got an HTTP response.
	KindTransport Kind = "transport"
	// KindTimeout: the call ran past its deadline.
	KindTimeout Kind = "timeout"
	// KindMalformed: the engine answered 2xx but the body broke the contract.
	KindMalformed Kind = "malformed"
	// KindServer: the engine answered with a non-2xx status.
	KindServer Kind = "server"
)

// Error is the only error type the client returns. Error() is the message
// to show the operator.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

// Message returns the operator-facing text of any error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Message
	}
	return err.Error()
}

// KindOf returns the classification of err, or "" if it is not an *Error.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

type opMessages struct {
	transport string
	timeout   string
	malformed string
	server    string
}

const cannotConnect = "Cannot connect to API server"

var messages = map[string]opMessages{
	OpHealth: {
		transport: cannotConnect,
		timeout:   "Health check timed out - server is taking too long to respond",
		malformed: "Invalid health response from server",
		server:    "API health check failed",
	},
	OpRecommend: {
		transport: cannotConnect,
		timeout:   "Request timeout - server is taking too long to respond",
		malformed: "Invalid response from server",
		server:    "Server error",
	},
	OpRecommendBatch: {
		transport: cannotConnect,
		timeout:   "Request timeout - file too large or server busy",
		malformed: "Invalid response format from server",
		server:    "Failed to process CSV",
	},
	OpCompareKPIs: {
		transport: cannotConnect,
		timeout:   "Request timeout - KPI comparison is taking too long",
		malformed: "Invalid KPI response from server",
		server:    "Failed to calculate KPIs",
	},
}

func newError(op string, kind Kind, status int, cause error) *Error {
	m := messages[op]
	e := &Error{Op: op, Kind: kind, Status: status, Err: cause}
	switch kind {
	case KindTransport:
		e.Message = m.transport
	case KindTimeout:
		e.Message = m.timeout
	case KindMalformed:
		e.Message = m.malformed
	default:
		e.Message = m.server
	}
	return e
}

// classifyTransport decides between timeout and plain connectivity failure
// for an error returned by http.Client.Do or by reading the body.
func classifyTransport(op string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(op, KindTimeout, 0, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return newError(op, KindTimeout, 0, err)
	}
	return newError(op, KindTransport, 0, err)
}

// serverError builds a KindServer error, preferring the engine's own detail
// message when the body carries one.
func serverError(op string, status int, body []byte) *Error {
	e := newError(op, KindServer, status, errors.New(strings.TrimSpace(string(body))))
	if detail := detailMessage(body); detail != "" {
		e.Message = detail
	}
	return e
}

// detailMessage reads {"detail": ...}. A string detail is used as is; a list
// of validation entries is joined by their "msg" fields.
func detailMessage(body []byte) string {
	var obj struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	switch d := obj.Detail.(type) {
	case string:
		return strings.TrimSpace(d)
	case []any:
		var parts []string
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if msg, ok := m["msg"].(string); ok && msg != "" {
					parts = append(parts, msg)
				}
			}
		}
		return strings.Join(parts, "; ")
	case nil:
		return ""
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}
