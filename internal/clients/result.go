package clients

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Outcome tags the result of one downstream call.
type Outcome int

const (
	// OutcomeOK means a 2xx answer whose payload was decoded.
	OutcomeOK Outcome = iota
	// OutcomeNotFound means the downstream answered 404.
	OutcomeNotFound
	// OutcomeUnavailable means no answer: open breaker, transport error,
	// timeout, or a 5xx on a read.
	OutcomeUnavailable
	// OutcomeRejected means a 4xx business rejection.
	OutcomeRejected
	// OutcomeFailed means a 5xx on a write; the effect of the call is unknown.
	OutcomeFailed
	// OutcomeMalformed means a 2xx answer lacking a field the caller needs.
	OutcomeMalformed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	case OutcomeMalformed:
		return "malformed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// CallKind decides how a 5xx answer is classified.
type CallKind int

const (
	Read CallKind = iota
	Write
)

type Result[T any] struct {
	Outcome    Outcome
	Value      T
	StatusCode int
	Detail     string
	Payload    json.RawMessage
	Err        error
}

func (r Result[T]) IsOK() bool {
	return r.Outcome == OutcomeOK
}

func (r Result[T]) String() string {
	if r.Detail != "" {
		return fmt.Sprintf("%s: %s", r.Outcome, r.Detail)
	}
	return r.Outcome.String()
}

func OK[T any](value T, statusCode int, payload json.RawMessage) Result[T] {
	return Result[T]{Outcome: OutcomeOK, Value: value, StatusCode: statusCode, Payload: payload}
}

func Malformed[T any](resp *Response, detail string) Result[T] {
	r := Result[T]{Outcome: OutcomeMalformed, Detail: detail}
	if resp != nil {
		r.StatusCode = resp.StatusCode
		r.Payload = jsonPayload(resp.Body)
	}
	return r
}

// Classify turns a finished exchange into a Result. For 2xx answers the
// Outcome is OK and the caller is expected to decode Value itself.
func Classify[T any](resp *Response, err error, kind CallKind) Result[T] {
	if err != nil {
		return Result[T]{Outcome: OutcomeUnavailable, Detail: err.Error(), Err: err}
	}

	r := Result[T]{StatusCode: resp.StatusCode, Payload: jsonPayload(resp.Body)}
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		r.Outcome = OutcomeOK
	case resp.StatusCode == http.StatusNotFound:
		r.Outcome = OutcomeNotFound
		r.Detail = errorDetail(resp)
	case resp.StatusCode >= 500 && kind == Read:
		r.Outcome = OutcomeUnavailable
		r.Detail = errorDetail(resp)
	case resp.StatusCode >= 500:
		r.Outcome = OutcomeFailed
		r.Detail = errorDetail(resp)
	default:
		r.Outcome = OutcomeRejected
		r.Detail = errorDetail(resp)
	}
	return r
}

func jsonPayload(body []byte) json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !json.Valid(body) {
		return nil
	}
	return json.RawMessage(body)
}

// errorDetail pulls a human readable message out of an error body, falling
// back to the raw text.
func errorDetail(resp *Response) string {
	var body map[string]any
	if json.Unmarshal(resp.Body, &body) == nil {
		for _, key := range []string{"message", "error", "detail"} {
			if s, ok := body[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if text := strings.TrimSpace(string(resp.Body)); text != "" {
		if len(text) > 512 {
			text = text[:512]
		}
		return text
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
