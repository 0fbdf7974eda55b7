package service

import (
	"fmt"
	"net/http"
)

// Kind classifies a pipeline failure. Each kind has one outward HTTP status.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindUpstreamUnreachable
	KindUpstreamError
	KindNoObservationData
	KindMalformedUpstreamPayload
)

const (
	msgStationRequired   = "station_id is required"
	msgUnreachable       = "Weather provider is unreachable"
	msgUnexpectedPayload = "Weather provider returned an unexpected response format"
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindUpstreamUnreachable:
		return "upstream_unreachable"
	case KindUpstreamError:
		return "upstream_error"
	case KindNoObservationData:
		return "no_observation_data"
	case KindMalformedUpstreamPayload:
		return "malformed_upstream_payload"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// HTTPStatus is the status code reported to the caller for k.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNoObservationData:
		return http.StatusNotFound
	case KindUpstreamUnreachable, KindUpstreamError, KindMalformedUpstreamPayload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error is the single failure type returned by Service.Current.
// Message is safe to show to callers; Err is for logs only.
type Error struct {
	Kind           Kind
	Message        string
	UpstreamStatus int
	Err            error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus is shorthand for e.Kind.HTTPStatus().
func (e *Error) HTTPStatus() int { return e.Kind.HTTPStatus() }

func invalidInput() *Error {
	return &Error{Kind: KindInvalidInput, Message: msgStationRequired}
}

func unreachable(err error) *Error {
	return &Error{Kind: KindUpstreamUnreachable, Message: msgUnreachable, Err: err}
}

func upstreamError(status int) *Error {
	return &Error{
		Kind:           KindUpstreamError,
		Message:        fmt.Sprintf("Weather provider returned status %d", status),
		UpstreamStatus: status,
	}
}

func noObservation(stationID string) *Error {
	return &Error{
		Kind:    KindNoObservationData,
		Message: fmt.Sprintf("No current observation available for station %s", stationID),
	}
}

func malformed(err error) *Error {
	return &Error{Kind: KindMalformedUpstreamPayload, Message: msgUnexpectedPayload, Err: err}
}
