package video

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type ErrorKind string

const (
	ErrorKindUnknown             ErrorKind = "unknown"
	ErrorKindInvalidInput        ErrorKind = "invalid_input"
	ErrorKindNoLinkFound         ErrorKind = "no_link_found"
	ErrorKindUnsupportedDomain   ErrorKind = "unsupported_domain"
	ErrorKindIDExtractionFailed  ErrorKind = "id_extraction_failed"
	ErrorKindAllSourcesExhausted ErrorKind = "all_sources_exhausted"
	ErrorKindParse               ErrorKind = "parse"
	ErrorKindEmptyResult         ErrorKind = "empty_result"
	ErrorKindNetwork             ErrorKind = "network"
	ErrorKindRateLimited         ErrorKind = "rate_limited"
	ErrorKindForbidden           ErrorKind = "forbidden"
	ErrorKindHTTP                ErrorKind = "http"
	ErrorKindCanceled            ErrorKind = "canceled"
	ErrorKindTimeout             ErrorKind = "timeout"
)

type Error struct {
	Kind   ErrorKind
	Source string
	URL    string
	Msg    string
	Err    error
	// Status is the upstream HTTP status, when one was received.
	Status int

	// Attempted lists every source invoked before the failure.
	Attempted []string
	// Skipped lists sources passed over because of their rate limit.
	Skipped []string
}

func (e Error) Error() string {
	base := e.Msg
	if base == "" && e.Err != nil {
		base = e.Err.Error()
	}
	if base == "" {
		base = string(e.Kind)
	}
	if e.Source != "" && e.URL != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Source, base, e.URL)
	}
	if e.Source != "" {
		return fmt.Sprintf("%s: %s", e.Source, base)
	}
	return base
}

func (e Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, msg string) error {
	return Error{Kind: kind, Msg: msg}
}

func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ve Error
	if errors.As(err, &ve) && ve.Kind != "" {
		return ve.Kind
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return ErrorKindTimeout
		}
		return ErrorKindNetwork
	}
	return ErrorKindUnknown
}

// AttemptedSources returns the sources recorded on err, if any.
func AttemptedSources(err error) []string {
	var ve Error
	if errors.As(err, &ve) {
		return ve.Attempted
	}
	return nil
}
