package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a batch fetch yielded nothing.
type ErrorKind string

const (
	// ErrorKindTransport covers network failures reaching a provider.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindProtocol covers non-success HTTP status codes.
	ErrorKindProtocol ErrorKind = "protocol"
	// ErrorKindProvider covers well-formed responses that signal a logical failure.
	ErrorKindProvider ErrorKind = "provider"
	// ErrorKindData covers payloads with missing or malformed fields.
	ErrorKindData ErrorKind = "data"
)

// FetchError is returned by provider clients.
type FetchError struct {
	Kind   ErrorKind
	Chain  Chain
	Status int
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s %s error", e.Chain, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// KindOf reports the kind of a FetchError anywhere in err's chain. Unclassified errors are
// reported as transport failures.
func KindOf(err error) ErrorKind {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Kind
	}
	return ErrorKindTransport
}
