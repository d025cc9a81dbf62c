package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrMalformedTarget = errors.New("malformed target")
	ErrInvalidInput    = errors.New("invalid input")
	// ErrNoResult means the probe ended without a fingerprint and without an error.
	ErrNoResult = errors.New("no result")
)

// TimeoutError is returned by a Prober, which did not get the certificate
// within the given timeout.
type TimeoutError struct {
	Target  string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("probe %s: timeout after %s", e.Target, e.Timeout)
	}
	return fmt.Sprintf("probe %s: timeout after %s: %s", e.Target, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// AlertError is returned when the peer aborted the handshake with a TLS alert.
type AlertError struct {
	Target string
	Alert  string
	Err    error
}

func (e *AlertError) Error() string {
	return fmt.Sprintf("probe %s: tls alert: %s", e.Target, e.Alert)
}

func (e *AlertError) Unwrap() error {
	return e.Err
}

// AddrInfoError is a name resolution failure carrying the getaddrinfo code.
type AddrInfoError struct {
	Host string
	No   int
}

// getaddrinfo codes (glibc values, 8 is EAI_NONAME on BSD)
const (
	EAINoName    = -2
	EAIAgain     = -3
	EAINoData    = -5
	EAINoNameBSD = 8
)

func (e *AddrInfoError) Error() string {
	return fmt.Sprintf("resolving %s: getaddrinfo error %d", e.Host, e.No)
}

func (e *AddrInfoError) Code() int {
	return e.No
}
