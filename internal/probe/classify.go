package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"syscall"

	"github.com/CZERTAINLY/notary-scan/internal/model"
)

// Classify maps an error returned by a Prober to exactly one failure category.
// It is total: errors it does not know about end up as CategoryOther.
func Classify(err error) model.Category {
	if err == nil {
		return model.CategoryOther
	}

	var timeoutErr *model.TimeoutError
	var alertErr *model.AlertError
	var tlsAlert tls.AlertError
	switch {
	case errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return model.CategoryTimeout
	case errors.As(err, &alertErr), errors.As(err, &tlsAlert), isRemoteAlert(err):
		return model.CategoryProtocolAlert
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, model.ErrMalformedTarget):
		return model.CategoryInvalidInput
	case errors.Is(err, model.ErrNoResult):
		return model.CategorySocketError
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return model.CategoryDNSFailure
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return classifyErrno(errno)
	}

	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		switch coder.Code() {
		case model.EAINoName, model.EAIAgain, model.EAINoData, model.EAINoNameBSD:
			return model.CategoryDNSFailure
		}
		return model.CategoryOther
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.CategoryTimeout
	}
	return model.CategoryOther
}

func classifyErrno(errno syscall.Errno) model.Category {
	switch errno {
	case syscall.ECONNREFUSED, syscall.EINVAL:
		return model.CategoryConnectionRefused
	case syscall.EHOSTUNREACH, syscall.ENETUNREACH:
		return model.CategoryHostUnreachable
	case syscall.ECONNRESET:
		return model.CategoryConnectionReset
	default:
		return model.CategoryOther
	}
}

// crypto/tls reports alerts sent by the peer as a *net.OpError with
// an unexported alert type inside
func isRemoteAlert(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "remote error"
}
