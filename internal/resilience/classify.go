package resilience

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"syscall"

	"github.com/rotisserie/eris"
)

// FailureKind classifies a failed network call at the point where the
// structured error chain is still intact. Callers branch on the kind
// instead of sniffing error strings.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureSSL
	FailureTimeout
	FailureDNS
	FailureRefused
	FailureTooManyRedirects
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureSSL:
		return "ssl"
	case FailureTimeout:
		return "timeout"
	case FailureDNS:
		return "dns"
	case FailureRefused:
		return "refused"
	case FailureTooManyRedirects:
		return "too_many_redirects"
	default:
		return "other"
	}
}

// ErrTooManyRedirects is returned by HTTP clients whose redirect policy
// gave up; Classify maps it to FailureTooManyRedirects.
var ErrTooManyRedirects = eris.New("stopped after too many redirects")

// Classify inspects an error chain and returns its failure kind.
// Certificate problems are checked first: a TLS failure often also
// surfaces as a net.OpError and must not be mistaken for a transport
// issue.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureNone
	}

	if errors.Is(err, ErrTooManyRedirects) {
		return FailureTooManyRedirects
	}

	var (
		certInvalid   x509.CertificateInvalidError
		unknownAuth   x509.UnknownAuthorityError
		hostnameErr   x509.HostnameError
		recordHeader  tls.RecordHeaderError
		certVerifyErr *tls.CertificateVerificationError
	)
	if errors.As(err, &certInvalid) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &recordHeader) ||
		errors.As(err, &certVerifyErr) {
		return FailureSSL
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return FailureTimeout
		}
		return FailureDNS
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailureTimeout
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return FailureRefused
	}

	return FailureOther
}

// Retryable reports whether a failed call is worth retrying given its
// kind. SSL failures and NXDOMAIN are deterministic and never retried;
// DNS soft-failures (SERVFAIL, resolver trouble) are.
func Retryable(err error) bool {
	switch Classify(err) {
	case FailureTimeout, FailureRefused:
		return true
	case FailureDNS:
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			return dnsErr.IsTemporary || !dnsErr.IsNotFound
		}
	}
	return false
}
