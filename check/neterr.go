package check

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
)

type fetchErrKind int

const (
	fetchErrOther fetchErrKind = iota
	fetchErrTLS
	fetchErrTimeout
	fetchErrConn
)

// classifyFetchError buckets a network error so probes can pick the right
// finding. TLS failures are checked first: a certificate problem also
// surfaces as a net.OpError, and the more specific classification wins.
func classifyFetchError(err error) fetchErrKind {
	var (
		verifyErr  *tls.CertificateVerificationError
		recordErr  tls.RecordHeaderError
		hostErr    x509.HostnameError
		authErr    x509.UnknownAuthorityError
		invalidErr x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &recordErr),
		errors.As(err, &hostErr),
		errors.As(err, &authErr),
		errors.As(err, &invalidErr):
		return fetchErrTLS
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fetchErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fetchErrTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fetchErrConn
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fetchErrConn
	}
	return fetchErrOther
}
