package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"syscall"
)

// Categorize maps a transport error onto an ErrorCategory.
func Categorize(err error) ErrorCategory {
	if err == nil {
		return CategoryNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return CategoryDNS
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CategoryTimeout
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return CategoryConnectionRefused
	}
	if isTLSError(err) {
		return CategoryProtocol
	}
	return CategoryUnreachable
}

// Describe renders err for an Outcome message, adding the DNS class for
// resolver failures (e.g. "lookup nas.lan: no such host dns=NXDOMAIN").
func Describe(err error) string {
	var de *net.DNSError
	if errors.As(err, &de) {
		return err.Error() + " dns=" + dnsClass(de)
	}
	return err.Error()
}

func dnsClass(de *net.DNSError) string {
	switch {
	case de.IsNotFound:
		return "NXDOMAIN"
	case de.IsTimeout || de.IsTemporary:
		return "SERVFAIL_or_TIMEOUT"
	default:
		return "RESOLVER_ERROR"
	}
}

func isTLSError(err error) bool {
	var (
		ci  x509.CertificateInvalidError
		hn  x509.HostnameError
		rec tls.RecordHeaderError
	)
	return isTrustError(err) || errors.As(err, &ci) || errors.As(err, &hn) || errors.As(err, &rec)
}

// isTrustError reports certificate-chain trust failures, the only TLS errors
// the insecure fallback retries.
func isTrustError(err error) bool {
	var (
		ua x509.UnknownAuthorityError
		cv *tls.CertificateVerificationError
	)
	if errors.As(err, &ua) {
		return true
	}
	if errors.As(err, &cv) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "certificate signed by unknown authority") ||
		strings.Contains(msg, "certificate is not trusted")
}
