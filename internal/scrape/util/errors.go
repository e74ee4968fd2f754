package util

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"strings"
)

// Kind classifies a source failure; the crawl cooldown policy keys off it.
type Kind string

const (
	KindBlocked     Kind = "blocked"
	KindRateLimited Kind = "ratelimited"
	KindBadConfig   Kind = "bad_config"
	KindTLS         Kind = "tls"
	KindTransient   Kind = "transient"
	KindTimeout     Kind = "timeout"
	KindOther       Kind = "other"
)

type SourceError struct {
	Kind Kind
	Err  error
}

func (e *SourceError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *SourceError) Unwrap() error { return e.Err }

func wrap(k Kind, err error) error {
	if err == nil {
		return nil
	}
	return &SourceError{Kind: k, Err: err}
}

func Blocked(err error) error     { return wrap(KindBlocked, err) }
func RateLimited(err error) error { return wrap(KindRateLimited, err) }
func BadConfig(err error) error   { return wrap(KindBadConfig, err) }
func TLS(err error) error         { return wrap(KindTLS, err) }
func Transient(err error) error   { return wrap(KindTransient, err) }
func Timeout(err error) error     { return wrap(KindTimeout, err) }

// Classify maps an error to its Kind. Explicit SourceErrors win; otherwise
// the kind is inferred from context, TLS and network errors.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var (
		unknownAuth x509.UnknownAuthorityError
		certInvalid x509.CertificateInvalidError
		hostname    x509.HostnameError
		recordHdr   tls.RecordHeaderError
		verifyErr   *tls.CertificateVerificationError
	)
	if errors.As(err, &unknownAuth) || errors.As(err, &certInvalid) || errors.As(err, &hostname) ||
		errors.As(err, &recordHdr) || errors.As(err, &verifyErr) {
		return KindTLS
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return KindTransient
	}
	if strings.Contains(strings.ToLower(err.Error()), "connection reset") {
		return KindTransient
	}
	return KindOther
}

// LooksBlocked reports whether an HTML page is a bot wall rather than content.
func LooksBlocked(body []byte) bool {
	l := strings.ToLower(string(body))
	for _, marker := range []string{"captcha", "verify you are human", "access denied", "are you a robot"} {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return false
}
