package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
)

const (
	maxRedirects   = 5
	defaultTimeout = 10 * time.Second
	userAgent      = "SiteGuard/1.0"
)

// Prober performs one bounded HTTP(S) check against a site and returns a
// fully populated CheckResult. It never returns an error: every failure
// mode is encoded in the result.
type Prober struct {
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Prober with the given default timeout.
func New(timeout time.Duration, logger *zap.Logger) *Prober {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Prober{timeout: timeout, logger: logger}
}

// Check probes the site once. Response time is measured from request start
// to the first response byte. For HTTPS targets the leaf certificate expiry
// and chain validity are recorded.
func (p *Prober) Check(ctx context.Context, site *models.Site) *models.CheckResult {
	result := &models.CheckResult{
		SiteID:    site.ID,
		Timestamp: time.Now().UTC(),
	}

	timeout := site.Timeout()
	if timeout <= 0 {
		timeout = p.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: timeout}).DialContext,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			DisableKeepAlives: true,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, site.URL, nil)
	if err != nil {
		fail(result, models.ErrorKindConnect, fmt.Sprintf("invalid request: %v", err))
		return result
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	var firstByte time.Time
	trace := &httptrace.ClientTrace{
		GotFirstResponseByte: func() {
			firstByte = time.Now()
		},
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))

	resp, err := client.Do(req)
	if err != nil {
		kind := classify(err)
		fail(result, kind, err.Error())
		if kind == models.ErrorKindTLS {
			valid := false
			result.SSLValid = &valid
		}
		result.ResponseTimeMs = time.Since(start).Milliseconds()
		p.logger.Debug("probe failed",
			zap.String("site_id", site.ID),
			zap.String("url", site.URL),
			zap.String("error_kind", kind),
		)
		return result
	}
	defer resp.Body.Close()

	if firstByte.IsZero() {
		firstByte = time.Now()
	}
	result.ResponseTimeMs = firstByte.Sub(start).Milliseconds()

	status := resp.StatusCode
	result.HTTPStatus = &status

	if resp.TLS != nil && len(resp.TLS.PeerCertificates) > 0 {
		// Transport verified chain and hostname or we would not be here.
		valid := true
		result.SSLValid = &valid
		expires := resp.TLS.PeerCertificates[0].NotAfter.UTC()
		result.SSLExpiresAt = &expires
	}

	switch {
	case status >= 500:
		fail(result, models.ErrorKindHTTP5xx, fmt.Sprintf("server error: HTTP %d", status))
	case status >= 400:
		// Reachable but answering with a client error: still online,
		// annotated for the dashboard.
		result.Annotation = models.AnnotationNon2xx
	}

	p.logger.Debug("probe completed",
		zap.String("site_id", site.ID),
		zap.Int("status", status),
		zap.Int64("response_time_ms", result.ResponseTimeMs),
	)
	return result
}

func fail(result *models.CheckResult, kind, detail string) {
	k := kind
	result.ErrorKind = &k
	result.ErrorDetail = detail
}

// classify maps a transport error to its probe error category. DNS, TLS and
// connection-layer failures all leave HTTPStatus unset.
func classify(err error) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return models.ErrorKindDNS
	}

	var certVerifyErr *tls.CertificateVerificationError
	if errors.As(err, &certVerifyErr) {
		return models.ErrorKindTLS
	}
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return models.ErrorKindTLS
	}
	var unknownAuthErr x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthErr) {
		return models.ErrorKindTLS
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return models.ErrorKindTLS
	}
	var certInvalidErr x509.CertificateInvalidError
	if errors.As(err, &certInvalidErr) {
		return models.ErrorKindTLS
	}

	// Refused connections, unreachable hosts and timeouts all count as
	// connection-layer failures.
	return models.ErrorKindConnect
}
