package check

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/surfaceguard/engine/finding"
)

const noMXNote = "No MX records detected. If this domain does not send email, this is informational."

// hasMX reports whether the domain publishes MX records. Lookup failure is
// treated as "no mail": the mail-hygiene checks then downgrade their
// findings to informational instead of penalizing a web-only domain.
func (p *probes) hasMX(ctx context.Context, domain string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.opts.DNSTimeout)
	defer cancel()
	mx, err := p.opts.Resolver.LookupMX(ctx, domain)
	return err == nil && len(mx) > 0
}

// domainSPF verifies the domain publishes an SPF TXT record. Domains with
// no MX records get the same finding at low severity, exempt from scoring.
func (p *probes) domainSPF(ctx context.Context, t Target) []*finding.Finding {
	mxExists := p.hasMX(ctx, t.Value)

	lctx, cancel := context.WithTimeout(ctx, p.opts.DNSTimeout)
	defer cancel()
	texts, err := p.opts.Resolver.LookupTXT(lctx, t.Value)
	if err != nil {
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "spf:error", finding.SeverityLow,
			"SPF lookup failed",
			map[string]any{"error": err.Error(), "note": "DNS lookup failed. If this domain does not send email, this is informational."},
			"Ensure DNS is resolvable and public records are available").MarkScoringExempt()}
	}

	for _, txt := range texts {
		if strings.HasPrefix(txt, "v=spf1") {
			return nil
		}
	}

	if mxExists {
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "spf:missing", finding.SeverityHigh,
			"SPF record missing",
			map[string]any{"txt_records": txtEvidence(texts)},
			"Publish an SPF TXT record specifying authorized mail sources")}
	}
	return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "spf:missing", finding.SeverityLow,
		"SPF record missing",
		map[string]any{"txt_records": txtEvidence(texts), "note": noMXNote},
		"If you send email from this domain, publish an SPF TXT record specifying authorized mail sources").MarkScoringExempt()}
}

// domainDMARC verifies the _dmarc TXT record exists and carries an
// enforcing policy.
func (p *probes) domainDMARC(ctx context.Context, t Target) []*finding.Finding {
	mxExists := p.hasMX(ctx, t.Value)

	lctx, cancel := context.WithTimeout(ctx, p.opts.DNSTimeout)
	defer cancel()
	texts, err := p.opts.Resolver.LookupTXT(lctx, "_dmarc."+t.Value)
	if err != nil {
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "dmarc:error", finding.SeverityLow,
			"DMARC lookup failed",
			map[string]any{"error": err.Error(), "note": "DNS lookup failed. If this domain does not send email, this is informational."},
			"Ensure DNS is resolvable and public records are available").MarkScoringExempt()}
	}

	var record string
	for _, txt := range texts {
		if strings.HasPrefix(strings.ToLower(txt), "v=dmarc") {
			record = txt
			break
		}
	}

	if record == "" {
		if mxExists {
			return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "dmarc:missing", finding.SeverityHigh,
				"DMARC record missing",
				map[string]any{"txt_records": txtEvidence(texts)},
				"Publish a DMARC policy in DNS to help reduce email spoofing")}
		}
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "dmarc:missing", finding.SeverityLow,
			"DMARC record missing",
			map[string]any{"txt_records": txtEvidence(texts), "note": noMXNote},
			"If you send email from this domain, publish a DMARC policy in DNS to help reduce spoofing").MarkScoringExempt()}
	}

	if strings.Contains(strings.ToLower(record), "p=none") {
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "dmarc:policy_none", finding.SeverityMedium,
			"DMARC policy set to none",
			map[string]any{"record": record},
			"Consider enforcing DMARC policy to quarantine or reject (p=quarantine|reject) after testing")}
	}
	return nil
}

// domainDKIM probes for DKIM records under the default selector, falling
// back to a _domainkey CNAME. Selector names are provider-specific, so a
// missing default selector is never reported as a problem; only a total
// lookup failure produces a finding, and an informational one at that.
func (p *probes) domainDKIM(ctx context.Context, t Target) []*finding.Finding {
	mxExists := p.hasMX(ctx, t.Value)

	lctx, cancel := context.WithTimeout(ctx, p.opts.DNSTimeout)
	defer cancel()
	if texts, err := p.opts.Resolver.LookupTXT(lctx, "default._domainkey."+t.Value); err == nil && len(texts) > 0 {
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "dkim:found", finding.SeverityLow,
			"DKIM record present (default selector)",
			map[string]any{"txt": txtEvidence(texts)},
			"Verify DKIM is correctly configured and aligned with sending services")}
	}

	cctx, cancel := context.WithTimeout(ctx, p.opts.DNSTimeout)
	defer cancel()
	if _, err := p.opts.Resolver.LookupCNAME(cctx, "_domainkey."+t.Value); err == nil {
		// Selector-based setup; nothing to flag.
		return nil
	}

	note := noMXNote
	if mxExists {
		note = "DNS lookup failed. If you send email from this domain, verify DKIM selectors with your provider."
	}
	return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "dkim:error", finding.SeverityLow,
		"DKIM lookup failed",
		map[string]any{"note": note},
		"Ensure DNS is resolvable and public records are available").MarkScoringExempt()}
}

// domainHeaders fetches https://<domain> and reports missing browser
// security headers, noting redirect chains since externally hosted domains
// commonly redirect.
func (p *probes) domainHeaders(ctx context.Context, t Target) []*finding.Finding {
	resp, err := p.fetch(ctx, "https://"+t.Value)
	if err != nil {
		switch classifyFetchError(err) {
		case fetchErrTLS:
			return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "tls:ssl_error", finding.SeverityHigh,
				"TLS/SSL error or external hosting detected",
				map[string]any{"error": err.Error()},
				"If hosted externally, SSL is likely handled by the provider; verify with your host")}
		case fetchErrConn, fetchErrTimeout:
			return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "headers:connection_error", finding.SeverityMedium,
				"Could not connect to domain",
				map[string]any{"error": err.Error()},
				"Verify the domain is configured and accessible")}
		default:
			return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "headers:error", finding.SeverityLow,
				"Security headers check failed",
				map[string]any{"error": err.Error()},
				"Check network reachability and site availability")}
		}
	}
	defer resp.Body.Close()

	var findings []*finding.Finding
	if hops := redirectHops(resp); hops > 0 {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "headers:redirects", finding.SeverityLow,
			"Domain redirects (may be hosted externally)",
			map[string]any{"redirect_chain": hops, "final_url": resp.Request.URL.String()},
			"This is normal for domains hosted on managed platforms"))
	}

	h := resp.Header
	if h.Get("Strict-Transport-Security") == "" {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "headers:hsts_missing", finding.SeverityMedium,
			"HSTS header missing",
			map[string]any{"note": "Not critical for externally hosted domains"},
			"Enable HSTS to ensure browsers only use HTTPS"))
	}
	if h.Get("Content-Security-Policy") == "" {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "headers:csp_missing", finding.SeverityMedium,
			"CSP header missing",
			map[string]any{"note": "Contact your hosting provider if needed"},
			"Add a Content-Security-Policy appropriate to your site"))
	}
	if h.Get("X-Frame-Options") == "" {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "headers:xfo_missing", finding.SeverityLow,
			"X-Frame-Options missing", nil,
			"Consider setting X-Frame-Options to DENY or SAMEORIGIN"))
	}
	if h.Get("X-Content-Type-Options") == "" {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "headers:nosniff_missing", finding.SeverityLow,
			"X-Content-Type-Options missing", nil,
			"Set X-Content-Type-Options to nosniff to prevent MIME-type sniffing"))
	}
	if h.Get("Referrer-Policy") == "" {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "headers:referrer_missing", finding.SeverityLow,
			"Referrer-Policy missing", nil,
			"Set a Referrer-Policy, e.g. no-referrer or strict-origin-when-cross-origin"))
	}
	return findings
}

// domainTLS retrieves the certificate on port 443 and reports on its
// expiry: expired is critical, under 30 days remaining is high, and a
// healthy certificate is recorded as an informational finding.
func (p *probes) domainTLS(ctx context.Context, t Target) []*finding.Finding {
	cert, err := p.fetchPeerCert(ctx, net.JoinHostPort(t.Value, "443"), t.Value)
	if err != nil {
		return tlsErrorFinding(t, "tls", err)
	}
	return certExpiryFindings(t, "tls", cert, time.Now().UTC())
}

// fetch issues a redirect-following GET bounded by the HTTP timeout.
func (p *probes) fetch(ctx context.Context, rawURL string) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, p.opts.HTTPTimeout)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := p.opts.HTTPClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	// The body must be drained before the deadline fires; header-only
	// probes close it promptly so holding the cancel is fine.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// fetchPeerCert dials addr with TLS and returns the leaf certificate.
func (p *probes) fetchPeerCert(ctx context.Context, addr, serverName string) (*x509.Certificate, error) {
	dialer := &net.Dialer{Timeout: p.opts.TLSTimeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: serverName})
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	certs := conn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, &noCertError{addr: addr}
	}
	return certs[0], nil
}

type noCertError struct{ addr string }

func (e *noCertError) Error() string { return "no peer certificate presented by " + e.addr }

// certExpiryFindings maps a certificate's remaining lifetime onto findings
// under the given check-id namespace.
func certExpiryFindings(t Target, ns string, cert *x509.Certificate, now time.Time) []*finding.Finding {
	daysLeft := int(cert.NotAfter.Sub(now).Hours() / 24)
	notAfter := cert.NotAfter.UTC().Format(time.RFC3339)
	switch {
	case daysLeft < 0:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, ns+":expired", finding.SeverityCritical,
			"TLS certificate expired",
			map[string]any{"not_after": notAfter},
			"Renew the TLS certificate immediately")}
	case daysLeft < 30:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, ns+":expiring_soon", finding.SeverityHigh,
			"TLS certificate expiring soon",
			map[string]any{"days_left": daysLeft, "not_after": notAfter},
			"Renew TLS certificate before expiry")}
	default:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, ns+":valid", finding.SeverityLow,
			"TLS certificate valid",
			map[string]any{"days_left": daysLeft, "not_after": notAfter},
			"Certificate is valid; no action needed")}
	}
}

// tlsErrorFinding classifies a failed certificate retrieval under the
// given namespace.
func tlsErrorFinding(t Target, ns string, err error) []*finding.Finding {
	switch classifyFetchError(err) {
	case fetchErrTLS:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, ns+":cert_verify_error", finding.SeverityHigh,
			"Certificate verification failed",
			map[string]any{"error": err.Error()},
			"This may indicate an externally hosted domain; verify with your hosting provider")}
	case fetchErrTimeout:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, ns+":timeout", finding.SeverityMedium,
			"TLS certificate check timed out", nil,
			"Connection timed out; the host may not be properly configured or may be down")}
	case fetchErrConn:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, ns+":connection_error", finding.SeverityMedium,
			"Could not connect for TLS check",
			map[string]any{"error": err.Error()},
			"Verify the host is accessible on port 443")}
	default:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, ns+":error", finding.SeverityLow,
			"TLS certificate check failed",
			map[string]any{"error": err.Error()},
			"Ensure the host is reachable and supports TLS")}
	}
}

// redirectHops counts the redirects the client followed to reach resp.
func redirectHops(resp *http.Response) int {
	hops := 0
	for prev := resp.Request.Response; prev != nil; prev = prev.Request.Response {
		hops++
	}
	return hops
}

// txtEvidence coerces TXT record sets into a JSON-friendly slice.
func txtEvidence(texts []string) []any {
	out := make([]any, 0, len(texts))
	for _, t := range texts {
		out = append(out, t)
	}
	return out
}
