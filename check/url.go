package check

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/surfaceguard/engine/finding"
)

// urlAccessibility fetches the URL and reports on the response class.
// Plain-HTTP URLs additionally get probed over HTTPS: an answering HTTPS
// twin means the asset should not be served over HTTP at all.
func (p *probes) urlAccessibility(ctx context.Context, t Target) []*finding.Finding {
	resp, err := p.fetch(ctx, t.Value)
	if err != nil {
		switch classifyFetchError(err) {
		case fetchErrTLS:
			return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "url:ssl_error", finding.SeverityCritical,
				"TLS/SSL error",
				map[string]any{"url": t.Value, "error": err.Error()},
				"Fix SSL certificate issues; invalid certificates expose users to attacks")}
		case fetchErrTimeout:
			return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "url:timeout", finding.SeverityMedium,
				"Request timed out",
				map[string]any{"url": t.Value},
				"Check server performance and network connectivity")}
		default:
			return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "url:error", finding.SeverityLow,
				"URL accessibility check failed",
				map[string]any{"url": t.Value, "error": err.Error()},
				"Verify the URL is correct and the server is reachable")}
		}
	}
	resp.Body.Close()

	var findings []*finding.Finding
	switch {
	case resp.StatusCode >= 500:
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "url:server_error", finding.SeverityHigh,
			fmt.Sprintf("Server error: HTTP %d", resp.StatusCode),
			map[string]any{"url": t.Value, "status_code": resp.StatusCode},
			"Investigate server errors and ensure the site is functioning properly"))
	case resp.StatusCode >= 400:
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "url:client_error", finding.SeverityMedium,
			fmt.Sprintf("Client error: HTTP %d", resp.StatusCode),
			map[string]any{"url": t.Value, "status_code": resp.StatusCode},
			"Verify the URL is correct and accessible"))
	}

	if strings.HasPrefix(t.Value, "http://") {
		httpsURL := "https://" + strings.TrimPrefix(t.Value, "http://")
		if hResp, err := p.fetch(ctx, httpsURL); err == nil {
			hResp.Body.Close()
			if hResp.StatusCode < 400 {
				findings = append(findings, finding.New(t.ScanID, t.AssetID, "url:http_when_https_available", finding.SeverityHigh,
					"Using HTTP when HTTPS is available",
					map[string]any{"url": t.Value, "https_url": httpsURL},
					"Always use HTTPS to encrypt traffic"))
			}
		}
	}
	return findings
}

// urlHeaders checks the response for missing browser security headers.
// HSTS only applies to HTTPS URLs. Fetch failure is reported once by the
// accessibility check; here a TLS failure is silently skipped and anything
// else downgrades to a single informational finding.
func (p *probes) urlHeaders(ctx context.Context, t Target) []*finding.Finding {
	resp, err := p.fetch(ctx, t.Value)
	if err != nil {
		if classifyFetchError(err) == fetchErrTLS {
			return nil
		}
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "url:headers_error", finding.SeverityLow,
			"Security headers check failed",
			map[string]any{"url": t.Value, "error": err.Error()},
			"Check network reachability")}
	}
	defer resp.Body.Close()

	var findings []*finding.Finding
	h := resp.Header
	if strings.HasPrefix(t.Value, "https://") && h.Get("Strict-Transport-Security") == "" {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "url:hsts_missing", finding.SeverityMedium,
			"HSTS header missing",
			map[string]any{"url": t.Value},
			"Enable HSTS to ensure browsers only use HTTPS"))
	}
	if h.Get("Content-Security-Policy") == "" {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "url:csp_missing", finding.SeverityMedium,
			"CSP header missing",
			map[string]any{"url": t.Value},
			"Add Content-Security-Policy to mitigate XSS attacks"))
	}
	if h.Get("X-Frame-Options") == "" {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "url:xfo_missing", finding.SeverityLow,
			"X-Frame-Options missing",
			map[string]any{"url": t.Value},
			"Set X-Frame-Options to prevent clickjacking"))
	}
	if h.Get("X-Content-Type-Options") == "" {
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "url:nosniff_missing", finding.SeverityLow,
			"X-Content-Type-Options missing",
			map[string]any{"url": t.Value},
			"Set X-Content-Type-Options: nosniff"))
	}
	return findings
}

// urlCert retrieves the certificate for HTTPS URLs and reports on expiry.
// Non-HTTPS URLs have nothing to check.
func (p *probes) urlCert(ctx context.Context, t Target) []*finding.Finding {
	u, err := url.Parse(t.Value)
	if err != nil || u.Scheme != "https" {
		return nil
	}
	port := u.Port()
	if port == "" {
		port = "443"
	}
	host := u.Hostname()

	cert, err := p.fetchPeerCert(ctx, net.JoinHostPort(host, port), host)
	if err != nil {
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "url:ssl_check_error", finding.SeverityLow,
			"SSL certificate check failed",
			map[string]any{"url": t.Value, "error": err.Error()},
			"Ensure SSL is properly configured")}
	}

	daysLeft := int(time.Until(cert.NotAfter).Hours() / 24)
	notAfter := cert.NotAfter.UTC().Format(time.RFC3339)
	switch {
	case daysLeft < 0:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "url:cert_expired", finding.SeverityCritical,
			"SSL certificate expired",
			map[string]any{"url": t.Value, "not_after": notAfter},
			"Renew the SSL certificate immediately")}
	case daysLeft < 30:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "url:cert_expiring", finding.SeverityHigh,
			"SSL certificate expiring soon",
			map[string]any{"url": t.Value, "days_left": daysLeft},
			"Renew the certificate before expiry")}
	default:
		return nil
	}
}
