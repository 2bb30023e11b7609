package check

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/surfaceguard/engine/finding"
)

// ErrNotConfigured is returned by a BreachClient that has no credentials
// for the upstream breach database.
var ErrNotConfigured = errors.New("breach client is not configured")

// BreachClient looks up an email address in an external breach database.
type BreachClient interface {
	// Lookup returns the number of known breaches the address appears in,
	// zero when it is clean.
	Lookup(ctx context.Context, email string) (int, error)
}

// HTTPBreachClient queries a HIBP-compatible breached-account endpoint.
type HTTPBreachClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// DefaultBreachBaseURL is the production breach-database endpoint.
const DefaultBreachBaseURL = "https://haveibeenpwned.com/api/v3"

// NewHTTPBreachClient creates a client for the given API key. An empty
// baseURL selects the production endpoint; tests point it at a local
// server.
func NewHTTPBreachClient(apiKey, baseURL string, client *http.Client) *HTTPBreachClient {
	if baseURL == "" {
		baseURL = DefaultBreachBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPBreachClient{apiKey: apiKey, baseURL: baseURL, client: client}
}

// Lookup queries the breached-account endpoint. 404 means the address is
// clean and reports zero breaches.
func (c *HTTPBreachClient) Lookup(ctx context.Context, email string) (int, error) {
	if c.apiKey == "" {
		return 0, ErrNotConfigured
	}
	endpoint := fmt.Sprintf("%s/breachedaccount/%s?truncateResponse=true", c.baseURL, url.PathEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("hibp-api-key", c.apiKey)
	req.Header.Set("user-agent", "surfaceguard-engine")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var breaches []json.RawMessage
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, err
		}
		if err := json.Unmarshal(body, &breaches); err != nil {
			return 0, fmt.Errorf("malformed breach response: %w", err)
		}
		return len(breaches), nil
	case http.StatusNotFound:
		return 0, nil
	default:
		return 0, fmt.Errorf("breach lookup returned status %d", resp.StatusCode)
	}
}

// emailBreach looks up the address in the breach database. The lookup is
// quota-gated per owner per UTC day: a denied lookup produces no finding
// and consumes no quota. An unconfigured client is itself reported, so the
// owner knows the check was skipped rather than clean.
func (p *probes) emailBreach(ctx context.Context, t Target) []*finding.Finding {
	if p.opts.Breach == nil {
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "breach:apikey_missing", finding.SeverityLow,
			"Breach lookup not configured",
			map[string]any{"note": "breach database API key not provided; email breach lookup was skipped"},
			"Provide a breach database API key to enable email breach checks")}
	}

	if p.opts.Gate != nil {
		ok, err := p.opts.Gate.Admit(ctx, t.OwnerID)
		if err != nil {
			p.opts.Logger.Warn("breach quota check failed", "owner_id", t.OwnerID, "error", err)
			return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "breach:error", finding.SeverityLow,
				"Breach lookup error",
				map[string]any{"error": err.Error()},
				"Retry the scan; if the error persists check quota storage connectivity")}
		}
		if !ok {
			p.opts.Logger.Info("breach lookup skipped, daily quota exhausted", "owner_id", t.OwnerID)
			return nil
		}
	}

	count, err := p.opts.Breach.Lookup(ctx, t.Value)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "breach:apikey_missing", finding.SeverityLow,
				"Breach lookup not configured",
				map[string]any{"note": "breach database API key not provided; email breach lookup was skipped"},
				"Provide a breach database API key to enable email breach checks")}
		}
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "breach:error", finding.SeverityLow,
			"Breach lookup error",
			map[string]any{"error": err.Error()},
			"Check breach database API key and rate limits")}
	}

	if count > 0 {
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "breach:found", finding.SeverityHigh,
			"Email found in breach feeds",
			map[string]any{"breaches_count": count},
			"This email has been seen in public breaches; rotate passwords and enable MFA")}
	}
	return nil
}
