// Package check implements the probe catalog: the fixed, ordered lists of
// checks the execution driver runs against each asset type.
//
// Checks are pure functions of the target: they return findings, never
// errors. Expected network failure is converted into a low-severity
// informational finding (the "<namespace>:error" convention) so a single
// unreachable asset degrades the report instead of aborting the scan. Each
// probe bounds its own network work so one stalled host cannot stall the
// run.
package check

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/surfaceguard/engine/asset"
	"github.com/surfaceguard/engine/finding"
	"github.com/surfaceguard/engine/quota"
)

// Target identifies one asset within one scan run.
type Target struct {
	// ScanID is the scan the produced findings belong to.
	ScanID string

	// OwnerID is the user the scan runs for; quota-gated checks consume
	// this user's quota.
	OwnerID string

	// AssetID is the asset under examination.
	AssetID string

	// Value is the asset value: an address, domain, IP, or URL.
	Value string
}

// Func inspects one asset and returns zero or more findings.
type Func func(ctx context.Context, t Target) []*finding.Finding

// Check is one catalog entry: a stable identifier plus the probe function.
type Check struct {
	// ID names the check, e.g. "spf" or "port-scan".
	ID string

	// Run executes the probe.
	Run Func
}

// Catalog maps each asset type to its fixed, ordered check list.
type Catalog struct {
	checks map[asset.Type][]Check
}

// New creates a Catalog from explicit per-type check lists. Used by tests
// and callers that substitute probes; production wiring uses Default.
func New(checks map[asset.Type][]Check) *Catalog {
	return &Catalog{checks: checks}
}

// For returns the ordered check list for the given asset type. Unknown
// types return nil: the driver skips them.
func (c *Catalog) For(t asset.Type) []Check {
	return c.checks[t]
}

// DNSResolver is the subset of net.Resolver the domain probes use.
// Tests substitute a fake; production uses net.DefaultResolver.
type DNSResolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupCNAME(ctx context.Context, name string) (string, error)
}

// Options configures the production catalog.
type Options struct {
	// Logger records probe-level diagnostics. Defaults to slog.Default.
	Logger *slog.Logger

	// Gate guards the breach lookup. A nil gate admits every lookup.
	Gate *quota.Gate

	// Breach performs the external breach-database lookup. A nil client
	// reports the lookup as unconfigured (low informational finding).
	Breach BreachClient

	// Resolver performs DNS lookups. Defaults to net.DefaultResolver.
	Resolver DNSResolver

	// Pinger performs the ICMP reachability probe. Defaults to the
	// system ping binary.
	Pinger Pinger

	// HTTPClient fetches pages for header and availability probes.
	// Defaults to a redirect-following client bounded by HTTPTimeout.
	HTTPClient *http.Client

	// HTTPTimeout bounds each HTTP probe. Defaults to 10s.
	HTTPTimeout time.Duration

	// DNSTimeout bounds each DNS lookup. Defaults to 5s.
	DNSTimeout time.Duration

	// TLSTimeout bounds certificate retrieval. Defaults to 5s.
	TLSTimeout time.Duration

	// PortTimeout bounds each port connect attempt. Defaults to 2s.
	PortTimeout time.Duration

	// Ports overrides the scanned port list. Defaults to CommonPorts.
	Ports []int
}

func (o *Options) applyDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Resolver == nil {
		o.Resolver = net.DefaultResolver
	}
	if o.Pinger == nil {
		o.Pinger = systemPinger{}
	}
	if o.HTTPTimeout == 0 {
		o.HTTPTimeout = 10 * time.Second
	}
	if o.DNSTimeout == 0 {
		o.DNSTimeout = 5 * time.Second
	}
	if o.TLSTimeout == 0 {
		o.TLSTimeout = 5 * time.Second
	}
	if o.PortTimeout == 0 {
		o.PortTimeout = 2 * time.Second
	}
	if len(o.Ports) == 0 {
		o.Ports = CommonPorts
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: o.HTTPTimeout}
	}
}

// Default builds the production catalog. The per-type check counts match
// asset.Type.Steps, which sizes the driver's progress bar.
func Default(opts Options) *Catalog {
	opts.applyDefaults()
	p := &probes{opts: opts}

	return New(map[asset.Type][]Check{
		asset.TypeEmail: {
			{ID: "breach-lookup", Run: p.emailBreach},
		},
		asset.TypeDomain: {
			{ID: "spf", Run: p.domainSPF},
			{ID: "dmarc", Run: p.domainDMARC},
			{ID: "dkim", Run: p.domainDKIM},
			{ID: "security-headers", Run: p.domainHeaders},
			{ID: "tls-cert", Run: p.domainTLS},
		},
		asset.TypeIPv4: {
			{ID: "icmp-reachability", Run: p.ipv4Connectivity},
			{ID: "port-scan", Run: p.ipv4Ports},
		},
		asset.TypeURL: {
			{ID: "url-access", Run: p.urlAccessibility},
			{ID: "url-headers", Run: p.urlHeaders},
			{ID: "url-cert", Run: p.urlCert},
		},
	})
}

// probes carries shared configuration for the production check functions.
type probes struct {
	opts Options
}
