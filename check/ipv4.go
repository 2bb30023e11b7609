package check

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	osexec "github.com/surfaceguard/engine/exec"
	"github.com/surfaceguard/engine/finding"
)

// CommonPorts is the default port list swept on IPv4 assets.
var CommonPorts = []int{21, 22, 23, 25, 53, 80, 110, 143, 443, 445, 3306, 3389, 5432, 5900, 8080, 8443}

// riskyPort describes a service whose internet exposure is itself a
// finding, independent of configuration.
type riskyPort struct {
	service        string
	severity       finding.Severity
	recommendation string
}

var riskyPorts = map[int]riskyPort{
	21:   {"FTP", finding.SeverityCritical, "FTP is unencrypted; consider SFTP/FTPS"},
	23:   {"Telnet", finding.SeverityCritical, "Telnet is insecure; use SSH instead"},
	25:   {"SMTP", finding.SeverityMedium, "Ensure SMTP is properly secured and not an open relay"},
	110:  {"POP3", finding.SeverityMedium, "Consider using encrypted alternatives (POP3S)"},
	143:  {"IMAP", finding.SeverityMedium, "Consider using encrypted alternatives (IMAPS)"},
	445:  {"SMB", finding.SeverityHigh, "SMB should not be exposed to the internet; restrict access"},
	3306: {"MySQL", finding.SeverityHigh, "Database port exposed; restrict to internal networks only"},
	3389: {"RDP", finding.SeverityCritical, "RDP exposed to the internet is high-risk; use VPN or disable"},
	5432: {"PostgreSQL", finding.SeverityHigh, "Database port exposed; restrict to internal networks only"},
	5900: {"VNC", finding.SeverityCritical, "VNC exposed is high-risk; use an encrypted tunnel"},
}

// Pinger checks host reachability. The production implementation shells
// out to the system ping binary; tests substitute a fake.
type Pinger interface {
	// Ping returns nil when the host answered, ErrHostUnreachable when it
	// did not, and any other error when the probe itself failed.
	Ping(ctx context.Context, host string) error
}

// ErrHostUnreachable reports a host that did not answer the reachability
// probe.
var ErrHostUnreachable = errors.New("host unreachable")

// systemPinger runs the system ping binary with a single echo request.
type systemPinger struct{}

func (systemPinger) Ping(ctx context.Context, host string) error {
	if !osexec.BinaryExists("ping") {
		return fmt.Errorf("ping binary not found in PATH")
	}
	res, err := osexec.Run(ctx, osexec.Config{
		Command: "ping",
		Args:    []string{"-c", "1", host},
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return err
	}
	if res.ExitCode != 0 {
		return ErrHostUnreachable
	}
	return nil
}

// ipv4Connectivity probes the address with a single ICMP echo.
func (p *probes) ipv4Connectivity(ctx context.Context, t Target) []*finding.Finding {
	err := p.opts.Pinger.Ping(ctx, t.Value)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrHostUnreachable):
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "ipv4:unreachable", finding.SeverityMedium,
			"IP address unreachable",
			map[string]any{"ip": t.Value, "note": "Could not reach host via ping"},
			"Verify the IP address is correct and the host is online")}
	default:
		return []*finding.Finding{finding.New(t.ScanID, t.AssetID, "ipv4:connectivity_error", finding.SeverityLow,
			"Connectivity check failed",
			map[string]any{"ip": t.Value, "error": err.Error()},
			"Check network connectivity and permissions")}
	}
}

// ipv4Ports sweeps the common port list with TCP connects. Risky services
// each get their own finding at the table's severity; the remaining open
// ports are summarized in one low-severity finding. Ports are probed
// concurrently since each connect waits out its own timeout on a filtered
// host.
func (p *probes) ipv4Ports(ctx context.Context, t Target) []*finding.Finding {
	type probe struct {
		port int
		open bool
	}
	results := make([]probe, len(p.opts.Ports))

	var wg sync.WaitGroup
	for i, port := range p.opts.Ports {
		wg.Add(1)
		go func(i, port int) {
			defer wg.Done()
			d := net.Dialer{Timeout: p.opts.PortTimeout}
			conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(t.Value, strconv.Itoa(port)))
			if err == nil {
				conn.Close()
			}
			results[i] = probe{port: port, open: err == nil}
		}(i, port)
	}
	wg.Wait()

	var findings []*finding.Finding
	var safePorts []int
	for _, r := range results {
		if !r.open {
			continue
		}
		rp, risky := riskyPorts[r.port]
		if !risky {
			safePorts = append(safePorts, r.port)
			continue
		}
		findings = append(findings, finding.New(t.ScanID, t.AssetID,
			fmt.Sprintf("ipv4:risky_port_%d", r.port), rp.severity,
			fmt.Sprintf("Risky service exposed: %s (port %d)", rp.service, r.port),
			map[string]any{"ip": t.Value, "port": r.port, "service": rp.service},
			rp.recommendation))
	}

	if len(safePorts) > 0 {
		sort.Ints(safePorts)
		strs := make([]string, 0, len(safePorts))
		ports := make([]any, 0, len(safePorts))
		for _, port := range safePorts {
			strs = append(strs, strconv.Itoa(port))
			ports = append(ports, port)
		}
		findings = append(findings, finding.New(t.ScanID, t.AssetID, "ipv4:open_ports", finding.SeverityLow,
			"Open ports detected: "+strings.Join(strs, ", "),
			map[string]any{"ip": t.Value, "open_ports": ports},
			"Review open ports and ensure only necessary services are exposed"))
	}
	return findings
}
