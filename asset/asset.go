package asset

import (
	"fmt"
	"net"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of asset being examined. Each type maps to a
// fixed, ordered list of checks in the check catalog.
type Type string

const (
	// TypeEmail is an email address checked against public breach feeds.
	TypeEmail Type = "email"

	// TypeDomain is a DNS domain checked for mail-authentication records,
	// web security headers, and TLS certificate health.
	TypeDomain Type = "domain"

	// TypeIPv4 is an IPv4 host checked for reachability and exposed services.
	TypeIPv4 Type = "ipv4"

	// TypeURL is a full URL checked for availability, transport security,
	// and response headers.
	TypeURL Type = "url"
)

// typeSteps maps each asset type to the number of catalog checks that run
// against it. The execution driver uses these to size the progress bar.
var typeSteps = map[Type]int{
	TypeEmail:  1,
	TypeDomain: 5,
	TypeIPv4:   2,
	TypeURL:    3,
}

// IsValid returns true if the type is a recognized asset type.
func (t Type) IsValid() bool {
	switch t {
	case TypeEmail, TypeDomain, TypeIPv4, TypeURL:
		return true
	default:
		return false
	}
}

// Steps returns the number of checks the catalog runs for this asset type.
// Returns 0 for invalid types.
func (t Type) Steps() int {
	return typeSteps[t]
}

// String returns the string representation of the type.
func (t Type) String() string {
	return string(t)
}

// ParseType parses a string into an asset Type.
// Returns an error if the string is not a valid type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid asset type: %s", s)
	}
	return t, nil
}

// AllTypes returns every valid asset type in catalog dispatch order.
func AllTypes() []Type {
	return []Type{TypeEmail, TypeDomain, TypeIPv4, TypeURL}
}

// Asset is a user-owned identifier to be examined by a scan. Assets are
// immutable once created except for deletion, and are owned by exactly one
// user.
type Asset struct {
	// ID is the unique identifier for the asset.
	ID string `json:"id"`

	// OwnerID identifies the user that owns this asset.
	OwnerID string `json:"owner_id"`

	// Type is the kind of asset.
	Type Type `json:"type"`

	// Value is the asset itself: an address, domain, IP, or URL.
	Value string `json:"value"`

	// CreatedAt is the timestamp when the asset was registered.
	CreatedAt time.Time `json:"created_at"`
}

// New creates an Asset with a generated id after validating the value
// against the declared type.
func New(ownerID string, typ Type, value string) (*Asset, error) {
	a := &Asset{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Type:      typ,
		Value:     strings.TrimSpace(value),
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks that the asset has an owner and that its value is
// plausible for its declared type.
func (a *Asset) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("asset ID is required")
	}
	if a.OwnerID == "" {
		return fmt.Errorf("owner ID is required")
	}
	if !a.Type.IsValid() {
		return fmt.Errorf("invalid asset type: %s", a.Type)
	}
	if a.Value == "" {
		return fmt.Errorf("asset value is required")
	}

	switch a.Type {
	case TypeEmail:
		if _, err := mail.ParseAddress(a.Value); err != nil {
			return fmt.Errorf("invalid email address %q: %w", a.Value, err)
		}
	case TypeIPv4:
		ip := net.ParseIP(a.Value)
		if ip == nil || ip.To4() == nil {
			return fmt.Errorf("invalid IPv4 address %q", a.Value)
		}
	case TypeURL:
		u, err := url.Parse(a.Value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid URL %q: must be absolute http(s)", a.Value)
		}
	case TypeDomain:
		if strings.Contains(a.Value, "/") || strings.Contains(a.Value, " ") || !strings.Contains(a.Value, ".") {
			return fmt.Errorf("invalid domain %q", a.Value)
		}
	}
	return nil
}
