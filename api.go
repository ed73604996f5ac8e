package ddns

import (
	"context"
	"net/netip"
)

type Resolver interface {
	Resolve(context.Context) ([]netip.Addr, error)
}

// Provider manages host address records at one DNS hosting service.
//
// Callers must call Authorize once before anything else,
// and DescribeRecord once for a name before CreateRecord or UpdateRecord for that name.
// Implementations may cache record identifiers found by DescribeRecord for the lifetime of the instance.
type Provider interface {
	Authorize(ctx context.Context) error
	// DescribeRecord returns nil when no record matches,
	// and an *AmbiguousRecordError when more than one does.
	DescribeRecord(ctx context.Context, subdomain, baseDomain string, t RecordType) (*RecordDetail, error)
	CreateRecord(ctx context.Context, r RecordDetail) error
	UpdateRecord(ctx context.Context, r RecordDetail) error
}

// AutoTTLer is implemented by providers which have no "automatic" TTL of their own.
// A subdomain configured with TTLAuto is published with the returned TTL instead.
type AutoTTLer interface {
	AutoTTL() uint32
}

// DomainSetting is the configuration for one domain, reconciled by one Reconciler.
type DomainSetting struct {
	Enabled         bool
	DomainName      string
	RecordType      RecordType
	CreateNewRecord bool
	Provider        ProviderConfig
	Subdomains      []SubdomainSetting
}

type SubdomainSetting struct {
	// Name is a label; "@" or "" is the domain apex.
	Name    string
	TTL     uint32
	Proxied *bool
	// InterfaceID is an IPv6 literal whose low 64 bits replace the host part of the resolved address.
	InterfaceID string
}

// ProviderConfig selects a registered provider by Name and carries its settings.
type ProviderConfig struct {
	Name     string
	Settings map[string]string
}
