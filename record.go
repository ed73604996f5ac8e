package ddns

import (
	"fmt"
	"net/netip"
	"strings"
)

// RecordType is the DNS record type managed for a domain.
type RecordType string

const (
	TypeA    RecordType = "A"
	TypeAAAA RecordType = "AAAA"
)

// ParseRecordType accepts "A" or "AAAA" in any case.
func ParseRecordType(s string) (RecordType, error) {
	switch t := RecordType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeA, TypeAAAA:
		return t, nil
	}
	return "", fmt.Errorf("unsupported record type %q: expected A or AAAA", s)
}

// Family is the name of the IP family a record of this type holds.
func (t RecordType) Family() string {
	if t == TypeAAAA {
		return "IPv6"
	}
	return "IPv4"
}

// Matches reports whether addr belongs to the family of t.
func (t RecordType) Matches(addr netip.Addr) bool {
	switch t {
	case TypeA:
		return addr.Is4()
	case TypeAAAA:
		return addr.Is6() && !addr.Is4In6()
	}
	return false
}

func recordType(a netip.Addr) RecordType {
	if a.Is4() {
		return TypeA
	}
	return TypeAAAA
}

// TTLAuto is the TTL value that asks the provider for its automatic TTL.
const TTLAuto uint32 = 1

// RecordDetail is the provider independent shape of one host address record.
// The reconciler builds it as the desired state and providers return it as the actual state.
type RecordDetail struct {
	Subdomain  string
	BaseDomain string
	TTL        uint32
	// Proxied is nil when the provider does not report or support the flag.
	Proxied *bool
	Addr    netip.Addr
}

// Equal compares two records.
// A nil Proxied on either side matches any value on the other.
func (r RecordDetail) Equal(o RecordDetail) bool {
	if r.Subdomain != o.Subdomain || r.BaseDomain != o.BaseDomain || r.TTL != o.TTL || r.Addr != o.Addr {
		return false
	}
	if r.Proxied == nil || o.Proxied == nil {
		return true
	}
	return *r.Proxied == *o.Proxied
}

// FQDN returns the fully qualified name of the record.
func (r RecordDetail) FQDN() string {
	return FullDomainName(r.Subdomain, r.BaseDomain)
}

// Type returns A for IPv4 addresses and AAAA otherwise.
func (r RecordDetail) Type() RecordType {
	return recordType(r.Addr)
}

func (r RecordDetail) String() string {
	s := fmt.Sprintf("%s %d %s %s", r.FQDN(), r.TTL, r.Type(), r.Addr)
	if r.Proxied != nil {
		s += fmt.Sprintf(" proxied=%t", *r.Proxied)
	}
	return s
}

// IsApex reports whether label names the bare domain.
func IsApex(label string) bool {
	return label == "" || label == "@"
}

// FullDomainName joins a subdomain label and its base domain.
// The labels "@" and "" name the base domain itself.
func FullDomainName(subdomain, domain string) string {
	if IsApex(subdomain) {
		return domain
	}
	return subdomain + "." + domain
}
