package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"strings"
	"sync"
)

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(context.Context) ([]netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) ([]netip.Addr, error) {
	return f(ctx)
}

// Join returns a resolver which runs every resolver concurrently and returns all of their addresses.
// Errors from individual resolvers are joined.
func Join(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(ctx context.Context) ([]netip.Addr, error) {
		addrs := make([][]netip.Addr, len(resolvers))
		errs := make([]error, len(resolvers))
		var wg sync.WaitGroup
		for i, r := range resolvers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				addrs[i], errs[i] = r.Resolve(ctx)
			}()
		}
		wg.Wait()
		var all []netip.Addr
		for _, a := range addrs {
			all = append(all, a...)
		}
		return all, errors.Join(errs...)
	})
}

// ParseResolver builds a resolver from a source description:
//
//	iface:eth0,wlan0     addresses of the named local interfaces (iface: alone means all interfaces)
//	static:192.0.2.1     a fixed address
//	https://a https://b  one or more space separated web services, see WebResolver
//
// Several sources separated by ";" are combined with Join,
// e.g. "iface:eth0; https://a https://b".
func ParseResolver(source string) (Resolver, error) {
	if parts := strings.Split(source, ";"); len(parts) > 1 {
		resolvers := make([]Resolver, 0, len(parts))
		for _, part := range parts {
			r, err := parseSource(part)
			if err != nil {
				return nil, err
			}
			resolvers = append(resolvers, r)
		}
		return Join(resolvers...), nil
	}
	return parseSource(source)
}

func parseSource(source string) (Resolver, error) {
	source = strings.TrimSpace(source)
	switch {
	case source == "":
		return nil, errors.New("empty resolver source")
	case strings.HasPrefix(source, "iface:"):
		var names []string
		for _, n := range strings.Split(strings.TrimPrefix(source, "iface:"), ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		return InterfaceResolver(names...), nil
	case strings.HasPrefix(source, "static:"):
		s := strings.TrimSpace(strings.TrimPrefix(source, "static:"))
		if _, err := netip.ParseAddr(s); err != nil {
			return nil, fmt.Errorf("invalid static address: %w", err)
		}
		return FromString(s), nil
	}
	urls := strings.Fields(source)
	for _, u := range urls {
		pu, err := url.Parse(u)
		if err != nil {
			return nil, fmt.Errorf("invalid resolver URL %q: %w", u, err)
		}
		if pu.Scheme != "http" && pu.Scheme != "https" {
			return nil, fmt.Errorf("invalid resolver URL %q: scheme must be http or https", u)
		}
	}
	return WebResolver(urls...), nil
}

// Addresses holds the outcome of resolving each IP family.
// A failure of one family says nothing about the other.
// A family with neither an address nor an error was not resolved at all.
type Addresses struct {
	IPv4    netip.Addr
	IPv4Err error
	IPv6    netip.Addr
	IPv6Err error
}

// For returns the address to publish in records of type t.
func (a Addresses) For(t RecordType) (netip.Addr, error) {
	addr, err := a.IPv4, a.IPv4Err
	if t == TypeAAAA {
		addr, err = a.IPv6, a.IPv6Err
	}
	if err != nil {
		return netip.Addr{}, err
	}
	if !addr.IsValid() {
		return netip.Addr{}, &AddressResolutionError{Family: t.Family(), Err: errors.New("not resolved")}
	}
	return addr, nil
}

// Attempted reports whether resolution of the family of t was tried in this run.
func (a Addresses) Attempted(t RecordType) bool {
	if t == TypeAAAA {
		return a.IPv6.IsValid() || a.IPv6Err != nil
	}
	return a.IPv4.IsValid() || a.IPv4Err != nil
}

// ResolveAddresses resolves the IPv4 and IPv6 address concurrently.
// A nil resolver leaves its family unresolved without an error; see Addresses.Attempted.
func ResolveAddresses(ctx context.Context, ipv4, ipv6 Resolver) Addresses {
	var a Addresses
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.IPv4, a.IPv4Err = resolveFamily(ctx, ipv4, TypeA)
	}()
	go func() {
		defer wg.Done()
		a.IPv6, a.IPv6Err = resolveFamily(ctx, ipv6, TypeAAAA)
	}()
	wg.Wait()
	return a
}

// resolveFamily picks the first public address of the family of t,
// falling back to the first address of that family at all.
func resolveFamily(ctx context.Context, r Resolver, t RecordType) (netip.Addr, error) {
	if r == nil {
		return netip.Addr{}, nil
	}
	addrs, err := r.Resolve(ctx)
	if err != nil {
		return netip.Addr{}, &AddressResolutionError{Family: t.Family(), Err: err}
	}
	var fallback netip.Addr
	for _, a := range addrs {
		if !t.Matches(a) {
			continue
		}
		if a.IsGlobalUnicast() && !a.IsPrivate() {
			return a, nil
		}
		if !fallback.IsValid() {
			fallback = a
		}
	}
	if fallback.IsValid() {
		return fallback, nil
	}
	return netip.Addr{}, &AddressResolutionError{Family: t.Family(), Err: fmt.Errorf("no %s address among %v", t.Family(), addrs)}
}
