package ddns_test

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Travis-Britz/ddns/v2"
)

func static(addrs ...string) ddns.Resolver {
	return ddns.ResolverFunc(func(context.Context) ([]netip.Addr, error) {
		var out []netip.Addr
		for _, a := range addrs {
			out = append(out, netip.MustParseAddr(a))
		}
		return out, nil
	})
}

func failing(msg string) ddns.Resolver {
	return ddns.ResolverFunc(func(context.Context) ([]netip.Addr, error) {
		return nil, errors.New(msg)
	})
}

func TestFromString(t *testing.T) {
	addrs, err := ddns.FromString("192.0.2.7").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("192.0.2.7")}, addrs)

	_, err = ddns.FromString("not an ip").Resolve(context.Background())
	assert.Error(t, err)
}

func TestJoinCollectsAddressesAndErrors(t *testing.T) {
	r := ddns.Join(static("192.0.2.1"), failing("boom"), static("2001:db8::1"))
	addrs, err := r.Resolve(context.Background())
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("2001:db8::1")}, addrs)
}

func TestParseResolver(t *testing.T) {
	tests := []struct {
		source string
		valid  bool
	}{
		{"https://api.ipify.org", true},
		{"https://a.example/ip http://b.example/ip  https://c.example/ip", true},
		{"iface:", true},
		{"iface:eth0, wlan0", true},
		{"static:192.0.2.1", true},
		{"static:2001:db8::1", true},
		{"", false},
		{"   ", false},
		{"static:nope", false},
		{"ftp://example.com", false},
		{"example.com/ip", false},
		{"iface:eth0; https://a.example/ip https://b.example/ip", true},
		{"static:192.0.2.1;", false},
		{"static:192.0.2.1; ftp://example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			r, err := ddns.ParseResolver(tt.source)
			if !tt.valid {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}

	r, err := ddns.ParseResolver("static:192.0.2.1")
	require.NoError(t, err)
	addrs, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), addrs[0])
}

func TestParseResolverCombined(t *testing.T) {
	r, err := ddns.ParseResolver("static:192.0.2.1 ; static:2001:db8::1")
	require.NoError(t, err)
	addrs, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []netip.Addr{netip.MustParseAddr("192.0.2.1"), netip.MustParseAddr("2001:db8::1")}, addrs)

	a := ddns.ResolveAddresses(context.Background(), r, r)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), a.IPv4)
	assert.Equal(t, netip.MustParseAddr("2001:db8::1"), a.IPv6)
}

func TestResolveAddressesFamilies(t *testing.T) {
	// the IPv4 source only knows an IPv6 address
	a := ddns.ResolveAddresses(context.Background(), static("2001:db8::1"), static("192.0.2.1", "2001:db8::2"))

	_, err := a.For(ddns.TypeA)
	var resErr *ddns.AddressResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "IPv4", resErr.Family)

	v6, err := a.For(ddns.TypeAAAA)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("2001:db8::2"), v6)
}

func TestResolveAddressesPrefersPublic(t *testing.T) {
	a := ddns.ResolveAddresses(context.Background(),
		static("10.0.0.5", "203.0.113.10"),
		static("fd00::5", "2606:4700::1111"),
	)
	v4, err := a.For(ddns.TypeA)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("203.0.113.10"), v4)
	v6, err := a.For(ddns.TypeAAAA)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("2606:4700::1111"), v6)

	a = ddns.ResolveAddresses(context.Background(), static("10.0.0.5", "10.0.0.6"), nil)
	v4, err = a.For(ddns.TypeA)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), v4, "falls back to the first address of the family")
	assert.True(t, a.Attempted(ddns.TypeA))
	assert.False(t, a.Attempted(ddns.TypeAAAA), "a nil resolver is not an attempt")
	assert.NoError(t, a.IPv6Err)
	_, err = a.For(ddns.TypeAAAA)
	assert.ErrorContains(t, err, "not resolved")
}

func TestResolveAddressesOneFamilyFails(t *testing.T) {
	a := ddns.ResolveAddresses(context.Background(), failing("network unreachable"), static("2001:db8::1"))
	assert.ErrorContains(t, a.IPv4Err, "network unreachable")
	assert.True(t, a.Attempted(ddns.TypeA), "a failed family was still attempted")
	assert.NoError(t, a.IPv6Err)
	assert.Equal(t, netip.MustParseAddr("2001:db8::1"), a.IPv6)
}
