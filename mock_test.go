package ddns_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Travis-Britz/ddns/v2"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Authorize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockProvider) DescribeRecord(ctx context.Context, subdomain, baseDomain string, t ddns.RecordType) (*ddns.RecordDetail, error) {
	args := m.Called(ctx, subdomain, baseDomain, t)
	r, _ := args.Get(0).(*ddns.RecordDetail)
	return r, args.Error(1)
}

func (m *mockProvider) CreateRecord(ctx context.Context, r ddns.RecordDetail) error {
	return m.Called(ctx, r).Error(0)
}

func (m *mockProvider) UpdateRecord(ctx context.Context, r ddns.RecordDetail) error {
	return m.Called(ctx, r).Error(0)
}

// autoTTLProvider is a mockProvider without an automatic TTL of its own.
type autoTTLProvider struct {
	*mockProvider
	ttl uint32
}

func (p autoTTLProvider) AutoTTL() uint32 { return p.ttl }

var none = (*ddns.RecordDetail)(nil)

func boolPtr(b bool) *bool { return &b }
