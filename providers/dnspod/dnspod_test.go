package dnspod

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tcerr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	dnspod "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/dnspod/v20210323"

	"github.com/Travis-Britz/ddns/v2"
)

type fakeClient struct {
	list     []*dnspod.RecordListItem
	listErr  error
	created  []*dnspod.CreateRecordRequest
	modified []*dnspod.ModifyRecordRequest
}

func (f *fakeClient) DescribeRecordListWithContext(_ context.Context, req *dnspod.DescribeRecordListRequest) (*dnspod.DescribeRecordListResponse, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	resp := dnspod.NewDescribeRecordListResponse()
	resp.Response = &dnspod.DescribeRecordListResponseParams{RecordList: f.list}
	return resp, nil
}

func (f *fakeClient) CreateRecordWithContext(_ context.Context, req *dnspod.CreateRecordRequest) (*dnspod.CreateRecordResponse, error) {
	f.created = append(f.created, req)
	resp := dnspod.NewCreateRecordResponse()
	resp.Response = &dnspod.CreateRecordResponseParams{RecordId: common.Uint64Ptr(99)}
	return resp, nil
}

func (f *fakeClient) ModifyRecordWithContext(_ context.Context, req *dnspod.ModifyRecordRequest) (*dnspod.ModifyRecordResponse, error) {
	f.modified = append(f.modified, req)
	return dnspod.NewModifyRecordResponse(), nil
}

func item(id uint64, name, typ, value string, ttl uint64) *dnspod.RecordListItem {
	return &dnspod.RecordListItem{
		RecordId: common.Uint64Ptr(id),
		Name:     common.StringPtr(name),
		Type:     common.StringPtr(typ),
		Value:    common.StringPtr(value),
		TTL:      common.Uint64Ptr(ttl),
	}
}

func TestNewRequiredSettings(t *testing.T) {
	_, err := New(nil, map[string]string{"secret_key": "k"})
	require.ErrorContains(t, err, "secret_id")
	_, err = New(nil, map[string]string{"secret_id": "i"})
	require.ErrorContains(t, err, "secret_key")
	p, err := New(nil, map[string]string{"secret_id": "i", "secret_key": "k"})
	require.NoError(t, err)
	assert.Equal(t, uint32(600), p.AutoTTL())
}

func TestDescribeRecord(t *testing.T) {
	ctx := context.Background()
	f := &fakeClient{list: []*dnspod.RecordListItem{
		item(7, "www", "A", "192.0.2.1", 600),
		item(8, "wwwx", "A", "192.0.2.2", 600),
	}}
	p := newWithAPI(nil, f)

	got, err := p.DescribeRecord(ctx, "www", "example.com", ddns.TypeA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), got.Addr)
	assert.Equal(t, uint32(600), got.TTL)
	assert.Nil(t, got.Proxied)
	assert.Equal(t, uint64(7), p.records["www.example.com"])

	f.list = append(f.list, item(9, "www", "A", "192.0.2.3", 600))
	_, err = p.DescribeRecord(ctx, "www", "example.com", ddns.TypeA)
	var ambiguous *ddns.AmbiguousRecordError
	require.ErrorAs(t, err, &ambiguous)

	f.listErr = tcerr.NewTencentCloudSDKError("ResourceNotFound.NoDataOfRecord", "记录列表为空。", "req-1")
	got, err = p.DescribeRecord(ctx, "new", "example.com", ddns.TypeA)
	require.NoError(t, err)
	assert.Nil(t, got)

	f.listErr = tcerr.NewTencentCloudSDKError("AuthFailure.SignatureFailure", "bad signature", "req-2")
	_, err = p.DescribeRecord(ctx, "new", "example.com", ddns.TypeA)
	var apiErr *ddns.ProviderAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []string{"[AuthFailure.SignatureFailure] bad signature"}, apiErr.Messages)
}

func TestCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	f := &fakeClient{list: []*dnspod.RecordListItem{item(7, "@", "AAAA", "2001:db8::1", 600)}}
	p := newWithAPI(nil, f)

	desired := ddns.RecordDetail{BaseDomain: "example.com", Subdomain: "@", TTL: 600, Addr: netip.MustParseAddr("2001:db8::2")}
	require.Error(t, p.UpdateRecord(ctx, desired))

	_, err := p.DescribeRecord(ctx, "@", "example.com", ddns.TypeAAAA)
	require.NoError(t, err)
	require.NoError(t, p.UpdateRecord(ctx, desired))
	require.Len(t, f.modified, 1)
	assert.Equal(t, uint64(7), *f.modified[0].RecordId)
	assert.Equal(t, "@", *f.modified[0].SubDomain)
	assert.Equal(t, "2001:db8::2", *f.modified[0].Value)

	require.NoError(t, p.CreateRecord(ctx, ddns.RecordDetail{BaseDomain: "example.com", Subdomain: "nas", TTL: 600, Addr: netip.MustParseAddr("2001:db8::3")}))
	require.Len(t, f.created, 1)
	assert.Equal(t, "AAAA", *f.created[0].RecordType)
	assert.Equal(t, uint64(600), *f.created[0].TTL)
	assert.Equal(t, uint64(99), p.records["nas.example.com"])
}
