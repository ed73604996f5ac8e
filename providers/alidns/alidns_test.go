package alidns

import (
	"context"
	"net/netip"
	"testing"

	alidns "github.com/alibabacloud-go/alidns-20150109/v4/client"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Travis-Britz/ddns/v2"
)

type fakeClient struct {
	records []*alidns.DescribeDomainRecordsResponseBodyDomainRecordsRecord
	err     error
	added   []*alidns.AddDomainRecordRequest
	updated []*alidns.UpdateDomainRecordRequest
}

func (f *fakeClient) DescribeDomainRecords(req *alidns.DescribeDomainRecordsRequest) (*alidns.DescribeDomainRecordsResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &alidns.DescribeDomainRecordsResponse{
		Body: &alidns.DescribeDomainRecordsResponseBody{
			DomainRecords: &alidns.DescribeDomainRecordsResponseBodyDomainRecords{Record: f.records},
		},
	}, nil
}

func (f *fakeClient) AddDomainRecord(req *alidns.AddDomainRecordRequest) (*alidns.AddDomainRecordResponse, error) {
	f.added = append(f.added, req)
	return &alidns.AddDomainRecordResponse{Body: &alidns.AddDomainRecordResponseBody{RecordId: tea.String("new-1")}}, nil
}

func (f *fakeClient) UpdateDomainRecord(req *alidns.UpdateDomainRecordRequest) (*alidns.UpdateDomainRecordResponse, error) {
	f.updated = append(f.updated, req)
	return &alidns.UpdateDomainRecordResponse{}, nil
}

func rec(id, rr, typ, value string, ttl int64) *alidns.DescribeDomainRecordsResponseBodyDomainRecordsRecord {
	return &alidns.DescribeDomainRecordsResponseBodyDomainRecordsRecord{
		RecordId: tea.String(id),
		RR:       tea.String(rr),
		Type:     tea.String(typ),
		Value:    tea.String(value),
		TTL:      tea.Int64(ttl),
	}
}

func TestNewRequiredSettings(t *testing.T) {
	_, err := New(nil, map[string]string{"access_key_secret": "s"})
	require.ErrorContains(t, err, "access_key_id")
	_, err = New(nil, map[string]string{"access_key_id": "i"})
	require.ErrorContains(t, err, "access_key_secret")
}

func TestDescribeFiltersFuzzyMatches(t *testing.T) {
	f := &fakeClient{records: []*alidns.DescribeDomainRecordsResponseBodyDomainRecordsRecord{
		rec("1", "home", "A", "192.0.2.1", 600),
		rec("2", "home2", "A", "192.0.2.2", 600),
		rec("3", "myhome", "A", "192.0.2.3", 600),
	}}
	p := newWithAPI(nil, f)
	got, err := p.DescribeRecord(context.Background(), "home", "example.com", ddns.TypeA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), got.Addr)
	assert.Equal(t, "1", p.records["home.example.com"])
}

func TestDescribeAmbiguousAndMissing(t *testing.T) {
	f := &fakeClient{records: []*alidns.DescribeDomainRecordsResponseBodyDomainRecordsRecord{
		rec("1", "@", "A", "192.0.2.1", 600),
		rec("2", "@", "A", "192.0.2.2", 600),
	}}
	p := newWithAPI(nil, f)
	_, err := p.DescribeRecord(context.Background(), "", "example.com", ddns.TypeA)
	var ambiguous *ddns.AmbiguousRecordError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "example.com", ambiguous.FQDN)

	got, err := p.DescribeRecord(context.Background(), "www", "example.com", ddns.TypeA)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSDKError(t *testing.T) {
	f := &fakeClient{err: tea.NewSDKError(map[string]interface{}{
		"code":    "InvalidAccessKeyId.NotFound",
		"message": "Specified access key is not found.",
	})}
	_, err := newWithAPI(nil, f).DescribeRecord(context.Background(), "www", "example.com", ddns.TypeA)
	var apiErr *ddns.ProviderAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, []string{"[InvalidAccessKeyId.NotFound] Specified access key is not found."}, apiErr.Messages)
}

func TestCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	f := &fakeClient{records: []*alidns.DescribeDomainRecordsResponseBodyDomainRecordsRecord{rec("1", "home", "AAAA", "2001:db8::1", 600)}}
	p := newWithAPI(nil, f)

	_, err := p.DescribeRecord(ctx, "home", "example.com", ddns.TypeAAAA)
	require.NoError(t, err)
	require.NoError(t, p.UpdateRecord(ctx, ddns.RecordDetail{Subdomain: "home", BaseDomain: "example.com", TTL: 600, Addr: netip.MustParseAddr("2001:db8::2")}))
	require.Len(t, f.updated, 1)
	assert.Equal(t, "1", tea.StringValue(f.updated[0].RecordId))
	assert.Equal(t, "2001:db8::2", tea.StringValue(f.updated[0].Value))

	require.NoError(t, p.CreateRecord(ctx, ddns.RecordDetail{Subdomain: "@", BaseDomain: "example.com", TTL: 600, Addr: netip.MustParseAddr("2001:db8::3")}))
	require.Len(t, f.added, 1)
	assert.Equal(t, "@", tea.StringValue(f.added[0].RR))
	assert.Equal(t, int64(600), tea.Int64Value(f.added[0].TTL))
}
