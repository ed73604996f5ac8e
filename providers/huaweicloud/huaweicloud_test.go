package huaweicloud

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Travis-Britz/ddns/v2"
)

type fakeClient struct {
	zones      []model.PublicZoneResp
	recordsets []model.ListRecordSets
	zoneCalls  int
	lastList   *model.ListRecordSetsByZoneRequest
	created    []*model.CreateRecordSetRequest
	updated    []*model.UpdateRecordSetRequest
}

func (f *fakeClient) ListPublicZones(*model.ListPublicZonesRequest) (*model.ListPublicZonesResponse, error) {
	f.zoneCalls++
	return &model.ListPublicZonesResponse{Zones: &f.zones}, nil
}

func (f *fakeClient) ListRecordSetsByZone(req *model.ListRecordSetsByZoneRequest) (*model.ListRecordSetsByZoneResponse, error) {
	f.lastList = req
	return &model.ListRecordSetsByZoneResponse{Recordsets: &f.recordsets}, nil
}

func (f *fakeClient) CreateRecordSet(req *model.CreateRecordSetRequest) (*model.CreateRecordSetResponse, error) {
	f.created = append(f.created, req)
	id := "created-1"
	return &model.CreateRecordSetResponse{Id: &id}, nil
}

func (f *fakeClient) UpdateRecordSet(req *model.UpdateRecordSetRequest) (*model.UpdateRecordSetResponse, error) {
	f.updated = append(f.updated, req)
	return &model.UpdateRecordSetResponse{}, nil
}

func ptr[T any](v T) *T { return &v }

func zone(id, name string) model.PublicZoneResp {
	return model.PublicZoneResp{Id: ptr(id), Name: ptr(name)}
}

func recordset(id, name, typ string, ttl int32, values ...string) model.ListRecordSets {
	return model.ListRecordSets{Id: ptr(id), Name: ptr(name), Type: ptr(typ), Ttl: ptr(ttl), Records: &values}
}

func TestNewRequiredSettings(t *testing.T) {
	_, err := New(nil, map[string]string{"secret_key": "s"})
	require.ErrorContains(t, err, "access_key")
	_, err = New(nil, map[string]string{"access_key": "a"})
	require.ErrorContains(t, err, "secret_key")
}

func TestZoneIDLongestSuffix(t *testing.T) {
	f := &fakeClient{zones: []model.PublicZoneResp{
		zone("z1", "example.com."),
		zone("z2", "home.example.com."),
		zone("z3", "ample.com."),
	}}
	p := newWithAPI(nil, f)

	id, err := p.zoneID("lab.home.example.com")
	require.NoError(t, err)
	assert.Equal(t, "z2", id)

	id, err = p.zoneID("example.com")
	require.NoError(t, err)
	assert.Equal(t, "z1", id)

	_, err = p.zoneID("lab.home.example.com")
	require.NoError(t, err)
	assert.Equal(t, 2, f.zoneCalls, "zone ids are cached per domain")

	_, err = p.zoneID("example.org")
	require.Error(t, err)
}

func TestDescribeRecord(t *testing.T) {
	ctx := context.Background()
	f := &fakeClient{
		zones: []model.PublicZoneResp{zone("z1", "example.com.")},
		recordsets: []model.ListRecordSets{
			recordset("r1", "www.example.com.", "A", 300, "192.0.2.1"),
			recordset("r2", "www2.example.com.", "A", 300, "192.0.2.2"),
			recordset("r3", "multi.example.com.", "A", 300, "192.0.2.3", "192.0.2.4"),
		},
	}
	p := newWithAPI(nil, f)

	got, err := p.DescribeRecord(ctx, "www", "example.com", ddns.TypeA)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, netip.MustParseAddr("192.0.2.1"), got.Addr)
	assert.Equal(t, uint32(300), got.TTL)
	assert.Equal(t, "www.example.com.", *f.lastList.Name)

	got, err = p.DescribeRecord(ctx, "nope", "example.com", ddns.TypeA)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = p.DescribeRecord(ctx, "multi", "example.com", ddns.TypeA)
	var ambiguous *ddns.AmbiguousRecordError
	require.True(t, errors.As(err, &ambiguous))
	assert.Equal(t, 2, ambiguous.Count)
}

func TestCreateAndUpdate(t *testing.T) {
	ctx := context.Background()
	f := &fakeClient{
		zones:      []model.PublicZoneResp{zone("z1", "example.com.")},
		recordsets: []model.ListRecordSets{recordset("r1", "example.com.", "AAAA", 300, "2001:db8::1")},
	}
	p := newWithAPI(nil, f)

	_, err := p.DescribeRecord(ctx, "@", "example.com", ddns.TypeAAAA)
	require.NoError(t, err)
	require.NoError(t, p.UpdateRecord(ctx, ddns.RecordDetail{Subdomain: "@", BaseDomain: "example.com", TTL: 300, Addr: netip.MustParseAddr("2001:db8::2")}))
	require.Len(t, f.updated, 1)
	assert.Equal(t, "r1", f.updated[0].RecordsetId)
	assert.Equal(t, []string{"2001:db8::2"}, *f.updated[0].Body.Records)

	require.NoError(t, p.CreateRecord(ctx, ddns.RecordDetail{Subdomain: "nas", BaseDomain: "example.com", TTL: 300, Addr: netip.MustParseAddr("2001:db8::3")}))
	require.Len(t, f.created, 1)
	assert.Equal(t, "nas.example.com.", f.created[0].Body.Name)
	assert.Equal(t, int32(300), *f.created[0].Body.Ttl)
}
