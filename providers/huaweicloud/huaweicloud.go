// Package huaweicloud manages records through the Huawei Cloud DNS API.
//
// Settings: access_key and secret_key (required), region (optional, default cn-north-4).
// The zone is found by the longest public zone name that is a suffix of the domain.
package huaweicloud

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/auth/basic"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/core/sdkerr"
	dns "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2"
	"github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/model"
	dnsregion "github.com/huaweicloud/huaweicloud-sdk-go-v3/services/dns/v2/region"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddns/v2"
)

const Name = "huaweicloud"

const (
	defaultRegion = "cn-north-4"
	autoTTL       = 300
)

func init() {
	ddns.Register(Name, func(log *zap.Logger, settings map[string]string) (ddns.Provider, error) {
		return New(log, settings)
	})
}

type api interface {
	ListPublicZones(*model.ListPublicZonesRequest) (*model.ListPublicZonesResponse, error)
	ListRecordSetsByZone(*model.ListRecordSetsByZoneRequest) (*model.ListRecordSetsByZoneResponse, error)
	CreateRecordSet(*model.CreateRecordSetRequest) (*model.CreateRecordSetResponse, error)
	UpdateRecordSet(*model.UpdateRecordSetRequest) (*model.UpdateRecordSetResponse, error)
}

type recordRef struct {
	zoneID, id string
}

type Provider struct {
	client  api
	log     *zap.Logger
	zones   map[string]string // base domain to zone id
	records map[string]recordRef
}

func New(log *zap.Logger, settings map[string]string) (*Provider, error) {
	ak, sk := settings["access_key"], settings["secret_key"]
	if ak == "" {
		return nil, fmt.Errorf("huaweicloud: missing required setting 'access_key'")
	}
	if sk == "" {
		return nil, fmt.Errorf("huaweicloud: missing required setting 'secret_key'")
	}
	region := settings["region"]
	if region == "" {
		region = defaultRegion
	}
	r, err := dnsregion.SafeValueOf(region)
	if err != nil {
		return nil, fmt.Errorf("huaweicloud: invalid region %q: %w", region, err)
	}
	auth := basic.NewCredentialsBuilder().
		WithAk(ak).
		WithSk(sk).
		Build()
	client := dns.NewDnsClient(
		dns.DnsClientBuilder().
			WithRegion(r).
			WithCredential(auth).
			Build())
	return newWithAPI(log, client), nil
}

func newWithAPI(log *zap.Logger, client api) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{
		client:  client,
		log:     log,
		zones:   make(map[string]string),
		records: make(map[string]recordRef),
	}
}

// Authorize is a no-op; the credentials are checked by the first request.
func (p *Provider) Authorize(context.Context) error { return nil }

func (p *Provider) AutoTTL() uint32 { return autoTTL }

func (p *Provider) zoneID(domain string) (string, error) {
	if id, ok := p.zones[domain]; ok {
		return id, nil
	}
	resp, err := p.client.ListPublicZones(&model.ListPublicZonesRequest{Limit: int32Ptr(500)})
	if err != nil {
		return "", classify("list public zones", err)
	}
	max := 0
	var zid string
	if resp.Zones != nil {
		for _, z := range *resp.Zones {
			if z.Name == nil || z.Id == nil {
				continue
			}
			name := strings.TrimSuffix(*z.Name, ".")
			if (domain == name || strings.HasSuffix(domain, "."+name)) && len(name) > max {
				max, zid = len(name), *z.Id
			}
		}
	}
	if max == 0 {
		return "", fmt.Errorf("huaweicloud: unable to find a zone matching %q", domain)
	}
	p.zones[domain] = zid
	return zid, nil
}

func (p *Provider) DescribeRecord(ctx context.Context, subdomain, baseDomain string, t ddns.RecordType) (*ddns.RecordDetail, error) {
	fqdn := ddns.FullDomainName(subdomain, baseDomain)
	zid, err := p.zoneID(baseDomain)
	if err != nil {
		return nil, err
	}
	name := fqdn + "."
	typ := string(t)
	resp, err := p.client.ListRecordSetsByZone(&model.ListRecordSetsByZoneRequest{
		ZoneId: zid,
		Name:   &name,
		Type:   &typ,
	})
	if err != nil {
		return nil, classify("list record sets", err)
	}

	var matches []model.ListRecordSets
	if resp.Recordsets != nil {
		for _, rs := range *resp.Recordsets {
			if rs.Name != nil && strings.EqualFold(*rs.Name, name) && rs.Type != nil && *rs.Type == typ {
				matches = append(matches, rs)
			}
		}
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, &ddns.AmbiguousRecordError{FQDN: fqdn, Type: t, Count: len(matches)}
	}

	rs := matches[0]
	if rs.Id == nil || rs.Records == nil || len(*rs.Records) == 0 {
		return nil, &ddns.DecodeError{Op: "list record sets", Err: fmt.Errorf("record set for %s has no id or value", fqdn)}
	}
	// a record set with several values is several records
	if n := len(*rs.Records); n > 1 {
		return nil, &ddns.AmbiguousRecordError{FQDN: fqdn, Type: t, Count: n}
	}
	addr, err := netip.ParseAddr((*rs.Records)[0])
	if err != nil {
		return nil, &ddns.DecodeError{Op: "list record sets", Err: err}
	}
	var ttl uint32
	if rs.Ttl != nil {
		ttl = uint32(*rs.Ttl)
	}
	p.records[fqdn] = recordRef{zoneID: zid, id: *rs.Id}
	return &ddns.RecordDetail{
		Subdomain:  subdomain,
		BaseDomain: baseDomain,
		TTL:        ttl,
		Addr:       addr,
	}, nil
}

func (p *Provider) CreateRecord(ctx context.Context, r ddns.RecordDetail) error {
	zid, err := p.zoneID(r.BaseDomain)
	if err != nil {
		return err
	}
	resp, err := p.client.CreateRecordSet(&model.CreateRecordSetRequest{
		ZoneId: zid,
		Body: &model.CreateRecordSetRequestBody{
			Name:    r.FQDN() + ".",
			Type:    string(r.Type()),
			Records: []string{r.Addr.String()},
			Ttl:     int32Ptr(int32(r.TTL)),
		},
	})
	if err != nil {
		return classify("create record set", err)
	}
	if resp.Id != nil {
		p.records[r.FQDN()] = recordRef{zoneID: zid, id: *resp.Id}
	}
	return nil
}

func (p *Provider) UpdateRecord(ctx context.Context, r ddns.RecordDetail) error {
	ref, ok := p.records[r.FQDN()]
	if !ok {
		return fmt.Errorf("huaweicloud: no record id known for %s; DescribeRecord must be called first", r.FQDN())
	}
	name := r.FQDN() + "."
	typ := string(r.Type())
	_, err := p.client.UpdateRecordSet(&model.UpdateRecordSetRequest{
		ZoneId:      ref.zoneID,
		RecordsetId: ref.id,
		Body: &model.UpdateRecordSetReq{
			Name:    &name,
			Type:    &typ,
			Records: &[]string{r.Addr.String()},
			Ttl:     int32Ptr(int32(r.TTL)),
		},
	})
	if err != nil {
		return classify("update record set", err)
	}
	return nil
}

func int32Ptr(v int32) *int32 { return &v }

func classify(op string, err error) error {
	var respErr *sdkerr.ServiceResponseError
	if errors.As(err, &respErr) {
		return &ddns.ProviderAPIError{
			Provider: Name,
			Op:       op,
			Messages: []string{fmt.Sprintf("[%s] %s", respErr.ErrorCode, respErr.ErrorMessage)},
		}
	}
	return &ddns.TransportError{Op: op, Err: err}
}
