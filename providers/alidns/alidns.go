// Package alidns manages records through the Alibaba Cloud DNS API.
//
// Settings: access_key_id and access_key_secret (required), region (optional, default cn-hangzhou).
package alidns

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	alidns "github.com/alibabacloud-go/alidns-20150109/v4/client"
	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	"github.com/alibabacloud-go/tea/tea"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddns/v2"
)

const Name = "alidns"

const autoTTL = 600

func init() {
	ddns.Register(Name, func(log *zap.Logger, settings map[string]string) (ddns.Provider, error) {
		return New(log, settings)
	})
}

type api interface {
	DescribeDomainRecords(*alidns.DescribeDomainRecordsRequest) (*alidns.DescribeDomainRecordsResponse, error)
	AddDomainRecord(*alidns.AddDomainRecordRequest) (*alidns.AddDomainRecordResponse, error)
	UpdateDomainRecord(*alidns.UpdateDomainRecordRequest) (*alidns.UpdateDomainRecordResponse, error)
}

type Provider struct {
	client  api
	log     *zap.Logger
	records map[string]string
}

func New(log *zap.Logger, settings map[string]string) (*Provider, error) {
	id, secret := settings["access_key_id"], settings["access_key_secret"]
	if id == "" {
		return nil, fmt.Errorf("alidns: missing required setting 'access_key_id'")
	}
	if secret == "" {
		return nil, fmt.Errorf("alidns: missing required setting 'access_key_secret'")
	}
	endpoint := "alidns.cn-hangzhou.aliyuncs.com"
	if region := settings["region"]; region != "" {
		endpoint = fmt.Sprintf("alidns.%s.aliyuncs.com", region)
	}
	client, err := alidns.NewClient(&openapi.Config{
		AccessKeyId:     tea.String(id),
		AccessKeySecret: tea.String(secret),
		Endpoint:        tea.String(endpoint),
	})
	if err != nil {
		return nil, fmt.Errorf("alidns: error creating client: %w", err)
	}
	return newWithAPI(log, client), nil
}

func newWithAPI(log *zap.Logger, client api) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{client: client, log: log, records: make(map[string]string)}
}

// Authorize is a no-op; the credentials are checked by the first request.
func (p *Provider) Authorize(context.Context) error { return nil }

func (p *Provider) AutoTTL() uint32 { return autoTTL }

func (p *Provider) DescribeRecord(ctx context.Context, subdomain, baseDomain string, t ddns.RecordType) (*ddns.RecordDetail, error) {
	fqdn := ddns.FullDomainName(subdomain, baseDomain)
	host := rr(subdomain)
	resp, err := p.client.DescribeDomainRecords(&alidns.DescribeDomainRecordsRequest{
		DomainName: tea.String(baseDomain),
		RRKeyWord:  tea.String(host),
		Type:       tea.String(string(t)),
		PageSize:   tea.Int64(500),
	})
	if err != nil {
		return nil, classify("describe domain records", err)
	}

	// RRKeyWord is a fuzzy match
	var matches []*alidns.DescribeDomainRecordsResponseBodyDomainRecordsRecord
	if resp.Body != nil && resp.Body.DomainRecords != nil {
		for _, r := range resp.Body.DomainRecords.Record {
			if tea.StringValue(r.RR) == host && tea.StringValue(r.Type) == string(t) {
				matches = append(matches, r)
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

	r := matches[0]
	addr, err := netip.ParseAddr(tea.StringValue(r.Value))
	if err != nil {
		return nil, &ddns.DecodeError{Op: "describe domain records", Err: err}
	}
	p.records[fqdn] = tea.StringValue(r.RecordId)
	p.log.Debug("found record", zap.String("fqdn", fqdn), zap.String("id", tea.StringValue(r.RecordId)))
	return &ddns.RecordDetail{
		Subdomain:  subdomain,
		BaseDomain: baseDomain,
		TTL:        uint32(tea.Int64Value(r.TTL)),
		Addr:       addr,
	}, nil
}

func (p *Provider) CreateRecord(ctx context.Context, r ddns.RecordDetail) error {
	resp, err := p.client.AddDomainRecord(&alidns.AddDomainRecordRequest{
		DomainName: tea.String(r.BaseDomain),
		RR:         tea.String(rr(r.Subdomain)),
		Type:       tea.String(string(r.Type())),
		Value:      tea.String(r.Addr.String()),
		TTL:        tea.Int64(int64(r.TTL)),
	})
	if err != nil {
		return classify("add domain record", err)
	}
	if resp.Body != nil && resp.Body.RecordId != nil {
		p.records[r.FQDN()] = *resp.Body.RecordId
	}
	return nil
}

func (p *Provider) UpdateRecord(ctx context.Context, r ddns.RecordDetail) error {
	id, ok := p.records[r.FQDN()]
	if !ok {
		return fmt.Errorf("alidns: no record id known for %s; DescribeRecord must be called first", r.FQDN())
	}
	_, err := p.client.UpdateDomainRecord(&alidns.UpdateDomainRecordRequest{
		RecordId: tea.String(id),
		RR:       tea.String(rr(r.Subdomain)),
		Type:     tea.String(string(r.Type())),
		Value:    tea.String(r.Addr.String()),
		TTL:      tea.Int64(int64(r.TTL)),
	})
	if err != nil {
		return classify("update domain record", err)
	}
	return nil
}

func rr(subdomain string) string {
	if ddns.IsApex(subdomain) {
		return "@"
	}
	return subdomain
}

func classify(op string, err error) error {
	var sdkErr *tea.SDKError
	if errors.As(err, &sdkErr) && sdkErr.Code != nil {
		return &ddns.ProviderAPIError{
			Provider: Name,
			Op:       op,
			Messages: []string{fmt.Sprintf("[%s] %s", tea.StringValue(sdkErr.Code), tea.StringValue(sdkErr.Message))},
		}
	}
	return &ddns.TransportError{Op: op, Err: err}
}
