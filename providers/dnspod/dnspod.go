// Package dnspod manages records through the Tencent Cloud DNSPod API.
//
// Settings: secret_id and secret_key (required), endpoint (optional).
package dnspod

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	tcerr "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/errors"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	dnspod "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/dnspod/v20210323"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddns/v2"
)

const Name = "dnspod"

const (
	defaultEndpoint = "dnspod.tencentcloudapi.com"
	defaultLine     = "默认"
	// DNSPod has no automatic TTL; 600 is the lowest the free plan accepts.
	autoTTL = 600
)

func init() {
	ddns.Register(Name, func(log *zap.Logger, settings map[string]string) (ddns.Provider, error) {
		return New(log, settings)
	})
}

type api interface {
	DescribeRecordListWithContext(context.Context, *dnspod.DescribeRecordListRequest) (*dnspod.DescribeRecordListResponse, error)
	CreateRecordWithContext(context.Context, *dnspod.CreateRecordRequest) (*dnspod.CreateRecordResponse, error)
	ModifyRecordWithContext(context.Context, *dnspod.ModifyRecordRequest) (*dnspod.ModifyRecordResponse, error)
}

// Provider implements ddns.Provider for DNSPod.
type Provider struct {
	client  api
	log     *zap.Logger
	records map[string]uint64
}

func New(log *zap.Logger, settings map[string]string) (*Provider, error) {
	id, key := settings["secret_id"], settings["secret_key"]
	if id == "" {
		return nil, fmt.Errorf("dnspod: missing required setting 'secret_id'")
	}
	if key == "" {
		return nil, fmt.Errorf("dnspod: missing required setting 'secret_key'")
	}
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = defaultEndpoint
	if e := settings["endpoint"]; e != "" {
		cpf.HttpProfile.Endpoint = e
	}
	client, err := dnspod.NewClient(common.NewCredential(id, key), "", cpf)
	if err != nil {
		return nil, fmt.Errorf("dnspod: error creating client: %w", err)
	}
	return newWithAPI(log, client), nil
}

func newWithAPI(log *zap.Logger, client api) *Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &Provider{client: client, log: log, records: make(map[string]uint64)}
}

// Authorize is a no-op; the credentials are checked by the first request.
func (p *Provider) Authorize(context.Context) error { return nil }

func (p *Provider) AutoTTL() uint32 { return autoTTL }

func (p *Provider) DescribeRecord(ctx context.Context, subdomain, baseDomain string, t ddns.RecordType) (*ddns.RecordDetail, error) {
	fqdn := ddns.FullDomainName(subdomain, baseDomain)
	rr := label(subdomain)

	req := dnspod.NewDescribeRecordListRequest()
	req.Domain = common.StringPtr(baseDomain)
	req.Subdomain = common.StringPtr(rr)
	req.RecordType = common.StringPtr(string(t))
	resp, err := p.client.DescribeRecordListWithContext(ctx, req)
	if err != nil {
		var sdkErr *tcerr.TencentCloudSDKError
		if errors.As(err, &sdkErr) && strings.HasSuffix(sdkErr.GetCode(), "NoDataOfRecord") {
			return nil, nil
		}
		return nil, classify("describe record list", err)
	}

	var matches []*dnspod.RecordListItem
	if resp.Response != nil {
		for _, r := range resp.Response.RecordList {
			if r.Name != nil && *r.Name == rr && r.Type != nil && *r.Type == string(t) {
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
	if r.RecordId == nil || r.Value == nil {
		return nil, &ddns.DecodeError{Op: "describe record list", Err: errors.New("record without id or value")}
	}
	addr, err := netip.ParseAddr(*r.Value)
	if err != nil {
		return nil, &ddns.DecodeError{Op: "describe record list", Err: err}
	}
	var ttl uint32
	if r.TTL != nil {
		ttl = uint32(*r.TTL)
	}
	p.records[fqdn] = *r.RecordId
	p.log.Debug("found record", zap.String("fqdn", fqdn), zap.Uint64("id", *r.RecordId))
	return &ddns.RecordDetail{
		Subdomain:  subdomain,
		BaseDomain: baseDomain,
		TTL:        ttl,
		Addr:       addr,
	}, nil
}

func (p *Provider) CreateRecord(ctx context.Context, r ddns.RecordDetail) error {
	req := dnspod.NewCreateRecordRequest()
	req.Domain = common.StringPtr(r.BaseDomain)
	req.SubDomain = common.StringPtr(label(r.Subdomain))
	req.RecordType = common.StringPtr(string(r.Type()))
	req.RecordLine = common.StringPtr(defaultLine)
	req.Value = common.StringPtr(r.Addr.String())
	req.TTL = common.Uint64Ptr(uint64(r.TTL))

	resp, err := p.client.CreateRecordWithContext(ctx, req)
	if err != nil {
		return classify("create record", err)
	}
	if resp.Response != nil && resp.Response.RecordId != nil {
		p.records[r.FQDN()] = *resp.Response.RecordId
	}
	return nil
}

func (p *Provider) UpdateRecord(ctx context.Context, r ddns.RecordDetail) error {
	id, ok := p.records[r.FQDN()]
	if !ok {
		return fmt.Errorf("dnspod: no record id known for %s; DescribeRecord must be called first", r.FQDN())
	}
	req := dnspod.NewModifyRecordRequest()
	req.Domain = common.StringPtr(r.BaseDomain)
	req.RecordId = common.Uint64Ptr(id)
	req.SubDomain = common.StringPtr(label(r.Subdomain))
	req.RecordType = common.StringPtr(string(r.Type()))
	req.RecordLine = common.StringPtr(defaultLine)
	req.Value = common.StringPtr(r.Addr.String())
	req.TTL = common.Uint64Ptr(uint64(r.TTL))

	if _, err := p.client.ModifyRecordWithContext(ctx, req); err != nil {
		return classify("modify record", err)
	}
	return nil
}

// label is the host label DNSPod uses, "@" for the apex.
func label(subdomain string) string {
	if ddns.IsApex(subdomain) {
		return "@"
	}
	return subdomain
}

func classify(op string, err error) error {
	var sdkErr *tcerr.TencentCloudSDKError
	if !errors.As(err, &sdkErr) {
		return &ddns.TransportError{Op: op, Err: err}
	}
	switch code := sdkErr.GetCode(); {
	case strings.HasPrefix(code, "ClientError.NetworkError"), strings.HasPrefix(code, "ClientError.HttpStatusCodeError"):
		return &ddns.TransportError{Op: op, Err: err}
	case strings.HasPrefix(code, "ClientError.ParseJsonError"):
		return &ddns.DecodeError{Op: op, Err: err}
	}
	return &ddns.ProviderAPIError{
		Provider: Name,
		Op:       op,
		Messages: []string{fmt.Sprintf("[%s] %s", sdkErr.GetCode(), sdkErr.GetMessage())},
	}
}
