// Package cloudflare manages records through the Cloudflare v4 REST API.
//
// Settings:
//
//	zone_id    required, the zone which holds the domain
//	api_token  required, a user or account owned token with Zone.DNS edit permission for the zone
//	comment    optional, attached to records this provider creates (default "managed by ddns")
//	base_url   optional, overrides the API endpoint
package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	cf "github.com/cloudflare/cloudflare-go"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddns/v2"
)

const Name = "cloudflare"

const defaultComment = "managed by ddns"

func init() {
	ddns.Register(Name, func(log *zap.Logger, settings map[string]string) (ddns.Provider, error) {
		return New(log, settings)
	})
}

// Provider implements ddns.Provider for one Cloudflare zone.
//
// It should be constructed using New.
type Provider struct {
	api     *cf.API
	zone    *cf.ResourceContainer
	log     *zap.Logger
	comment string // optional comment to attach to each new DNS entry

	// record IDs found by DescribeRecord, by FQDN
	records map[string]string
}

// New creates a Cloudflare provider from the given settings map.
// opts are passed to the underlying API client.
func New(log *zap.Logger, settings map[string]string, opts ...cf.Option) (*Provider, error) {
	zoneID := settings["zone_id"]
	if zoneID == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'zone_id'")
	}
	token := settings["api_token"]
	if token == "" {
		return nil, fmt.Errorf("cloudflare: missing required setting 'api_token'")
	}
	if u := settings["base_url"]; u != "" {
		opts = append([]cf.Option{cf.BaseURL(u)}, opts...)
	}
	comment := defaultComment
	if c, ok := settings["comment"]; ok {
		comment = c
	}
	if log == nil {
		log = zap.NewNop()
	}

	api, err := cf.NewWithAPIToken(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("cloudflare: error creating api client: %w", err)
	}
	return &Provider{
		api:     api,
		zone:    cf.ZoneIdentifier(zoneID),
		log:     log,
		comment: comment,
		records: make(map[string]string),
	}, nil
}

// Authorize verifies that the API token is active.
//
// Account owned tokens are rejected by the user token verify endpoint;
// when verification fails the token is accepted if it can read the zone.
func (p *Provider) Authorize(ctx context.Context) error {
	p.log.Debug("verifying api token")
	result, err := p.api.VerifyAPIToken(ctx)
	if err != nil {
		verifyErr := classify("verify token", err)
		if _, zoneErr := p.api.ZoneDetails(ctx, p.zone.Identifier); zoneErr != nil {
			p.log.Debug("zone lookup failed", zap.Error(zoneErr))
			return &ddns.AuthorizationError{Provider: Name, Err: verifyErr}
		}
		p.log.Debug("token verification failed but the zone is readable", zap.Error(verifyErr))
		return nil
	}
	if result.Status != "active" {
		return &ddns.AuthorizationError{
			Provider: Name,
			Err:      fmt.Errorf("expected api token status to be \"active\"; got %q", result.Status),
		}
	}
	return nil
}

func (p *Provider) DescribeRecord(ctx context.Context, subdomain, baseDomain string, t ddns.RecordType) (*ddns.RecordDetail, error) {
	fqdn := ddns.FullDomainName(subdomain, baseDomain)
	p.log.Debug("looking up record", zap.String("fqdn", fqdn), zap.String("type", string(t)))

	records, _, err := p.api.ListDNSRecords(ctx, p.zone, cf.ListDNSRecordsParams{
		Type: string(t),
		Name: fqdn,
		// an explicit page size turns off auto pagination; more than one result is an error anyway
		ResultInfo: cf.ResultInfo{PerPage: 100},
	})
	if err != nil {
		return nil, classify("list records", err)
	}
	switch len(records) {
	case 0:
		return nil, nil
	case 1:
	default:
		return nil, &ddns.AmbiguousRecordError{FQDN: fqdn, Type: t, Count: len(records)}
	}

	r := records[0]
	addr, err := netip.ParseAddr(r.Content)
	if err != nil {
		return nil, &ddns.DecodeError{Op: "list records", Err: fmt.Errorf("record %s content: %w", r.ID, err)}
	}
	p.records[fqdn] = r.ID
	p.log.Debug("found record", zap.String("fqdn", fqdn), zap.String("id", r.ID), zap.Stringer("addr", addr))
	return &ddns.RecordDetail{
		Subdomain:  subdomain,
		BaseDomain: baseDomain,
		TTL:        uint32(r.TTL),
		Proxied:    r.Proxied,
		Addr:       addr,
	}, nil
}

func (p *Provider) CreateRecord(ctx context.Context, r ddns.RecordDetail) error {
	fqdn := r.FQDN()
	proxied := r.Proxied
	if proxied == nil {
		proxied = cf.BoolPtr(false)
	}
	record, err := p.api.CreateDNSRecord(ctx, p.zone, cf.CreateDNSRecordParams{
		Type:    string(r.Type()),
		Name:    fqdn,
		Content: r.Addr.String(),
		TTL:     int(r.TTL),
		Proxied: proxied,
		Comment: p.comment,
	})
	if err != nil {
		return classify("create record", err)
	}
	if !strings.EqualFold(record.Name, fqdn) {
		return fmt.Errorf("cloudflare: created record has name %q; expected %q", record.Name, fqdn)
	}
	p.records[fqdn] = record.ID
	p.log.Debug("created record", zap.String("fqdn", fqdn), zap.String("id", record.ID))
	return nil
}

// UpdateRecord changes the record found by the preceding DescribeRecord for the same name.
// A nil Proxied leaves the flag as it is.
func (p *Provider) UpdateRecord(ctx context.Context, r ddns.RecordDetail) error {
	fqdn := r.FQDN()
	id, ok := p.records[fqdn]
	if !ok {
		return fmt.Errorf("cloudflare: no record id known for %s; DescribeRecord must be called first", fqdn)
	}
	_, err := p.api.UpdateDNSRecord(ctx, p.zone, cf.UpdateDNSRecordParams{
		ID:      id,
		Type:    string(r.Type()),
		Name:    fqdn,
		Content: r.Addr.String(),
		TTL:     int(r.TTL),
		Proxied: r.Proxied,
	})
	if err != nil {
		return classify("update record", err)
	}
	p.log.Debug("updated record", zap.String("fqdn", fqdn), zap.String("id", id))
	return nil
}

// classify maps cloudflare-go errors onto the ddns error kinds.
func classify(op string, err error) error {
	var apiErr interface {
		ErrorCodes() []int
		ErrorMessages() []string
	}
	if errors.As(err, &apiErr) {
		return &ddns.ProviderAPIError{Provider: Name, Op: op, Messages: messages(apiErr.ErrorCodes(), apiErr.ErrorMessages())}
	}
	var cfErr *cf.Error
	if errors.As(err, &cfErr) {
		return &ddns.ProviderAPIError{Provider: Name, Op: op, Messages: messages(cfErr.ErrorCodes, cfErr.ErrorMessages)}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ddns.DecodeError{Op: op, Err: err}
	}
	return &ddns.TransportError{Op: op, Err: err}
}

func messages(codes []int, msgs []string) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		if i < len(codes) {
			out[i] = fmt.Sprintf("[Code %d: %s]", codes[i], m)
			continue
		}
		out[i] = m
	}
	return out
}
