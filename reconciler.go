package ddns

import (
	"context"
	"errors"
	"net/netip"

	"go.uber.org/zap"
)

// Action is what a reconciliation did with one record.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	ActionSkipped   Action = "skipped"
	ActionFailed    Action = "failed"
)

// Outcome is the result of reconciling one subdomain.
// Err is set for failed outcomes and for domains skipped because their address could not be resolved.
type Outcome struct {
	Domain    string
	Subdomain string
	FQDN      string
	Type      RecordType
	Provider  string
	Action    Action
	Addr      netip.Addr
	Err       error
}

// Reconciler drives one provider through authorize, describe and create or update
// for every subdomain of one domain.
// A Reconciler is not safe for concurrent use and should be used for a single run.
type Reconciler struct {
	setting  DomainSetting
	addr     netip.Addr
	provider Provider
	log      *zap.Logger
}

// NewReconciler returns a reconciler publishing addr for the subdomains of setting.
// addr must belong to the family of the setting's record type.
func NewReconciler(setting DomainSetting, addr netip.Addr, provider Provider, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		setting:  setting,
		addr:     addr,
		provider: provider,
		log:      log,
	}
}

// Reconcile returns one outcome per configured subdomain, in configuration order.
// A failing subdomain never stops its siblings.
func (r *Reconciler) Reconcile(ctx context.Context) []Outcome {
	if !r.setting.Enabled {
		r.log.Debug("domain is disabled")
		return r.all(ActionSkipped, nil)
	}

	if err := r.provider.Authorize(ctx); err != nil {
		var authErr *AuthorizationError
		if !errors.As(err, &authErr) {
			err = &AuthorizationError{Provider: r.setting.Provider.Name, Err: err}
		}
		r.log.Error("provider authorization failed", zap.Error(err))
		return r.all(ActionFailed, err)
	}

	outcomes := make([]Outcome, 0, len(r.setting.Subdomains))
	for _, sub := range r.setting.Subdomains {
		if ctx.Err() != nil {
			outcomes = append(outcomes, r.outcome(sub, ActionFailed, ctx.Err()))
			continue
		}
		outcomes = append(outcomes, r.reconcileSubdomain(ctx, sub))
	}
	return outcomes
}

func (r *Reconciler) reconcileSubdomain(ctx context.Context, sub SubdomainSetting) Outcome {
	out := r.outcome(sub, ActionFailed, nil)
	log := r.log.With(zap.String("fqdn", out.FQDN))

	addr, err := r.publishedAddr(sub, log)
	if err != nil {
		log.Error("unable to compute address to publish", zap.Error(err))
		out.Err = err
		return out
	}
	out.Addr = addr

	desired := RecordDetail{
		Subdomain:  sub.Name,
		BaseDomain: r.setting.DomainName,
		TTL:        r.ttl(sub.TTL),
		Proxied:    sub.Proxied,
		Addr:       addr,
	}

	actual, err := r.provider.DescribeRecord(ctx, sub.Name, r.setting.DomainName, r.setting.RecordType)
	if err != nil {
		var ambiguous *AmbiguousRecordError
		if errors.As(err, &ambiguous) {
			log.Warn("record is ambiguous; not touching it", zap.Error(err))
		} else {
			log.Error("describe record failed", zap.Error(err))
		}
		out.Err = err
		return out
	}

	switch {
	case actual == nil && !r.setting.CreateNewRecord:
		log.Info("record does not exist and creating records is disabled")
		out.Action = ActionSkipped
	case actual == nil:
		if err := r.provider.CreateRecord(ctx, desired); err != nil {
			log.Error("create record failed", zap.Error(err))
			out.Err = err
			return out
		}
		log.Info("record created", zap.Stringer("addr", addr), zap.Uint32("ttl", desired.TTL))
		out.Action = ActionCreated
	case actual.Equal(desired):
		log.Info("record is up to date", zap.Stringer("addr", addr))
		out.Action = ActionUnchanged
	default:
		if err := r.provider.UpdateRecord(ctx, desired); err != nil {
			log.Error("update record failed", zap.Error(err))
			out.Err = err
			return out
		}
		log.Info("record updated",
			zap.Stringer("old", actual),
			zap.Stringer("new", desired),
		)
		out.Action = ActionUpdated
	}
	return out
}

func (r *Reconciler) publishedAddr(sub SubdomainSetting, log *zap.Logger) (netip.Addr, error) {
	if r.setting.RecordType != TypeAAAA {
		if sub.InterfaceID != "" {
			log.Warn("interface_id only applies to AAAA records; ignoring it", zap.String("interface_id", sub.InterfaceID))
		}
		return r.addr, nil
	}
	addr, prefixIgnored, err := MergeInterfaceID(r.addr, sub.InterfaceID)
	if err != nil {
		return netip.Addr{}, err
	}
	if prefixIgnored {
		log.Warn("interface_id has non-zero upper 64 bits; only the lower 64 bits are used",
			zap.String("interface_id", sub.InterfaceID),
			zap.Stringer("addr", addr),
		)
	}
	return addr, nil
}

func (r *Reconciler) ttl(ttl uint32) uint32 {
	if ttl != TTLAuto {
		return ttl
	}
	if a, ok := r.provider.(AutoTTLer); ok {
		return a.AutoTTL()
	}
	return ttl
}

func (r *Reconciler) outcome(sub SubdomainSetting, a Action, err error) Outcome {
	return Outcome{
		Domain:    r.setting.DomainName,
		Subdomain: sub.Name,
		FQDN:      FullDomainName(sub.Name, r.setting.DomainName),
		Type:      r.setting.RecordType,
		Provider:  r.setting.Provider.Name,
		Action:    a,
		Err:       err,
	}
}

func (r *Reconciler) all(a Action, err error) []Outcome {
	outcomes := make([]Outcome, 0, len(r.setting.Subdomains))
	for _, sub := range r.setting.Subdomains {
		outcomes = append(outcomes, r.outcome(sub, a, err))
	}
	return outcomes
}
