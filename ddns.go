package ddns

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers is the number of domains reconciled in parallel unless UsingWorkers says otherwise.
const DefaultWorkers = 4

// New returns a client which keeps the records of domains pointed at the host's current addresses.
// Record types are accepted in any case.
func New(domains []DomainSetting, options ...clientOption) (*Client, error) {
	if len(domains) == 0 {
		return nil, errors.New("ddns.New: at least one domain setting is required")
	}
	domains = slices.Clone(domains)
	for i, d := range domains {
		if d.DomainName == "" {
			return nil, fmt.Errorf("ddns.New: domain setting %d has no domain name", i)
		}
		rt, err := ParseRecordType(string(d.RecordType))
		if err != nil {
			return nil, fmt.Errorf("ddns.New: %s: %w", d.DomainName, err)
		}
		domains[i].RecordType = rt
	}
	c := &Client{
		domains:     domains,
		workers:     DefaultWorkers,
		newProvider: NewProvider,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("ddns.New: option %d returned an error: %s", i, err)
		}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	// resolvers may have been registered after the http client options
	if hc := c.resolverHTTPClient(); hc != nil {
		type setHTTPClient interface {
			SetHTTPClient(*http.Client)
		}
		for _, r := range []Resolver{c.ipv4, c.ipv6} {
			if r, ok := r.(setHTTPClient); ok {
				r.SetHTTPClient(hc)
			}
		}
	}
	return c, nil
}

type clientOption func(*Client) error

// UsingIPv4Resolver sets the source of the address published in A records.
func UsingIPv4Resolver(r Resolver) clientOption {
	return func(c *Client) error {
		c.ipv4 = r
		return nil
	}
}

// UsingIPv6Resolver sets the source of the address published in AAAA records.
func UsingIPv6Resolver(r Resolver) clientOption {
	return func(c *Client) error {
		c.ipv6 = r
		return nil
	}
}

// UsingWorkers bounds how many domains are reconciled at the same time.
func UsingWorkers(n int) clientOption {
	return func(c *Client) error {
		if n < 1 {
			return fmt.Errorf("worker count must be at least 1; got %d", n)
		}
		c.workers = n
		return nil
	}
}

func WithLogger(logger *zap.Logger) clientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// UsingHTTPClient sets the client used by web resolvers.
func UsingHTTPClient(httpclient *http.Client) clientOption {
	return func(c *Client) error {
		c.httpClient = httpclient
		return nil
	}
}

// UsingRetries retries failed web resolver requests up to n times with exponential backoff.
func UsingRetries(n int) clientOption {
	return func(c *Client) error {
		if n < 0 {
			return fmt.Errorf("retry count cannot be negative; got %d", n)
		}
		c.retries = n
		return nil
	}
}

// UsingProviderFactory replaces the provider registry lookup.
// It is mostly useful for tests.
func UsingProviderFactory(f func(*zap.Logger, ProviderConfig) (Provider, error)) clientOption {
	return func(c *Client) error {
		if f == nil {
			return errors.New("provider factory cannot be nil")
		}
		c.newProvider = f
		return nil
	}
}

type DDNSClient interface {
	RunDDNS(ctx context.Context) Report
}

// Client reconciles a fixed set of domains.
// Every run resolves addresses and builds providers from scratch.
type Client struct {
	domains     []DomainSetting
	ipv4, ipv6  Resolver
	workers     int
	retries     int
	httpClient  *http.Client
	logger      *zap.Logger
	newProvider func(*zap.Logger, ProviderConfig) (Provider, error)
}

func (c *Client) resolverHTTPClient() *http.Client {
	if c.retries == 0 {
		return c.httpClient
	}
	rc := retryablehttp.NewClient()
	rc.HTTPClient = c.httpClient
	if rc.HTTPClient == nil {
		rc.HTTPClient = cleanhttp.DefaultPooledClient()
	}
	rc.RetryMax = c.retries
	rc.Logger = retryLogger{c.logger.Sugar()}
	return rc.StandardClient()
}

// Report summarizes one run.
type Report struct {
	ID        string
	Started   time.Time
	Finished  time.Time
	Addresses Addresses
	Outcomes  []Outcome
}

// Count returns the number of outcomes with action a.
func (r Report) Count(a Action) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Action == a {
			n++
		}
	}
	return n
}

// Err joins the errors of every failed or skipped outcome.
func (r Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", o.FQDN, o.Type, o.Err))
		}
	}
	return errors.Join(errs...)
}

// RunDDNS resolves the host's addresses and reconciles every domain,
// running at most the configured number of domains at a time.
// It returns once every domain has finished; failures are reported per subdomain, never retried.
func (c *Client) RunDDNS(ctx context.Context) Report {
	rep := Report{
		ID:      uuid.NewString(),
		Started: time.Now(),
	}
	logger := c.logger.With(zap.String("run", rep.ID))

	var need4, need6 Resolver
	for _, d := range c.domains {
		if !d.Enabled {
			continue
		}
		switch d.RecordType {
		case TypeA:
			need4 = c.ipv4
			if need4 == nil {
				need4 = missingResolver
			}
		case TypeAAAA:
			need6 = c.ipv6
			if need6 == nil {
				need6 = missingResolver
			}
		}
	}
	rep.Addresses = ResolveAddresses(ctx, need4, need6)
	for _, t := range []RecordType{TypeA, TypeAAAA} {
		if (t == TypeA && need4 == nil) || (t == TypeAAAA && need6 == nil) {
			continue
		}
		addr, err := rep.Addresses.For(t)
		if err != nil {
			logger.Warn("address resolution failed; skipping domains of this record type",
				zap.String("record_type", string(t)),
				zap.Error(err),
			)
			continue
		}
		logger.Info("resolved address", zap.String("record_type", string(t)), zap.Stringer("addr", addr))
	}

	results := make([][]Outcome, len(c.domains))
	var g errgroup.Group
	g.SetLimit(c.workers)
	for i, d := range c.domains {
		g.Go(func() error {
			results[i] = c.reconcileDomain(ctx, logger, d, rep.Addresses)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		rep.Outcomes = append(rep.Outcomes, r...)
	}
	rep.Finished = time.Now()
	logger.Info("run finished",
		zap.Duration("elapsed", rep.Finished.Sub(rep.Started)),
		zap.Int("created", rep.Count(ActionCreated)),
		zap.Int("updated", rep.Count(ActionUpdated)),
		zap.Int("unchanged", rep.Count(ActionUnchanged)),
		zap.Int("skipped", rep.Count(ActionSkipped)),
		zap.Int("failed", rep.Count(ActionFailed)),
	)
	return rep
}

func (c *Client) reconcileDomain(ctx context.Context, logger *zap.Logger, d DomainSetting, addrs Addresses) []Outcome {
	logger = logger.With(
		zap.String("domain", d.DomainName),
		zap.String("record_type", string(d.RecordType)),
		zap.String("provider", d.Provider.Name),
	)
	if !d.Enabled {
		return NewReconciler(d, netip.Addr{}, nil, logger).Reconcile(ctx)
	}

	addr, err := addrs.For(d.RecordType)
	if err != nil {
		logger.Warn("skipping domain: no address to publish", zap.Error(err))
		return NewReconciler(d, netip.Addr{}, nil, logger).all(ActionSkipped, err)
	}

	p, err := c.newProvider(logger, d.Provider)
	if err != nil {
		logger.Error("unable to create provider", zap.Error(err))
		return NewReconciler(d, addr, nil, logger).all(ActionFailed, err)
	}
	return NewReconciler(d, addr, p, logger).Reconcile(ctx)
}

var missingResolver = ResolverFunc(func(context.Context) ([]netip.Addr, error) {
	return nil, errors.New("no resolver configured")
})

// RunDaemon starts a goroutine which calls RunDDNS every interval until ctx is done.
// The first run happens after one interval; callers wanting an immediate run should call RunDDNS first.
//
// Intervals shorter than a minute are raised to one minute.
// handle, if not nil, receives every report.
func RunDaemon(ctx context.Context, ddnsClient DDNSClient, interval time.Duration, handle func(Report)) {
	if interval < 1*time.Minute {
		interval = 1 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rep := ddnsClient.RunDDNS(ctx)
				if handle != nil {
					handle(rep)
				}
			}
		}
	}()
}

// retryLogger adapts zap to retryablehttp.LeveledLogger.
type retryLogger struct {
	l *zap.SugaredLogger
}

func (r retryLogger) Error(msg string, kv ...interface{}) { r.l.Errorw(msg, kv...) }
func (r retryLogger) Warn(msg string, kv ...interface{})  { r.l.Warnw(msg, kv...) }
func (r retryLogger) Info(msg string, kv ...interface{})  { r.l.Debugw(msg, kv...) }
func (r retryLogger) Debug(msg string, kv ...interface{}) { r.l.Debugw(msg, kv...) }
