package azddns

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout bounds every lookup and provider call made during a run.
const DefaultTimeout = 10 * time.Second

var discard = zap.NewNop()

// New returns a Client that keeps the A record fqdn in sync with the public IP.
// A Provider (usually UsingAzure) and a Store are required.
func New(fqdn string, options ...Option) (*Client, error) {
	if fqdn == "" {
		return nil, fmt.Errorf("azddns.New: fqdn cannot be empty")
	}
	c := &Client{
		fqdn:    fqdn,
		ttl:     300,
		timeout: DefaultTimeout,
		logger:  discard,
	}
	for i, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("azddns.New: option %d returned an error: %w", i, err)
		}
	}

	if c.azure != nil {
		p, err := newAzureProvider(*c.azure, c.httpClient)
		if err != nil {
			return nil, fmt.Errorf("azddns.New: error creating Azure DNS provider: %w", err)
		}
		c.provider = p
	}
	if c.provider == nil {
		return nil, fmt.Errorf("azddns.New: no DNS provider was registered - use azddns.UsingAzure or azddns.UsingProvider")
	}
	if c.store == nil {
		return nil, fmt.Errorf("azddns.New: no state store was registered - use azddns.UsingStore")
	}
	if c.public == nil {
		r, err := WebResolver()
		if err != nil {
			return nil, fmt.Errorf("azddns.New: %w", err)
		}
		c.public = r
	}
	if c.resolver == nil {
		c.resolver = DNSResolver(fqdn, "")
	}

	c.propagate()
	return c, nil
}

// Option configures a Client.
type Option func(*Client) error

// UsingAzure registers Azure DNS as the provider.
// The certificate is read when New runs.
func UsingAzure(cfg AzureConfig) Option {
	return func(c *Client) error {
		if cfg.ResourceGroup == "" || cfg.ZoneName == "" || cfg.RecordSetName == "" {
			return fmt.Errorf("azddns.UsingAzure: resource group, zone and record set name are required")
		}
		c.azure = &cfg
		return nil
	}
}

// UsingProvider registers any Provider implementation.
func UsingProvider(p Provider) Option {
	return func(c *Client) error {
		c.provider = p
		c.azure = nil
		return nil
	}
}

// UsingPublicResolver sets where the public IP comes from.
func UsingPublicResolver(r Resolver) Option {
	return func(c *Client) error {
		c.public = r
		return nil
	}
}

// UsingWebResolver looks the public IP up with the given services.
func UsingWebResolver(serviceURL ...string) Option {
	return func(c *Client) (err error) {
		c.public, err = WebResolver(serviceURL...)
		return err
	}
}

// UsingResolver sets how the record is resolved the way clients see it.
func UsingResolver(r Resolver) Option {
	return func(c *Client) error {
		c.resolver = r
		return nil
	}
}

// UsingNameserver resolves the record against server (host or host:port).
func UsingNameserver(server string) Option {
	return func(c *Client) error {
		c.resolver = DNSResolver(c.fqdn, server)
		return nil
	}
}

func UsingStore(s *Store) Option {
	return func(c *Client) error {
		c.store = s
		return nil
	}
}

// UsingNotifier registers who is told about successful updates. Without one, nobody is.
func UsingNotifier(n Notifier) Option {
	return func(c *Client) error {
		c.notifier = n
		return nil
	}
}

func WithTTL(ttl int64) Option {
	return func(c *Client) error {
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive, got %d", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithTimeout bounds each external call of a run.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			d = DefaultTimeout
		}
		c.timeout = d
		return nil
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = discard
		}
		c.logger = logger
		return nil
	}
}

func UsingHTTPClient(httpclient *http.Client) Option {
	return func(c *Client) error {
		if httpclient == nil {
			httpclient = http.DefaultClient
		}
		c.httpClient = httpclient
		return nil
	}
}

// propagate hands the logger and http client to dependencies that take one,
// regardless of the order the options were given in.
func (c *Client) propagate() {
	type setLogger interface {
		SetLogger(*zap.Logger)
	}
	type setHTTPClient interface {
		SetHTTPClient(*http.Client)
	}
	if p, ok := c.provider.(setLogger); ok {
		p.SetLogger(c.logger)
	}
	if c.httpClient != nil {
		if r, ok := c.public.(setHTTPClient); ok {
			r.SetHTTPClient(c.httpClient)
		}
	}
}

// Client runs one reconciliation pass at a time.
type Client struct {
	public   Resolver
	resolver Resolver
	provider Provider
	store    *Store
	notifier Notifier

	azure      *AzureConfig
	httpClient *http.Client
	logger     *zap.Logger
	fqdn       string
	ttl        int64
	timeout    time.Duration
}

func (c *Client) FQDN() string { return c.fqdn }

// Run gathers the observations, reconciles them and applies the result.
//
// Lookup failures never make Run fail; they only remove evidence.
// The returned error is a *ProviderWriteError when the record could not be written.
func (c *Client) Run(ctx context.Context) (Result, error) {
	obs := c.Observe(ctx)
	res := Reconcile(obs, c.fqdn)
	for _, line := range res.Narrative {
		c.record(line)
	}
	if res.Action != UpdateNeeded {
		return res, nil
	}
	return res, c.Apply(ctx, res)
}

// record writes a line to both the diagnostic logger and the activity log.
func (c *Client) record(line string) {
	c.logger.Info(line)
	if err := c.store.AppendLog(line); err != nil {
		c.logger.Warn("error appending to activity log", zap.Error(err))
	}
}
