// Package config loads the ddns configuration file.
//
// The format is chosen by file extension: .json, .toml, .yaml or .yml.
// ${VAR} references in resolver sources and provider settings are expanded from the environment.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/miekg/dns"
	"github.com/pelletier/go-toml/v2"
	"go.yaml.in/yaml/v3"

	"github.com/Travis-Britz/ddns/v2"
)

// Config is the document read from disk.
type Config struct {
	GetIPURLs      IPSources `json:"get_ip_urls" toml:"get_ip_urls" yaml:"get_ip_urls"`
	DomainSettings []Domain  `json:"domain_settings" toml:"domain_settings" yaml:"domain_settings"`

	path string
}

// IPSources describes where each family's address comes from; see ddns.ParseResolver.
// An empty source leaves the family unresolved.
type IPSources struct {
	IPv4 string `json:"ipv4" toml:"ipv4" yaml:"ipv4"`
	IPv6 string `json:"ipv6" toml:"ipv6" yaml:"ipv6"`
}

type Domain struct {
	Enabled    *bool  `json:"enabled" toml:"enabled" yaml:"enabled"`
	DomainName string `json:"domain_name" toml:"domain_name" yaml:"domain_name"`
	// ProviderConfig holds a "provider" key naming the provider; every other key is a provider setting.
	ProviderConfig  map[string]any `json:"provider_config" toml:"provider_config" yaml:"provider_config"`
	ServiceProvider map[string]any `json:"service_provider" toml:"service_provider" yaml:"service_provider"`
	RecordType      string         `json:"record_type" toml:"record_type" yaml:"record_type"`
	CreateNewRecord *bool          `json:"create_new_record" toml:"create_new_record" yaml:"create_new_record"`
	Subdomains      []Subdomain    `json:"subdomains" toml:"subdomains" yaml:"subdomains"`
}

type Subdomain struct {
	Name        string  `json:"name" toml:"name" yaml:"name"`
	TTL         *uint32 `json:"ttl" toml:"ttl" yaml:"ttl"`
	Proxied     *bool   `json:"proxied" toml:"proxied" yaml:"proxied"`
	InterfaceID string  `json:"interface_id" toml:"interface_id" yaml:"interface_id"`
}

// Load reads and validates the file at path.
// Every error it returns is a *ddns.ConfigError.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ddns.ConfigError{Path: path, Err: err}
	}
	c, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, &ddns.ConfigError{Path: path, Err: err}
	}
	c.path = path
	return c, nil
}

// Parse decodes data in the format named by ext and validates it.
func Parse(data []byte, ext string) (*Config, error) {
	var c Config
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&c); err != nil {
			return nil, fmt.Errorf("parsing JSON: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing TOML: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q: expected .json, .toml, .yaml or .yml", ext)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) validate() error {
	if len(c.DomainSettings) == 0 {
		return errors.New("no domain_settings configured")
	}
	var errs []error
	known := ddns.Providers()
	for i, d := range c.DomainSettings {
		where := fmt.Sprintf("domain_settings[%d]", i)
		if d.DomainName != "" {
			where += " (" + d.DomainName + ")"
		}
		if _, ok := dns.IsDomainName(d.DomainName); d.DomainName == "" || !ok {
			errs = append(errs, fmt.Errorf("%s: invalid domain_name %q", where, d.DomainName))
		}
		if _, err := ddns.ParseRecordType(d.RecordType); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		pc, err := d.providerConfig()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		} else if !slices.Contains(known, pc.Name) {
			errs = append(errs, fmt.Errorf("%s: unsupported provider %q (registered: %v)", where, pc.Name, known))
		}
		for j, s := range d.Subdomains {
			name := ddns.FullDomainName(s.Name, d.DomainName)
			if _, ok := dns.IsDomainName(name); !ok || strings.Contains(s.Name, "..") {
				errs = append(errs, fmt.Errorf("%s: subdomains[%d]: invalid name %q", where, j, s.Name))
			}
			if s.TTL != nil && *s.TTL == 0 {
				errs = append(errs, fmt.Errorf("%s: subdomains[%d]: ttl must be at least 1", where, j))
			}
		}
	}
	for _, src := range []string{c.GetIPURLs.IPv4, c.GetIPURLs.IPv6} {
		if src = os.ExpandEnv(src); src != "" {
			if _, err := ddns.ParseResolver(src); err != nil {
				errs = append(errs, fmt.Errorf("get_ip_urls: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}

func (d Domain) providerConfig() (ddns.ProviderConfig, error) {
	raw := d.ProviderConfig
	if raw == nil {
		raw = d.ServiceProvider
	}
	if raw == nil {
		return ddns.ProviderConfig{}, errors.New("missing provider_config")
	}
	name, _ := raw["provider"].(string)
	if name == "" {
		return ddns.ProviderConfig{}, errors.New("provider_config: missing required field 'provider'")
	}
	pc := ddns.ProviderConfig{
		Name:     strings.ToLower(name),
		Settings: make(map[string]string, len(raw)-1),
	}
	for k, v := range raw {
		if k == "provider" {
			continue
		}
		pc.Settings[k] = os.ExpandEnv(settingString(v))
	}
	return pc, nil
}

// settingString formats a decoded setting value; numbers never use exponents.
func settingString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Path is the file the config was loaded from, if any.
func (c *Config) Path() string { return c.path }

// Domains converts the document into domain settings, applying defaults.
func (c *Config) Domains() []ddns.DomainSetting {
	out := make([]ddns.DomainSetting, 0, len(c.DomainSettings))
	for _, d := range c.DomainSettings {
		rt, _ := ddns.ParseRecordType(d.RecordType)
		pc, _ := d.providerConfig()
		ds := ddns.DomainSetting{
			Enabled:         d.Enabled == nil || *d.Enabled,
			DomainName:      strings.TrimSuffix(d.DomainName, "."),
			RecordType:      rt,
			CreateNewRecord: d.CreateNewRecord == nil || *d.CreateNewRecord,
			Provider:        pc,
		}
		for _, s := range d.Subdomains {
			ttl := ddns.TTLAuto
			if s.TTL != nil {
				ttl = *s.TTL
			}
			ds.Subdomains = append(ds.Subdomains, ddns.SubdomainSetting{
				Name:        s.Name,
				TTL:         ttl,
				Proxied:     s.Proxied,
				InterfaceID: s.InterfaceID,
			})
		}
		out = append(out, ds)
	}
	return out
}

// Resolvers builds the IPv4 and IPv6 resolvers. Empty sources give nil resolvers.
func (c *Config) Resolvers() (ipv4, ipv6 ddns.Resolver, err error) {
	build := func(src string) (ddns.Resolver, error) {
		if src = os.ExpandEnv(src); src == "" {
			return nil, nil
		}
		return ddns.ParseResolver(src)
	}
	if ipv4, err = build(c.GetIPURLs.IPv4); err != nil {
		return nil, nil, &ddns.ConfigError{Path: c.path, Err: fmt.Errorf("get_ip_urls.ipv4: %w", err)}
	}
	if ipv6, err = build(c.GetIPURLs.IPv6); err != nil {
		return nil, nil, &ddns.ConfigError{Path: c.path, Err: fmt.Errorf("get_ip_urls.ipv6: %w", err)}
	}
	return ipv4, ipv6, nil
}
