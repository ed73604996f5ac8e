package ddns

import (
	"fmt"
	"strings"
)

// ConfigError is returned for settings which make a run impossible.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("config: %s", e.Err)
	}
	return fmt.Sprintf("config %s: %s", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AddressResolutionError reports that the address for one IP family could not be determined.
// Only domains with a record type of that family are affected.
type AddressResolutionError struct {
	Family string
	Err    error
}

func (e *AddressResolutionError) Error() string {
	return fmt.Sprintf("unable to resolve %s address: %s", e.Family, e.Err)
}

func (e *AddressResolutionError) Unwrap() error { return e.Err }

// AuthorizationError is returned when a provider rejects its credentials.
type AuthorizationError struct {
	Provider string
	Err      error
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: authorization failed: %s", e.Provider, e.Err)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }

// AmbiguousRecordError is returned by DescribeRecord when more than one record matches.
type AmbiguousRecordError struct {
	FQDN  string
	Type  RecordType
	Count int
}

func (e *AmbiguousRecordError) Error() string {
	return fmt.Sprintf("found %d %s records for %s; refusing to pick one", e.Count, e.Type, e.FQDN)
}

// TransportError wraps a network or HTTP failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError wraps a malformed provider response.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ProviderAPIError carries the messages of a provider which reported a failed request.
type ProviderAPIError struct {
	Provider string
	Op       string
	Messages []string
}

func (e *ProviderAPIError) Error() string {
	msg := strings.Join(e.Messages, "; ")
	if msg == "" {
		msg = "request was not successful"
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, msg)
}
