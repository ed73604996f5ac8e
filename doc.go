/*
Package ddns keeps DNS address records pointed at the host's current IP addresses.

Usage will always start with [ddns.New],
which takes the domains to manage and returns a [Client].
Each [DomainSetting] names a registered [Provider] and the subdomains whose A or AAAA records it owns.
Addresses come from a [Resolver] per IP family; see [WebResolver], [InterfaceResolver] and [ParseResolver].

A call to [Client.RunDDNS] resolves both families once,
then reconciles every domain in parallel:
missing records are created, stale ones updated and matching ones left alone.
The returned [Report] lists one [Outcome] per subdomain.

Providers live in subpackages and register themselves on import:

	import _ "github.com/Travis-Britz/ddns/v2/providers"
*/
package ddns
