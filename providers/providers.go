// Package providers imports every DNS provider package to trigger their init() registration.
package providers

import (
	_ "github.com/Travis-Britz/ddns/v2/providers/alidns"
	_ "github.com/Travis-Britz/ddns/v2/providers/cloudflare"
	_ "github.com/Travis-Britz/ddns/v2/providers/dnspod"
	_ "github.com/Travis-Britz/ddns/v2/providers/huaweicloud"
)
