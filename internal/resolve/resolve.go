// Package resolve turns server hostnames into IP literals for embedding in
// engine configuration.
package resolve

import (
	"context"
	"net"
	"net/netip"

	"shieldline/internal/logger"
)

// LookupFunc matches net.Resolver.LookupIPAddr.
type LookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

type Resolver struct {
	Lookup LookupFunc
}

// Default resolves through the system resolver.
var Default = &Resolver{Lookup: net.DefaultResolver.LookupIPAddr}

// Host resolves host with the default resolver.
func Host(host string) string {
	return Default.Resolve(context.Background(), host)
}

// Resolve returns IP literals unchanged, otherwise the first IPv4 address
// the lookup yields. Any failure degrades to returning host itself so the
// engine can try its own resolution.
func (r *Resolver) Resolve(ctx context.Context, host string) string {
	if _, err := netip.ParseAddr(host); err == nil {
		return host
	}
	if r == nil || r.Lookup == nil || host == "" {
		return host
	}

	addrs, err := r.Lookup(ctx, host)
	if err != nil {
		logger.Log.Debugf("resolve %s: %v, keeping hostname", host, err)
		return host
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	logger.Log.Debugf("resolve %s: no IPv4 address, keeping hostname", host)
	return host
}
