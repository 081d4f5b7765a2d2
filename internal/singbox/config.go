package singbox

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"shieldline/internal/model"
)

const (
	TagProxy  = "proxy"
	TagDirect = "direct"
	TagTunIn  = "tun-in"

	TagDNSRemote = "remote"
	TagDNSLocal  = "local"

	TunAddress = "172.19.0.1/30"
	TunStack   = "gvisor" // userspace stack

	defaultMTU = 9000
)

// Config is the complete document handed to the engine.
type Config struct {
	Log       LogOptions       `json:"log"`
	DNS       DNSOptions       `json:"dns"`
	Inbounds  []TunInbound     `json:"inbounds"`
	Outbounds []TaggedOutbound `json:"outbounds"`
	Route     RouteOptions     `json:"route"`
}

type LogOptions struct {
	Level     string `json:"level"`
	Timestamp bool   `json:"timestamp"`
}

type DNSOptions struct {
	Servers []DNSServer `json:"servers"`
	Rules   []DNSRule   `json:"rules"`
	Final   string      `json:"final"`
}

type DNSServer struct {
	Tag     string `json:"tag"`
	Address string `json:"address"`
	Detour  string `json:"detour"`
}

type DNSRule struct {
	Outbound     string   `json:"outbound,omitempty"`
	DomainSuffix []string `json:"domain_suffix,omitempty"`
	Server       string   `json:"server"`
}

type TunInbound struct {
	Type        string   `json:"type"`
	Tag         string   `json:"tag"`
	Address     []string `json:"address"`
	MTU         int      `json:"mtu"`
	AutoRoute   bool     `json:"auto_route"`
	StrictRoute bool     `json:"strict_route"`
	Stack       string   `json:"stack"`
	Sniff       bool     `json:"sniff"`
}

type RouteOptions struct {
	AutoDetectInterface bool        `json:"auto_detect_interface"`
	Rules               []RouteRule `json:"rules"`
	Final               string      `json:"final"`
}

type RouteRule struct {
	Protocol string `json:"protocol,omitempty"`
	Inbound  string `json:"inbound,omitempty"`
	Action   string `json:"action,omitempty"`
	Outbound string `json:"outbound,omitempty"`
}

type Options struct {
	LogLevel string
}

// Synthesize builds the engine document for one parsed outbound. The proxy
// outbound is always first and the direct outbound second.
func Synthesize(proxy Outbound, s model.Settings, opts Options) *Config {
	level := opts.LogLevel
	if level == "" {
		level = "info"
	}
	mtu := s.MTU
	if mtu <= 0 {
		mtu = defaultMTU
	}
	dns := s.DNS
	if dns == "" {
		dns = model.DefaultSettings().DNS
	}

	return &Config{
		Log: LogOptions{Level: level, Timestamp: true},
		DNS: DNSOptions{
			Servers: []DNSServer{
				{Tag: TagDNSRemote, Address: dns, Detour: TagProxy},
				{Tag: TagDNSLocal, Address: "local", Detour: TagDirect},
			},
			Rules: []DNSRule{
				// engine-originated lookups (e.g. an unresolved server name) go direct
				{Outbound: "any", Server: TagDNSLocal},
				{DomainSuffix: []string{"local", "lan"}, Server: TagDNSLocal},
			},
			Final: TagDNSRemote,
		},
		Inbounds: []TunInbound{{
			Type:        "tun",
			Tag:         TagTunIn,
			Address:     []string{TunAddress},
			MTU:         mtu,
			AutoRoute:   true,
			StrictRoute: true,
			Stack:       TunStack,
			Sniff:       true,
		}},
		Outbounds: []TaggedOutbound{
			{Tag: TagProxy, Outbound: proxy},
			{Tag: TagDirect, Outbound: DirectOutbound{}},
		},
		Route: RouteOptions{
			AutoDetectInterface: true,
			Rules: []RouteRule{
				{Protocol: "dns", Action: "hijack-dns"},
				{Inbound: TagTunIn, Outbound: TagProxy},
			},
			Final: TagProxy,
		},
	}
}

// Marshal renders the document as indented JSON.
func (c *Config) Marshal() ([]byte, error) {
	raw, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode engine config: %w", err)
	}
	return append(raw, '\n'), nil
}

// WriteFile overwrites path with the rendered document.
func (c *Config) WriteFile(path string) error {
	raw, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write engine config: %w", err)
	}
	return nil
}
