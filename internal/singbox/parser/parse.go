package parser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"shieldline/internal/model"
	"shieldline/internal/resolve"
	"shieldline/internal/singbox"
)

var (
	ErrUnsupportedProtocol = errors.New("protocol not supported")
	ErrInvalidShadowsocks  = errors.New("invalid shadowsocks format")
	ErrMissingHost         = errors.New("missing host")
	ErrMissingPort         = errors.New("missing port")
)

const (
	defaultFingerprint   = "chrome"
	defaultWireGuardIP   = "10.0.0.2/32"
	defaultWireGuardMTU  = 1280
	obfsSalamander       = "salamander"
	paddingMode          = "random"
	paddingSize          = "1200-1500"
	securityReality      = "reality"
	securityTLS          = "tls"
	hysteriaObfsDisabled = "none"
)

// Parser turns proxy links into engine outbounds. It never mutates shared
// state; Settings is a value snapshot.
type Parser struct {
	Settings model.Settings
	Resolver *resolve.Resolver
}

// Parse parses one link using resolve.Default.
func Parse(raw string, settings model.Settings) (singbox.Outbound, error) {
	p := &Parser{Settings: settings, Resolver: resolve.Default}
	return p.Parse(context.Background(), raw)
}

func (p *Parser) Parse(ctx context.Context, raw string) (singbox.Outbound, error) {
	raw = FixIllegalUrl(raw)
	if !strings.Contains(raw, "://") {
		return nil, fmt.Errorf("invalid uri format")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid uri format: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "vless":
		return p.parseVLESS(ctx, u)
	case "ss":
		return p.parseShadowsocks(ctx, u)
	case "hy2", "hysteria2":
		return p.parseHysteria2(ctx, u)
	case "wireguard":
		return p.parseWireGuard(ctx, u)
	case "socks", "socks5", "socks4":
		return p.parseSocks(ctx, u, scheme)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProtocol, scheme)
	}
}

func (p *Parser) resolve(ctx context.Context, host string) string {
	if p.Resolver == nil {
		return resolve.Default.Resolve(ctx, host)
	}
	return p.Resolver.Resolve(ctx, host)
}

// --- VLESS ---
func (p *Parser) parseVLESS(ctx context.Context, u *url.URL) (singbox.Outbound, error) {
	host, port, err := hostPort(u)
	if err != nil {
		return nil, fmt.Errorf("vless: %w", err)
	}
	q := u.Query()

	out := singbox.VLESSOutbound{
		Server:     p.resolve(ctx, host),
		ServerPort: port,
		Flow:       q.Get("flow"),
	}
	if u.User != nil {
		out.UUID = u.User.Username()
	}

	switch security := strings.ToLower(strings.TrimSpace(q.Get("security"))); security {
	case securityReality, securityTLS:
		tls := &singbox.TLS{
			Enabled:    true,
			ServerName: host,
			UTLS: &singbox.UTLS{
				Enabled:     true,
				Fingerprint: defaultFingerprint,
			},
		}
		if sni := q.Get("sni"); sni != "" {
			tls.ServerName = sni
		}
		if fp := q.Get("fp"); fp != "" {
			tls.UTLS.Fingerprint = fp
		}
		if security == securityReality {
			tls.Reality = &singbox.Reality{
				Enabled:   true,
				PublicKey: q.Get("pbk"),
				ShortID:   q.Get("sid"),
			}
		} else {
			tls.Insecure = parseBool(firstQueryValue(q, "insecure", "allowInsecure"), true)
		}
		applyObfuscation(tls, p.Settings)
		out.TLS = tls
	}
	return out, nil
}

// applyObfuscation layers the user's TLS camouflage toggles onto tls.
func applyObfuscation(tls *singbox.TLS, s model.Settings) {
	defaults := model.DefaultSettings()
	if s.Fragment {
		frag := &singbox.TLSFragment{Enabled: true, Size: s.FragmentSize, Sleep: s.FragmentSleep}
		if frag.Size == "" {
			frag.Size = defaults.FragmentSize
		}
		if frag.Sleep == "" {
			frag.Sleep = defaults.FragmentSleep
		}
		tls.Fragment = frag
	}
	if s.MixedCaseSNI || s.Padding {
		tricks := &singbox.TLSTricks{MixedCaseSNI: s.MixedCaseSNI}
		if s.Padding {
			tricks.PaddingMode = paddingMode
			tricks.PaddingSize = paddingSize
		}
		tls.Tricks = tricks
	}
}

// --- Shadowsocks ---
func (p *Parser) parseShadowsocks(ctx context.Context, u *url.URL) (singbox.Outbound, error) {
	if u.User == nil {
		return nil, fmt.Errorf("%w: missing credentials", ErrInvalidShadowsocks)
	}

	var method, password string
	if pw, ok := u.User.Password(); ok {
		// SIP002 plain "method:password" userinfo
		method, password = u.User.Username(), pw
	} else {
		decoded, err := DecodeBase64(u.User.Username())
		if err != nil {
			return nil, fmt.Errorf("%w: credentials are not base64", ErrInvalidShadowsocks)
		}
		parts := strings.SplitN(string(decoded), ":", 2)
		if len(parts) < 2 {
			return nil, fmt.Errorf("%w: expected method:password", ErrInvalidShadowsocks)
		}
		method, password = parts[0], parts[1]
	}

	host, port, err := hostPort(u)
	if err != nil {
		return nil, fmt.Errorf("shadowsocks: %w", err)
	}

	return singbox.ShadowsocksOutbound{
		Server:     p.resolve(ctx, host),
		ServerPort: port,
		Method:     method,
		Password:   password,
	}, nil
}

// --- Hysteria2 ---
func (p *Parser) parseHysteria2(ctx context.Context, u *url.URL) (singbox.Outbound, error) {
	host, port, err := hostPort(u)
	if err != nil {
		return nil, fmt.Errorf("hysteria2: %w", err)
	}
	q := u.Query()

	out := singbox.Hysteria2Outbound{
		Server:     p.resolve(ctx, host),
		ServerPort: port,
		TLS: &singbox.TLS{
			Enabled:    true,
			ServerName: host,
			Insecure:   q.Get("insecure") == "1",
		},
	}
	if u.User != nil {
		out.Password = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			out.Password += ":" + pw
		}
	}
	if sni := q.Get("sni"); sni != "" {
		out.TLS.ServerName = sni
	}
	if obfs := q.Get("obfs"); obfs != "" && obfs != hysteriaObfsDisabled {
		out.Obfs = &singbox.Obfs{
			Type:     obfsSalamander,
			Password: q.Get("obfs-password"),
		}
	}
	return out, nil
}

// --- WireGuard ---
func (p *Parser) parseWireGuard(ctx context.Context, u *url.URL) (singbox.Outbound, error) {
	host, port, err := hostPort(u)
	if err != nil {
		return nil, fmt.Errorf("wireguard: %w", err)
	}
	q := u.Query()

	out := singbox.WireGuardOutbound{
		Server:        p.resolve(ctx, host),
		ServerPort:    port,
		PeerPublicKey: firstQueryValue(q, "public_key", "publickey"),
		LocalAddress:  []string{defaultWireGuardIP},
		MTU:           defaultWireGuardMTU,
	}
	if u.User != nil {
		out.PrivateKey = u.User.Username()
	}
	if ip := firstQueryValue(q, "ip", "address"); ip != "" {
		out.LocalAddress = []string{ip}
	}
	if mtuText := q.Get("mtu"); mtuText != "" {
		if mtu, err := strconv.Atoi(mtuText); err == nil && mtu > 0 {
			out.MTU = mtu
		}
	}
	return out, nil
}

// --- SOCKS ---
func (p *Parser) parseSocks(ctx context.Context, u *url.URL, scheme string) (singbox.Outbound, error) {
	host, port, err := hostPort(u)
	if err != nil {
		return nil, fmt.Errorf("socks: %w", err)
	}

	out := singbox.SOCKSOutbound{
		Server:     p.resolve(ctx, host),
		ServerPort: port,
		Version:    "5",
	}
	if scheme == "socks4" {
		out.Version = "4"
	}
	if u.User != nil {
		out.Username = u.User.Username()
		out.Password, _ = u.User.Password()
	}
	return out, nil
}
