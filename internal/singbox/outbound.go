package singbox

import (
	"encoding/json"
	"fmt"
)

const (
	TypeVLESS       = "vless"
	TypeShadowsocks = "shadowsocks"
	TypeHysteria2   = "hysteria2"
	TypeWireGuard   = "wireguard"
	TypeSOCKS       = "socks"
	TypeDirect      = "direct"
)

// Outbound is one protocol variant of an engine outbound. The set of
// implementations is closed; MarshalOutbound handles each of them.
type Outbound interface {
	Type() string
}

type VLESSOutbound struct {
	Server     string `json:"server"`
	ServerPort int    `json:"server_port"`
	UUID       string `json:"uuid"`
	Flow       string `json:"flow"`
	TLS        *TLS   `json:"tls,omitempty"`
}

type ShadowsocksOutbound struct {
	Server     string `json:"server"`
	ServerPort int    `json:"server_port"`
	Method     string `json:"method"`
	Password   string `json:"password"`
}

type Hysteria2Outbound struct {
	Server     string `json:"server"`
	ServerPort int    `json:"server_port"`
	Password   string `json:"password"`
	TLS        *TLS   `json:"tls,omitempty"`
	Obfs       *Obfs  `json:"obfs,omitempty"`
}

type WireGuardOutbound struct {
	Server        string   `json:"server"`
	ServerPort    int      `json:"server_port"`
	PrivateKey    string   `json:"private_key"`
	PeerPublicKey string   `json:"peer_public_key"`
	LocalAddress  []string `json:"local_address"`
	MTU           int      `json:"mtu"`
}

type SOCKSOutbound struct {
	Server     string `json:"server"`
	ServerPort int    `json:"server_port"`
	Version    string `json:"version"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

type DirectOutbound struct{}

func (VLESSOutbound) Type() string       { return TypeVLESS }
func (ShadowsocksOutbound) Type() string { return TypeShadowsocks }
func (Hysteria2Outbound) Type() string   { return TypeHysteria2 }
func (WireGuardOutbound) Type() string   { return TypeWireGuard }
func (SOCKSOutbound) Type() string       { return TypeSOCKS }
func (DirectOutbound) Type() string      { return TypeDirect }

type TLS struct {
	Enabled    bool         `json:"enabled"`
	ServerName string       `json:"server_name,omitempty"`
	Insecure   bool         `json:"insecure,omitempty"`
	UTLS       *UTLS        `json:"utls,omitempty"`
	Reality    *Reality     `json:"reality,omitempty"`
	Fragment   *TLSFragment `json:"tls_fragment,omitempty"`
	Tricks     *TLSTricks   `json:"tls_tricks,omitempty"`
}

type UTLS struct {
	Enabled     bool   `json:"enabled"`
	Fingerprint string `json:"fingerprint"`
}

type Reality struct {
	Enabled   bool   `json:"enabled"`
	PublicKey string `json:"public_key"`
	ShortID   string `json:"short_id"`
}

type TLSFragment struct {
	Enabled bool   `json:"enabled"`
	Size    string `json:"size"`
	Sleep   string `json:"sleep"`
}

type TLSTricks struct {
	MixedCaseSNI bool   `json:"mixedcase_sni,omitempty"`
	PaddingMode  string `json:"padding_mode,omitempty"`
	PaddingSize  string `json:"padding_size,omitempty"`
}

type Obfs struct {
	Type     string `json:"type"`
	Password string `json:"password"`
}

type header struct {
	Type string `json:"type"`
	Tag  string `json:"tag"`
}

// MarshalOutbound serializes o with its type and tag as leading fields.
func MarshalOutbound(tag string, o Outbound) ([]byte, error) {
	h := header{Tag: tag}
	switch v := o.(type) {
	case VLESSOutbound:
		h.Type = TypeVLESS
		return json.Marshal(struct {
			header
			VLESSOutbound
		}{h, v})
	case ShadowsocksOutbound:
		h.Type = TypeShadowsocks
		return json.Marshal(struct {
			header
			ShadowsocksOutbound
		}{h, v})
	case Hysteria2Outbound:
		h.Type = TypeHysteria2
		return json.Marshal(struct {
			header
			Hysteria2Outbound
		}{h, v})
	case WireGuardOutbound:
		h.Type = TypeWireGuard
		return json.Marshal(struct {
			header
			WireGuardOutbound
		}{h, v})
	case SOCKSOutbound:
		h.Type = TypeSOCKS
		return json.Marshal(struct {
			header
			SOCKSOutbound
		}{h, v})
	case DirectOutbound:
		h.Type = TypeDirect
		return json.Marshal(h)
	case nil:
		return nil, fmt.Errorf("outbound %q is empty", tag)
	default:
		return nil, fmt.Errorf("unsupported outbound variant %T", o)
	}
}

// TaggedOutbound places an Outbound in the outbound list under a tag.
type TaggedOutbound struct {
	Tag      string
	Outbound Outbound
}

func (t TaggedOutbound) MarshalJSON() ([]byte, error) {
	return MarshalOutbound(t.Tag, t.Outbound)
}
