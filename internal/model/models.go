package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Protocol string

const (
	ProtocolVLESS       Protocol = "vless"
	ProtocolShadowsocks Protocol = "shadowsocks"
	ProtocolHysteria2   Protocol = "hysteria2"
	ProtocolWireGuard   Protocol = "wireguard"
	ProtocolSOCKS       Protocol = "socks"
	ProtocolUnknown     Protocol = "unknown"
)

// schemePrefixes maps every recognised link prefix to its protocol tag.
var schemePrefixes = []struct {
	prefix   string
	protocol Protocol
}{
	{"vless://", ProtocolVLESS},
	{"ss://", ProtocolShadowsocks},
	{"hy2://", ProtocolHysteria2},
	{"hysteria2://", ProtocolHysteria2},
	{"wireguard://", ProtocolWireGuard},
	{"socks://", ProtocolSOCKS},
	{"socks5://", ProtocolSOCKS},
	{"socks4://", ProtocolSOCKS},
}

// ProtocolFromLink derives the protocol tag from the scheme prefix of a link.
func ProtocolFromLink(link string) Protocol {
	lower := strings.ToLower(strings.TrimSpace(link))
	for _, s := range schemePrefixes {
		if strings.HasPrefix(lower, s.prefix) {
			return s.protocol
		}
	}
	return ProtocolUnknown
}

// Profile is one stored connection profile.
type Profile struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Server     string   `json:"server"`
	Protocol   Protocol `json:"protocol"`
	ConfigLink string   `json:"config_link"`
	Upload     *int64   `json:"upload"`
	Download   *int64   `json:"download"`
}

// NewProfile builds a profile with a fresh identity and zeroed usage counters.
func NewProfile(name, link string) Profile {
	link = strings.TrimSpace(link)
	var up, down int64
	return Profile{
		ID:         uuid.NewString(),
		Name:       name,
		Server:     "Auto",
		Protocol:   ProtocolFromLink(link),
		ConfigLink: link,
		Upload:     &up,
		Download:   &down,
	}
}

// UploadBytes treats a null counter as zero.
func (p Profile) UploadBytes() int64 {
	if p.Upload == nil {
		return 0
	}
	return *p.Upload
}

func (p Profile) DownloadBytes() int64 {
	if p.Download == nil {
		return 0
	}
	return *p.Download
}

// Settings is the single global settings record.
type Settings struct {
	MTU int    `json:"mtu"`
	DNS string `json:"dns"`

	// TLS obfuscation
	Fragment      bool   `json:"fragment"`
	FragmentSize  string `json:"fragment_size"`
	FragmentSleep string `json:"fragment_sleep"`
	MixedCaseSNI  bool   `json:"mixed_case_sni"`
	Padding       bool   `json:"padding"`

	// Remote sync
	ServerURL     string `json:"server_url,omitempty"`
	AuthToken     string `json:"auth_token,omitempty"`
	PendingUpload bool   `json:"pending_upload"`
}

func DefaultSettings() Settings {
	return Settings{
		MTU:           9000,
		DNS:           "8.8.8.8",
		FragmentSize:  "10-30",
		FragmentSleep: "2-8",
	}
}

// SessionRecord is one engine run in the session journal.
type SessionRecord struct {
	ID          uint `gorm:"primaryKey"`
	ProfileID   string
	ProfileName string
	Protocol    string
	ConfigPath  string
	StartedAt   time.Time
	StoppedAt   *time.Time `gorm:"index"`
	ExitReason  string
}
