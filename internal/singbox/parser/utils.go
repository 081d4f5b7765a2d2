package parser

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const fallbackName = "Imported Profile"

// DecodeBase64 attempts URL-safe and standard base64, with or without
// padding.
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty base64 input")
	}
	var lastErr error
	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		b, err := enc.DecodeString(s)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// FixIllegalUrl cleans up whitespace and line breaks pasted into links.
func FixIllegalUrl(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return s
}

// NameFromLink returns the percent-decoded fragment of a link, or a fixed
// label when there is none.
func NameFromLink(link string) string {
	u, err := url.Parse(FixIllegalUrl(link))
	if err != nil {
		return fallbackName
	}
	// u.Fragment is already percent-decoded
	if frag := strings.TrimSpace(u.Fragment); frag != "" {
		return frag
	}
	return fallbackName
}

func firstQueryValue(q url.Values, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

func hostPort(u *url.URL) (string, int, error) {
	host := strings.TrimSpace(u.Hostname())
	if host == "" {
		return "", 0, ErrMissingHost
	}
	portText := strings.TrimSpace(u.Port())
	if portText == "" {
		return "", 0, ErrMissingPort
	}
	port, err := strconv.Atoi(portText)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portText)
	}
	return host, port, nil
}

func parseBool(raw string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return fallback
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
