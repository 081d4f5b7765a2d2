package subscription

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"shieldline/internal/model"
	"shieldline/internal/singbox/parser"
)

var ErrNoProfiles = errors.New("no profiles found")

// Decode unwraps a subscription body and builds one profile per recognised
// link. Bodies are tried as standard base64, then URL-safe base64, then
// taken as plaintext.
func Decode(body string) ([]model.Profile, error) {
	text, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	var profiles []model.Profile
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if model.ProtocolFromLink(line) == model.ProtocolUnknown {
			continue
		}
		profiles = append(profiles, model.NewProfile(parser.NameFromLink(line), line))
	}

	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}
	return profiles, nil
}

func unwrap(body string) (string, error) {
	compact := strings.TrimSpace(strings.NewReplacer("\n", "", "\r", "").Replace(body))

	raw, ok := decodeBase64(compact)
	if !ok {
		// plaintext keeps its line structure
		raw = []byte(body)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("subscription body is not valid utf-8")
	}
	return strings.ReplaceAll(string(raw), "\r", ""), nil
}

func decodeBase64(s string) ([]byte, bool) {
	if s == "" {
		return nil, false
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return b, true
		}
	}
	return nil, false
}
