package subscription

import (
	"encoding/base64"
	"net/url"
	"strings"

	"shieldline/internal/model"
)

// Encode renders profiles as a subscription body, one link per line with
// the profile name as fragment. Decode(Encode(ps, b)) yields the same links.
func Encode(profiles []model.Profile, useBase64 bool) string {
	lines := make([]string, 0, len(profiles))
	for _, p := range profiles {
		link := strings.TrimSpace(p.ConfigLink)
		if link == "" {
			continue
		}
		if i := strings.IndexByte(link, '#'); i >= 0 {
			link = link[:i]
		}
		if p.Name != "" {
			link += "#" + url.PathEscape(p.Name)
		}
		lines = append(lines, link)
	}

	text := strings.Join(lines, "\n")
	if useBase64 {
		return base64.StdEncoding.EncodeToString([]byte(text))
	}
	return text
}
