package app

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"shieldline/internal/model"
)

var rangePattern = regexp.MustCompile(`^\d+-\d+$`)

// SettingKeys lists the keys accepted by ApplySetting.
var SettingKeys = []string{
	"mtu", "dns", "fragment", "fragment_size", "fragment_sleep",
	"mixed_case_sni", "padding", "server_url",
}

// ApplySetting sets one settings field from its textual form.
func ApplySetting(s *model.Settings, key, value string) error {
	value = strings.TrimSpace(value)
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "mtu":
		mtu, err := strconv.Atoi(value)
		if err != nil || mtu < 576 || mtu > 65535 {
			return fmt.Errorf("mtu must be an integer between 576 and 65535")
		}
		s.MTU = mtu
	case "dns":
		if value == "" {
			return fmt.Errorf("dns must not be empty")
		}
		s.DNS = value
	case "fragment":
		return setBool(&s.Fragment, key, value)
	case "fragment_size":
		if !rangePattern.MatchString(value) {
			return fmt.Errorf("fragment_size must look like 10-30")
		}
		s.FragmentSize = value
	case "fragment_sleep":
		if !rangePattern.MatchString(value) {
			return fmt.Errorf("fragment_sleep must look like 2-8")
		}
		s.FragmentSleep = value
	case "mixed_case_sni":
		return setBool(&s.MixedCaseSNI, key, value)
	case "padding":
		return setBool(&s.Padding, key, value)
	case "server_url":
		s.ServerURL = strings.TrimRight(value, "/")
	default:
		return fmt.Errorf("unknown setting %q (known: %s)", key, strings.Join(SettingKeys, ", "))
	}
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s must be true or false", key)
	}
	*dst = b
	return nil
}
