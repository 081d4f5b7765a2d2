package geoip

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"shieldline/internal/logger"

	"github.com/oschwald/geoip2-golang"
)

var ErrDisabled = errors.New("geoip database not initialized")

var (
	mu            sync.RWMutex
	countryReader *geoip2.Reader
	asnReader     *geoip2.Reader
)

// Init opens the country and ASN databases. Either path may be empty; a
// country database that fails to open is an error, a missing ASN database
// only drops the ISP column.
func Init(countryPath, asnPath string) error {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()

	if countryPath != "" {
		r, err := geoip2.Open(countryPath)
		if err != nil {
			return fmt.Errorf("failed to open country DB at %s: %w", countryPath, err)
		}
		countryReader = r
	}
	if asnPath != "" {
		r, err := geoip2.Open(asnPath)
		if err != nil {
			logger.Log.Warnf("Failed to open ASN DB at %s: %v. ISP data will be missing.", asnPath, err)
		} else {
			asnReader = r
		}
	}
	return nil
}

func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return countryReader != nil || asnReader != nil
}

type Result struct {
	Country string
	ISP     string
}

// Lookup annotates a resolved server address.
func Lookup(ipStr string) (Result, error) {
	mu.RLock()
	defer mu.RUnlock()

	res := Result{Country: "XX", ISP: "Unknown"}
	if countryReader == nil && asnReader == nil {
		return res, ErrDisabled
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return res, fmt.Errorf("invalid ip: %s", ipStr)
	}

	if countryReader != nil {
		if c, err := countryReader.Country(ip); err == nil && c.Country.IsoCode != "" {
			res.Country = c.Country.IsoCode
		}
	}
	if asnReader != nil {
		if a, err := asnReader.ASN(ip); err == nil && a.AutonomousSystemOrganization != "" {
			res.ISP = a.AutonomousSystemOrganization
		}
	}
	return res, nil
}

func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeLocked()
}

func closeLocked() {
	if countryReader != nil {
		countryReader.Close()
		countryReader = nil
	}
	if asnReader != nil {
		asnReader.Close()
		asnReader = nil
	}
}

// FlagEmoji renders a two-letter country code as its regional indicator
// pair, or a globe for anything else.
func FlagEmoji(countryCode string) string {
	if len(countryCode) != 2 || countryCode == "XX" {
		return "🌐"
	}
	countryCode = strings.ToUpper(countryCode)
	if countryCode[0] < 'A' || countryCode[0] > 'Z' || countryCode[1] < 'A' || countryCode[1] > 'Z' {
		return "🌐"
	}
	return string(rune(countryCode[0])+127397) + string(rune(countryCode[1])+127397)
}
