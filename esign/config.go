package esign

import (
	"os"
	"strconv"
	"strings"
)

const DefaultDiscoveryURI = "https://api.echosign.com"

// Config of the Adobe Sign integration. When BaseURI is empty the API access
// point is discovered from DiscoveryURI and cached.
type Config struct {
	Enabled           bool
	AccessToken       string
	BaseURI           string
	DiscoveryURI      string
	ClientID          string
	RequestsPerSecond float64
}

// ConfigFromEnv reads ADOBE_SIGN_ENABLED, ADOBE_SIGN_API_KEY,
// ADOBE_SIGN_BASE_URI, ADOBE_SIGN_CLIENT_ID and ADOBE_SIGN_RPS.
func ConfigFromEnv() Config {
	enabled, _ := strconv.ParseBool(os.Getenv("ADOBE_SIGN_ENABLED"))
	rps := 5.0
	if v := os.Getenv("ADOBE_SIGN_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			rps = f
		}
	}
	return Config{
		Enabled:           enabled,
		AccessToken:       os.Getenv("ADOBE_SIGN_API_KEY"),
		BaseURI:           strings.TrimRight(os.Getenv("ADOBE_SIGN_BASE_URI"), "/"),
		DiscoveryURI:      DefaultDiscoveryURI,
		ClientID:          os.Getenv("ADOBE_SIGN_CLIENT_ID"),
		RequestsPerSecond: rps,
	}
}
