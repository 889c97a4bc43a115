// internal/common/config/config.go
package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Region selects the API deployment and therefore the base URL.
type Region string

const (
	RegionEastUS      Region = "eus"
	RegionNorthEurope Region = "ne"
	RegionJapanEast   Region = "jpe"

	DefaultRegion = RegionEastUS
)

var regionBaseURLs = map[Region]string{
	RegionEastUS:      "https://rest.eus.canaryspeech.com",
	RegionNorthEurope: "https://rest.ne.canaryspeech.com",
	RegionJapanEast:   "https://rest.jpe.canaryspeech.com",
}

// Regions returns the supported region codes in sorted order.
func Regions() []string {
	out := make([]string, 0, len(regionBaseURLs))
	for r := range regionBaseURLs {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

// ParseRegion accepts a region code case-insensitively. An empty value means DefaultRegion.
func ParseRegion(s string) (Region, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultRegion, nil
	}
	r := Region(s)
	if _, ok := regionBaseURLs[r]; !ok {
		return "", fmt.Errorf("invalid region %q: must be one of %s", s, strings.Join(Regions(), ", "))
	}
	return r, nil
}

// BaseURL returns the REST endpoint for the region.
func (r Region) BaseURL() string {
	return regionBaseURLs[r]
}

// Credentials identify the caller and the assessment protocol. Immutable once resolved.
type Credentials struct {
	ClientID   string
	Secret     string
	ProjectID  string
	SurveyCode string
	Region     Region
}

// APIKey returns the key in the CLIENT_ID:SECRET form the token endpoint expects.
func (c Credentials) APIKey() string {
	return c.ClientID + ":" + c.Secret
}

// Config is the resolved configuration for a single run.
type Config struct {
	Credentials Credentials

	// BaseURL is the region URL unless explicitly overridden.
	BaseURL string

	AudioFile    string
	SubjectName  string
	ResponseCode string

	HTTPTimeout time.Duration
	Poll        PollConfig
	Logging     LoggingConfig

	Output      string
	MetricsFile string

	// EnvFile is the .env file that was loaded, if any.
	EnvFile string
}

// PollConfig controls the completion-polling loop.
type PollConfig struct {
	Interval         time.Duration
	MaxAttempts      int
	TransientRetries int
}

// Budget is the nominal time slept between status polls. Sleeps between
// transient retries come on top of it.
func (p PollConfig) Budget() time.Duration {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return time.Duration(p.MaxAttempts-1) * p.Interval
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string
	Format string
}

// Output modes for the result presenter.
const (
	OutputText = "text"
	OutputJSON = "json"
)
