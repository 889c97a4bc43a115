package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "canary-speech-client/internal/common/errors"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(EnvName(key), "")
		os.Unsetenv(EnvName(key))
	}
}

func requiredArgs() []string {
	return []string{
		"--api-key", "client:secret",
		"--project-id", "proj-1",
		"--survey-code", "SURVEY",
		"--audio-file", "rec.wav",
		"--subject-name", "Jane",
	}
}

func TestLoad_FlagsOnly(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(newFlagSet(t, requiredArgs()...))
	require.NoError(t, err)

	assert.Equal(t, "client", cfg.Credentials.ClientID)
	assert.Equal(t, "secret", cfg.Credentials.Secret)
	assert.Equal(t, "client:secret", cfg.Credentials.APIKey())
	assert.Equal(t, "proj-1", cfg.Credentials.ProjectID)
	assert.Equal(t, "SURVEY", cfg.Credentials.SurveyCode)
	assert.Equal(t, RegionEastUS, cfg.Credentials.Region)
	assert.Equal(t, "https://rest.eus.canaryspeech.com", cfg.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 150, cfg.Poll.MaxAttempts)
	assert.Equal(t, 3, cfg.Poll.TransientRetries)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, OutputText, cfg.Output)
}

func TestLoad_EnvironmentFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("CANARY_API_KEY", "envclient:envsecret")
	t.Setenv("CANARY_PROJECT_ID", "env-proj")
	t.Setenv("CANARY_SURVEY_CODE", "ENV-SURVEY")
	t.Setenv("CANARY_REGION", "jpe")
	t.Setenv("CANARY_POLL_INTERVAL", "500ms")
	t.Setenv("CANARY_POLL_MAX_ATTEMPTS", "7")

	cfg, err := Load(newFlagSet(t, "--audio-file", "rec.wav", "--subject-name", "Jane"))
	require.NoError(t, err)

	assert.Equal(t, "envclient", cfg.Credentials.ClientID)
	assert.Equal(t, "env-proj", cfg.Credentials.ProjectID)
	assert.Equal(t, "ENV-SURVEY", cfg.Credentials.SurveyCode)
	assert.Equal(t, RegionJapanEast, cfg.Credentials.Region)
	assert.Equal(t, "https://rest.jpe.canaryspeech.com", cfg.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 7, cfg.Poll.MaxAttempts)
}

func TestLoad_FlagsOverrideEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("CANARY_API_KEY", "envclient:envsecret")
	t.Setenv("CANARY_PROJECT_ID", "env-proj")
	t.Setenv("CANARY_REGION", "jpe")

	args := append(requiredArgs(), "--region", "ne")
	cfg, err := Load(newFlagSet(t, args...))
	require.NoError(t, err)

	assert.Equal(t, "client", cfg.Credentials.ClientID)
	assert.Equal(t, "proj-1", cfg.Credentials.ProjectID)
	assert.Equal(t, RegionNorthEurope, cfg.Credentials.Region)
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
project-id: file-proj
survey-code: FILE-SURVEY
region: ne
poll-interval: 5s
output: json
`), 0o600))

	t.Setenv("CANARY_SURVEY_CODE", "ENV-SURVEY")
	cfg, err := Load(newFlagSet(t,
		"--config", path,
		"--api-key", "a:b",
		"--audio-file", "rec.wav",
		"--subject-name", "Jane",
	))
	require.NoError(t, err)

	assert.Equal(t, "file-proj", cfg.Credentials.ProjectID)
	assert.Equal(t, "ENV-SURVEY", cfg.Credentials.SurveyCode, "environment beats config file")
	assert.Equal(t, RegionNorthEurope, cfg.Credentials.Region)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, OutputJSON, cfg.Output)
}

func TestLoad_BaseURLOverride(t *testing.T) {
	clearEnv(t)
	args := append(requiredArgs(), "--base-url", "http://127.0.0.1:9999/")
	cfg, err := Load(newFlagSet(t, args...))
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.BaseURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad region", append(requiredArgs(), "--region", "usw")},
		{"missing api key", []string{"--project-id", "p", "--survey-code", "s", "--audio-file", "a.wav", "--subject-name", "n"}},
		{"missing project", []string{"--api-key", "a:b", "--survey-code", "s", "--audio-file", "a.wav", "--subject-name", "n"}},
		{"missing survey", []string{"--api-key", "a:b", "--project-id", "p", "--audio-file", "a.wav", "--subject-name", "n"}},
		{"missing audio file", []string{"--api-key", "a:b", "--project-id", "p", "--survey-code", "s", "--subject-name", "n"}},
		{"missing subject", []string{"--api-key", "a:b", "--project-id", "p", "--survey-code", "s", "--audio-file", "a.wav"}},
		{"bad base url", append(requiredArgs(), "--base-url", "ftp://x")},
		{"zero attempts", append(requiredArgs(), "--poll-max-attempts", "0")},
		{"negative interval", append(requiredArgs(), "--poll-interval=-1s")},
		{"negative transient retries", append(requiredArgs(), "--poll-transient-retries=-1")},
		{"too many transient retries", append(requiredArgs(), "--poll-transient-retries=40")},
		{"bad output", append(requiredArgs(), "--output", "xml")},
		{"bad log format", append(requiredArgs(), "--log-format", "logfmt")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg, err := Load(newFlagSet(t, tt.args...))
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrConfig)
		})
	}
}

func TestLoad_TransientRetriesUpperBound(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(newFlagSet(t, append(requiredArgs(), "--poll-transient-retries=10")...))
	require.NoError(t, err)
	assert.Equal(t, MaxPollTransientRetries, cfg.Poll.TransientRetries)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	args := append(requiredArgs(), "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := Load(newFlagSet(t, args...))
	assert.ErrorIs(t, err, apperrors.ErrConfig)
}

func TestParseRegion(t *testing.T) {
	r, err := ParseRegion("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRegion, r)

	r, err = ParseRegion(" NE ")
	require.NoError(t, err)
	assert.Equal(t, RegionNorthEurope, r)

	_, err = ParseRegion("westus")
	assert.ErrorContains(t, err, "eus, jpe, ne")
}

func TestPollConfig_Budget(t *testing.T) {
	assert.Equal(t, 298*time.Second, PollConfig{Interval: 2 * time.Second, MaxAttempts: 150}.Budget())
	assert.Equal(t, time.Duration(0), PollConfig{Interval: time.Second, MaxAttempts: 1}.Budget())
}
