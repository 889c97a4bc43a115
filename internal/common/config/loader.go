// internal/common/config/loader.go
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	apperrors "canary-speech-client/internal/common/errors"
)

// EnvPrefix prefixes every environment variable the client reads.
const EnvPrefix = "CANARY"

// Keys double as flag names, config file keys and (upper-cased, prefixed) env names.
const (
	KeyConfigFile      = "config"
	KeyAPIKey          = "api-key"
	KeyProjectID       = "project-id"
	KeySurveyCode      = "survey-code"
	KeyRegion          = "region"
	KeyBaseURL         = "base-url"
	KeyAudioFile       = "audio-file"
	KeySubjectName     = "subject-name"
	KeyResponseCode    = "response-code"
	KeyHTTPTimeout     = "http-timeout"
	KeyPollInterval    = "poll-interval"
	KeyPollMaxAttempts = "poll-max-attempts"
	KeyPollTransient   = "poll-transient-retries"
	KeyLogLevel        = "log-level"
	KeyLogFormat       = "log-format"
	KeyOutput          = "output"
	KeyMetricsFile     = "metrics-file"
)

const (
	DefaultHTTPTimeout          = 30 * time.Second
	DefaultPollInterval         = 2 * time.Second
	DefaultPollMaxAttempts      = 150
	DefaultPollTransientRetries = 3
	MaxPollTransientRetries     = 10

	defaultEnvFileName = ".env"
)

var envKeys = []string{
	KeyConfigFile, KeyAPIKey, KeyProjectID, KeySurveyCode, KeyRegion, KeyBaseURL,
	KeyAudioFile, KeySubjectName, KeyResponseCode, KeyHTTPTimeout,
	KeyPollInterval, KeyPollMaxAttempts, KeyPollTransient,
	KeyLogLevel, KeyLogFormat, KeyOutput, KeyMetricsFile,
}

// EnvName returns the environment variable bound to key.
func EnvName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// RegisterFlags declares every configuration flag on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(KeyConfigFile, "", "Path to a YAML config file")
	fs.String(KeyAudioFile, "", "Path to the audio file to upload (WAV recommended)")
	fs.String(KeyAPIKey, "", "API key in CLIENT_ID:SECRET form (or "+EnvName(KeyAPIKey)+")")
	fs.String(KeyProjectID, "", "Project ID (or "+EnvName(KeyProjectID)+")")
	fs.String(KeySurveyCode, "", "Survey code (or "+EnvName(KeySurveyCode)+")")
	fs.String(KeySubjectName, "", "Name used to create the subject")
	fs.String(KeyRegion, string(DefaultRegion), "API region: "+strings.Join(Regions(), ", "))
	fs.String(KeyResponseCode, "", "Response code to upload the recording for (default: first available)")
	fs.String(KeyBaseURL, "", "Override the region base URL")
	fs.Duration(KeyHTTPTimeout, DefaultHTTPTimeout, "Timeout for each HTTP request")
	fs.Duration(KeyPollInterval, DefaultPollInterval, "Delay between status polls")
	fs.Int(KeyPollMaxAttempts, DefaultPollMaxAttempts, "Maximum number of status polls")
	fs.Int(KeyPollTransient, DefaultPollTransientRetries, "Retries per poll for transient network failures")
	fs.String(KeyLogLevel, "info", "Log level: debug, info, warn, error")
	fs.String(KeyLogFormat, "console", "Log format: console or json")
	fs.String(KeyOutput, OutputText, "Result format: text or json")
	fs.String(KeyMetricsFile, "", "Write Prometheus metrics in textfile format to this path on exit")

	_ = fs.MarkHidden(KeyBaseURL)
}

// Load resolves configuration from flags, environment, an optional .env file and
// an optional YAML file, in that order of precedence, and validates it.
func Load(fs *pflag.FlagSet) (*Config, error) {
	envFile := loadEnvFile()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key, EnvName(key)); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("bind env %s: %v", key, err))
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("bind flags: %v", err))
		}
	}

	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, apperrors.NewConfigError(fmt.Sprintf("read config file %s: %v", path, err))
		}
	}

	cfg, err := build(v)
	if err != nil {
		return nil, err
	}
	cfg.EnvFile = envFile

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile loads .env from the working directory without overriding set variables.
func loadEnvFile() string {
	if _, err := os.Stat(defaultEnvFileName); err != nil {
		return ""
	}
	if err := godotenv.Load(defaultEnvFileName); err != nil {
		return ""
	}
	return defaultEnvFileName
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyRegion, string(DefaultRegion))
	v.SetDefault(KeyHTTPTimeout, DefaultHTTPTimeout)
	v.SetDefault(KeyPollInterval, DefaultPollInterval)
	v.SetDefault(KeyPollMaxAttempts, DefaultPollMaxAttempts)
	v.SetDefault(KeyPollTransient, DefaultPollTransientRetries)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
	v.SetDefault(KeyOutput, OutputText)
}

func build(v *viper.Viper) (*Config, error) {
	region, err := ParseRegion(v.GetString(KeyRegion))
	if err != nil {
		return nil, apperrors.NewConfigError(err.Error())
	}

	clientID, secret, _ := strings.Cut(strings.TrimSpace(v.GetString(KeyAPIKey)), ":")

	baseURL := strings.TrimSuffix(strings.TrimSpace(v.GetString(KeyBaseURL)), "/")
	if baseURL == "" {
		baseURL = region.BaseURL()
	}

	return &Config{
		Credentials: Credentials{
			ClientID:   clientID,
			Secret:     secret,
			ProjectID:  strings.TrimSpace(v.GetString(KeyProjectID)),
			SurveyCode: strings.TrimSpace(v.GetString(KeySurveyCode)),
			Region:     region,
		},
		BaseURL:      baseURL,
		AudioFile:    v.GetString(KeyAudioFile),
		SubjectName:  strings.TrimSpace(v.GetString(KeySubjectName)),
		ResponseCode: strings.TrimSpace(v.GetString(KeyResponseCode)),
		HTTPTimeout:  v.GetDuration(KeyHTTPTimeout),
		Poll: PollConfig{
			Interval:         v.GetDuration(KeyPollInterval),
			MaxAttempts:      v.GetInt(KeyPollMaxAttempts),
			TransientRetries: v.GetInt(KeyPollTransient),
		},
		Logging: LoggingConfig{
			Level:  strings.ToLower(v.GetString(KeyLogLevel)),
			Format: strings.ToLower(v.GetString(KeyLogFormat)),
		},
		Output:      strings.ToLower(v.GetString(KeyOutput)),
		MetricsFile: v.GetString(KeyMetricsFile),
	}, nil
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Credentials.ClientID == "" && cfg.Credentials.Secret == "" {
		return apperrors.NewConfigError(fmt.Sprintf("API key required (--%s or %s)", KeyAPIKey, EnvName(KeyAPIKey)))
	}
	if cfg.Credentials.ProjectID == "" {
		return apperrors.NewConfigError(fmt.Sprintf("project ID required (--%s or %s)", KeyProjectID, EnvName(KeyProjectID)))
	}
	if cfg.Credentials.SurveyCode == "" {
		return apperrors.NewConfigError(fmt.Sprintf("survey code required (--%s or %s)", KeySurveyCode, EnvName(KeySurveyCode)))
	}
	if cfg.AudioFile == "" {
		return apperrors.NewConfigError(fmt.Sprintf("audio file required (--%s)", KeyAudioFile))
	}
	if cfg.SubjectName == "" {
		return apperrors.NewConfigError(fmt.Sprintf("subject name required (--%s)", KeySubjectName))
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperrors.NewConfigError(fmt.Sprintf("invalid base URL %q", cfg.BaseURL))
	}

	if cfg.HTTPTimeout <= 0 {
		return apperrors.NewConfigError("http timeout must be positive")
	}
	if cfg.Poll.Interval < 0 {
		return apperrors.NewConfigError("poll interval must not be negative")
	}
	if cfg.Poll.MaxAttempts <= 0 {
		return apperrors.NewConfigError("poll max attempts must be positive")
	}
	if cfg.Poll.TransientRetries < 0 || cfg.Poll.TransientRetries > MaxPollTransientRetries {
		return apperrors.NewConfigError(fmt.Sprintf("poll transient retries must be between 0 and %d", MaxPollTransientRetries))
	}

	switch cfg.Output {
	case OutputText, OutputJSON:
	default:
		return apperrors.NewConfigError(fmt.Sprintf("invalid output %q: must be text or json", cfg.Output))
	}
	switch cfg.Logging.Format {
	case "console", "json":
	default:
		return apperrors.NewConfigError(fmt.Sprintf("invalid log format %q: must be console or json", cfg.Logging.Format))
	}

	return nil
}
