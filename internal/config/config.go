// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/iyunix/go-rigadvisor/internal/domain"
	"github.com/iyunix/go-rigadvisor/internal/services/suggestion"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.5-flash-preview-09-2025:generateContent"
)

type Config struct {
	ServerPort  string
	Environment string
	LLMProvider string

	Gemini transport.Config
	OpenAI suggestion.OpenAIConfig
	Retry  transport.RetryConfig

	PlansFile        string
	FAQFile          string
	AttemptDSN       string
	AttemptRetention time.Duration

	RateLimitMax    int
	RateLimitWindow time.Duration
	CORSOrigins     []string
}

// Load reads configuration from environment variables or a .env file.
func Load() (*Config, error) {
	env := os.Getenv("ENV")
	if !isProduction(env) {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}

	retry, timeout, err := loadRetrySettings()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: env,
		LLMProvider: strings.ToLower(getEnv("LLM_PROVIDER", ProviderGemini)),
		Gemini: transport.Config{
			Endpoint: getEnv("GEMINI_ENDPOINT", DefaultGeminiEndpoint),
			// Left blank, the key is expected to be injected by the hosting environment.
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Timeout: timeout,
			Retry:   retry,
		},
		OpenAI: suggestion.OpenAIConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			BaseURL: getEnv("OPENAI_BASE_URL", ""),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			Timeout: timeout,
			Retry:   retry,
		},
		Retry:            retry,
		PlansFile:        getEnv("PLANS_FILE", ""),
		FAQFile:          getEnv("FAQ_FILE", ""),
		AttemptDSN:       getEnv("ATTEMPT_DSN", ""),
		AttemptRetention: getEnvAsDuration("ATTEMPT_RETENTION_MIN", time.Minute, 60),
		RateLimitMax:     getEnvAsInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow:  getEnvAsDuration("RATE_LIMIT_WINDOW_SEC", time.Second, 60),
		CORSOrigins:      getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings of the selected provider only.
func (c *Config) Validate() error {
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("SERVER_PORT must be numeric, got %q", c.ServerPort)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry settings: %w", err)
	}
	if c.RateLimitMax < 1 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW_SEC must be positive")
	}
	if c.AttemptRetention <= 0 {
		return fmt.Errorf("ATTEMPT_RETENTION_MIN must be positive")
	}

	switch c.LLMProvider {
	case ProviderGemini:
		if err := c.Gemini.Validate(); err != nil {
			return fmt.Errorf("gemini settings: %w", err)
		}
		if isProduction(c.Environment) && c.Gemini.APIKey == "" {
			return fmt.Errorf("missing required production environment variables: [GEMINI_API_KEY]")
		}
	case ProviderOpenAI:
		if err := c.OpenAI.Validate(); err != nil {
			return fmt.Errorf("openai settings: %w", err)
		}
	default:
		return fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.LLMProvider)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return isProduction(c.Environment)
}

type catalogFile struct {
	SystemInstruction string        `yaml:"system_instruction"`
	FallbackMessage   string        `yaml:"fallback_message"`
	Plans             []domain.Plan `yaml:"plans"`
}

// LoadCatalog reads the plan catalog from path, or returns the built-in one when path is empty.
// A file without a system instruction or fallback message keeps the defaults.
func LoadCatalog(path string) (*domain.Catalog, error) {
	if path == "" {
		return domain.DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse plans file: %w", err)
	}
	if file.SystemInstruction == "" {
		file.SystemInstruction = domain.DefaultSystemInstruction
	}
	return domain.NewCatalog(file.SystemInstruction, file.Plans, domain.WithFallback(file.FallbackMessage))
}

// loadRetrySettings reads the retry and timeout settings.
// Unlike the other helpers, a value that is set but unparsable is an error.
func loadRetrySettings() (transport.RetryConfig, time.Duration, error) {
	maxAttempts, errAttempts := parseEnvInt("RETRY_MAX_ATTEMPTS", 3)
	delayMs, errDelay := parseEnvInt("RETRY_INITIAL_DELAY_MS", 1000)
	clientErrors, errClient := parseEnvBool("RETRY_CLIENT_ERRORS", true)
	timeoutMs, errTimeout := parseEnvInt("HTTP_TIMEOUT_MS", 0)
	if err := errors.Join(errAttempts, errDelay, errClient, errTimeout); err != nil {
		return transport.RetryConfig{}, 0, fmt.Errorf("retry settings: %w", err)
	}
	retry := transport.RetryConfig{
		MaxAttempts:       maxAttempts,
		InitialDelay:      time.Duration(delayMs) * time.Millisecond,
		RetryClientErrors: clientErrors,
	}
	return retry, time.Duration(timeoutMs) * time.Millisecond, nil
}

func isProduction(env string) bool {
	return strings.ToLower(env) == "production"
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an env var as an integer, with a fallback.
func getEnvAsInt(key string, defaultValue int) int {
	intValue, err := parseEnvInt(key, defaultValue)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func parseEnvInt(key string, defaultValue int) (int, error) {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(strValue)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, strValue)
	}
	return intValue, nil
}

// getEnvAsDuration reads an integer count of unit.
func getEnvAsDuration(key string, unit time.Duration, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * unit
}

func parseEnvBool(key string, defaultValue bool) (bool, error) {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strValue)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, strValue)
	}
	return b, nil
}

func getEnvAsList(key string, defaultValue []string) []string {
	strValue := strings.TrimSpace(getEnv(key, ""))
	if strValue == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(strValue, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
