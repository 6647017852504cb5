package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"

	defaultTokenTTL                = 72 * time.Hour
	defaultTokenBytes              = 32
	defaultTemporaryPasswordLength = 16
	defaultVerificationStatus      = "pending"
	defaultNotificationRetries     = 3
	defaultInitialBackoff          = 500 * time.Millisecond
	defaultMaxBackoff              = 10 * time.Second
	defaultDispatchTimeout         = time.Minute
	defaultBulkMaxMerchants        = 500
	defaultBulkConcurrency         = 8
	defaultMaxAttempts             = 3
	defaultPurgeSchedule           = "@hourly"
	defaultPurgeRetention          = 7 * 24 * time.Hour
	defaultSpecialCharacters       = "!@#$%^&*()-_=+[]{};:,.<>?/~"
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		AutoMigrate bool   `json:"autoMigrate" yaml:"autoMigrate"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	SecretKey SecretKeyConfig `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	PasswordStrength *PasswordStrengthConfig `json:"passwordStrength" yaml:"passwordStrength"`

	// Onboarding controls credential issuance and setup-token lifetime
	Onboarding *OnboardingConfig `json:"onboarding" yaml:"onboarding"`

	// Notification controls welcome-notification retries
	Notification *NotificationConfig `json:"notification" yaml:"notification"`

	// Bulk controls administrative batch transitions
	Bulk *BulkConfig `json:"bulk" yaml:"bulk"`

	Documents *DocumentsConfig `json:"documents" yaml:"documents"`

	// QRCode configuration for setup-link QR codes
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`

	// PubSub configuration for event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	TokenPurge *TokenPurgeConfig `json:"tokenPurge" yaml:"tokenPurge"`
}

// SecretKeyConfig holds the HMAC secret used for access tokens
type SecretKeyConfig struct {
	Access string `json:"access" yaml:"access"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost     int           `json:"bcryptCost" yaml:"bcryptCost" validate:"omitempty,min=4,max=31"`
	AccessTokenTTL time.Duration `json:"accessTokenTTL" yaml:"accessTokenTTL"`
}

// PasswordStrengthConfig defines password strength requirements
type PasswordStrengthConfig struct {
	MinLength         int    `json:"minLength" yaml:"minLength" validate:"min=1"`
	RequireUppercase  bool   `json:"requireUppercase" yaml:"requireUppercase"`
	RequireLowercase  bool   `json:"requireLowercase" yaml:"requireLowercase"`
	RequireNumbers    bool   `json:"requireNumbers" yaml:"requireNumbers"`
	RequireSpecial    bool   `json:"requireSpecial" yaml:"requireSpecial"`
	MaxLength         int    `json:"maxLength" yaml:"maxLength" validate:"omitempty,gtefield=MinLength,max=72"`
	SpecialCharacters string `json:"specialCharacters" yaml:"specialCharacters"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// OnboardingConfig defines merchant provisioning parameters
type OnboardingConfig struct {
	// Validity window of a setup token
	TokenTTL time.Duration `json:"tokenTTL" yaml:"tokenTTL" validate:"min=1m"`

	// Number of random bytes behind each setup token
	TokenBytes int `json:"tokenBytes" yaml:"tokenBytes" validate:"min=16,max=64"`

	TemporaryPasswordLength int `json:"temporaryPasswordLength" yaml:"temporaryPasswordLength" validate:"min=8,max=72"`

	// Setup link base, the raw token is appended as the "token" query parameter
	SetupBaseURL string `json:"setupBaseUrl" yaml:"setupBaseUrl" validate:"omitempty,http_url"`

	// Verification status used when the admin does not request one
	DefaultVerificationStatus string `json:"defaultVerificationStatus" yaml:"defaultVerificationStatus" validate:"oneof=unverified pending verified rejected"`
}

// NotificationConfig defines welcome-notification dispatch behaviour
type NotificationConfig struct {
	MaxRetries      uint          `json:"maxRetries" yaml:"maxRetries"`
	InitialBackoff  time.Duration `json:"initialBackoff" yaml:"initialBackoff"`
	MaxBackoff      time.Duration `json:"maxBackoff" yaml:"maxBackoff" validate:"gtefield=InitialBackoff"`
	DispatchTimeout time.Duration `json:"dispatchTimeout" yaml:"dispatchTimeout"`
}

// BulkConfig defines bulk action limits
type BulkConfig struct {
	MaxMerchants int `json:"maxMerchants" yaml:"maxMerchants"`
	Concurrency  int `json:"concurrency" yaml:"concurrency" validate:"min=1,ltefield=MaxMerchants"`

	// Attempts per merchant before a version conflict is reported as a skip
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"`
}

// DocumentsConfig defines document review behaviour
type DocumentsConfig struct {
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"`
}

// QRCodeConfig defines QR code generation configuration
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size" validate:"omitempty,min=64,max=2048"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel" validate:"omitempty,oneof=L M Q H l m q h"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "local", "google" or "rabbitmq"
	Provider string `json:"provider" yaml:"provider" validate:"omitempty,oneof=local google rabbitmq"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint" validate:"omitempty,http_url"`

	// AMQP settings (for rabbitmq provider)
	AMQPURL    string `json:"amqpUrl" yaml:"amqpUrl"`
	Exchange   string `json:"exchange" yaml:"exchange"`
	RoutingKey string `json:"routingKey" yaml:"routingKey"`
	Queue      string `json:"queue" yaml:"queue"`

	// Audience expected on push tokens received by the mail worker
	PushAudience string `json:"pushAudience" yaml:"pushAudience"`

	// Per-attempt publish deadline; zero means 10s
	PublishTimeout time.Duration `json:"publishTimeout" yaml:"publishTimeout"`
}

// TokenPurgeConfig defines the setup-token cleanup schedule
type TokenPurgeConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Cron expression, e.g. "@hourly" or "0 3 * * *"
	Schedule string `json:"schedule" yaml:"schedule"`

	// How long consumed or expired tokens are kept before deletion
	Retention time.Duration `json:"retention" yaml:"retention"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	return cfg, nil
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}

// ApplyDefaults fills unset optional sections so callers never see nil pointers.
// Validate rejects settings the services cannot run with. Call it after ApplyDefaults.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.WithStack(err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s: %s %s", fe.Namespace(), fe.Tag(), fe.Param()))
	}

	return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
}

func (c *Config) ApplyDefaults() {
	if c.Auth == nil {
		c.Auth = &AuthConfig{}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}

	if c.PasswordStrength == nil {
		c.PasswordStrength = &PasswordStrengthConfig{
			MinLength:        8,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumbers:   true,
			RequireSpecial:   true,
		}
	}
	if c.PasswordStrength.SpecialCharacters == "" {
		c.PasswordStrength.SpecialCharacters = defaultSpecialCharacters
	}

	if c.Onboarding == nil {
		c.Onboarding = &OnboardingConfig{}
	}
	if c.Onboarding.TokenTTL <= 0 {
		c.Onboarding.TokenTTL = defaultTokenTTL
	}
	if c.Onboarding.TokenBytes <= 0 {
		c.Onboarding.TokenBytes = defaultTokenBytes
	}
	if c.Onboarding.TemporaryPasswordLength <= 0 {
		c.Onboarding.TemporaryPasswordLength = defaultTemporaryPasswordLength
	}
	if c.Onboarding.DefaultVerificationStatus == "" {
		c.Onboarding.DefaultVerificationStatus = defaultVerificationStatus
	}

	if c.Notification == nil {
		c.Notification = &NotificationConfig{}
	}
	if c.Notification.MaxRetries == 0 {
		c.Notification.MaxRetries = defaultNotificationRetries
	}
	if c.Notification.InitialBackoff <= 0 {
		c.Notification.InitialBackoff = defaultInitialBackoff
	}
	if c.Notification.MaxBackoff <= 0 {
		c.Notification.MaxBackoff = defaultMaxBackoff
	}
	if c.Notification.DispatchTimeout <= 0 {
		c.Notification.DispatchTimeout = defaultDispatchTimeout
	}

	if c.Bulk == nil {
		c.Bulk = &BulkConfig{}
	}
	if c.Bulk.MaxMerchants <= 0 {
		c.Bulk.MaxMerchants = defaultBulkMaxMerchants
	}
	if c.Bulk.Concurrency <= 0 {
		c.Bulk.Concurrency = defaultBulkConcurrency
	}
	if c.Bulk.MaxAttempts <= 0 {
		c.Bulk.MaxAttempts = defaultMaxAttempts
	}

	if c.Documents == nil {
		c.Documents = &DocumentsConfig{}
	}
	if c.Documents.MaxAttempts <= 0 {
		c.Documents.MaxAttempts = defaultMaxAttempts
	}

	if c.TokenPurge == nil {
		c.TokenPurge = &TokenPurgeConfig{}
	}
	if c.TokenPurge.Schedule == "" {
		c.TokenPurge.Schedule = defaultPurgeSchedule
	}
	if c.TokenPurge.Retention <= 0 {
		c.TokenPurge.Retention = defaultPurgeRetention
	}
}
