package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Stamp    StampConfig    `mapstructure:"stamp"`
	Viewer   ViewerConfig   `mapstructure:"viewer"`
	Summary  SummaryConfig  `mapstructure:"summary"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// StoreConfig holds the remote tabular store configuration
type StoreConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	BaseID    string        `mapstructure:"base_id"`
	APIKey    string        `mapstructure:"api_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
	BatchSize int           `mapstructure:"batch_size"`
	// Throttle spaces out sequential bulk writes to respect the store's
	// per-second request-rate ceiling.
	Throttle time.Duration `mapstructure:"throttle"`
}

// SchemaConfig maps logical field keys to the physical field names of the
// remote base. It is the sole contract between the join engine and the
// remote schema: renaming a remote column only requires editing this map.
type SchemaConfig struct {
	Tables   TablesConfig      `mapstructure:"tables"`
	Fields   map[string]string `mapstructure:"fields"`
	Status   StatusConfig      `mapstructure:"status"`
	Locale   string            `mapstructure:"locale"`
	Currency string            `mapstructure:"currency"`
}

// TablesConfig holds the remote table identifiers
type TablesConfig struct {
	Employees  string `mapstructure:"employees"`
	Approvals  string `mapstructure:"approvals"`
	Payments   string `mapstructure:"payments"`
	Contracts  string `mapstructure:"contracts"`
	Milestones string `mapstructure:"milestones"`
}

// StatusConfig holds the canonical status values as stored in the remote base
type StatusConfig struct {
	Waiting  string `mapstructure:"waiting"`
	Signed   string `mapstructure:"signed"`
	Rejected string `mapstructure:"rejected"`
	Delayed  string `mapstructure:"delayed"`
}

// AuthConfig holds session token configuration
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// DatabaseConfig holds the local action-log database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// StampConfig holds certification stamp generation configuration
type StampConfig struct {
	ImageServiceURL string `mapstructure:"image_service_url"`
	Width           int    `mapstructure:"width"`
	Height          int    `mapstructure:"height"`
}

// ViewerConfig holds attachment viewing configuration
type ViewerConfig struct {
	DocViewerURL    string   `mapstructure:"doc_viewer_url"`
	ImageExtensions []string `mapstructure:"image_extensions"`
}

// SummaryConfig holds the optional AI summary configuration
type SummaryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// requiredFieldKeys enumerates every logical field key the engine resolves
// through the schema map. Validation fails fast on a missing key instead of
// silently reading empty cells at runtime.
var requiredFieldKeys = []string{
	// employees
	"employeeName",
	"employeeEmail",
	"employeeDepartment",
	"employeePassword",
	// approvals
	"approvalStatus",
	"approvalAssignee",
	"approvalOrder",
	"approvalSerial",
	"approvalRejectReason",
	"approvalDelayReason",
	"approvalPaymentLink",
	"approvalContractLink",
	"approvalSignature",
	"approvalMilestoneNumber",
	"approvalMilestoneSection",
	"approvalMilestoneText",
	// payments
	"paymentAmount",
	"paymentProject",
	"paymentSupplier",
	"paymentDescription",
	"paymentOrderNumber",
	"paymentAttachments",
	"paymentMilestoneLink",
	"paymentMilestoneNumber",
	"paymentMilestoneSection",
	"paymentMilestoneText",
	// payment budget sub-record
	"budgetOriginal",
	"budgetUpdated",
	"budgetUtilized",
	"budgetThisAccount",
	"budgetRemaining",
	"budgetPercentUsed",
	// contracts
	"contractRecID",
	"contractDescription",
	"contractDate",
	"contractSum",
	"contractPaid",
	"contractBalance",
	"contractAttachments",
	"contractMilestoneLinks",
	// milestones
	"milestoneNumber",
	"milestoneSection",
	"milestoneText",
}

// RequiredFieldKeys returns the logical field keys the schema map must cover.
func RequiredFieldKeys() []string {
	keys := make([]string, len(requiredFieldKeys))
	copy(keys, requiredFieldKeys)
	return keys
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Store defaults
	viper.SetDefault("store.base_url", "https://api.airtable.com/v0")
	viper.SetDefault("store.timeout", 30*time.Second)
	viper.SetDefault("store.batch_size", 20)
	viper.SetDefault("store.throttle", 250*time.Millisecond)

	// Schema defaults
	viper.SetDefault("schema.locale", "he")
	viper.SetDefault("schema.currency", "₪")
	viper.SetDefault("schema.status.waiting", "ממתין לחתימה")
	viper.SetDefault("schema.status.signed", "נחתם")
	viper.SetDefault("schema.status.rejected", "נדחה")
	viper.SetDefault("schema.status.delayed", "מעוכב")

	// Auth defaults
	viper.SetDefault("auth.token_ttl", 12*time.Hour)

	// Database defaults
	viper.SetDefault("database.path", "data/signoff.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Stamp defaults
	viper.SetDefault("stamp.image_service_url", "https://placehold.co")
	viper.SetDefault("stamp.width", 360)
	viper.SetDefault("stamp.height", 140)

	// Viewer defaults
	viper.SetDefault("viewer.doc_viewer_url", "https://docs.google.com/viewer?url=%s")
	viper.SetDefault("viewer.image_extensions", []string{"jpg", "jpeg", "png", "gif", "webp", "bmp"})

	// Summary defaults
	viper.SetDefault("summary.enabled", false)
	viper.SetDefault("summary.model", "gpt-4o-mini")
	viper.SetDefault("summary.temperature", 0.2)
	viper.SetDefault("summary.max_tokens", 500)
	viper.SetDefault("summary.timeout", 60*time.Second)

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("store.api_key", "STORE_API_KEY")
	viper.BindEnv("store.base_id", "STORE_BASE_ID")
	viper.BindEnv("auth.jwt_secret", "AUTH_JWT_SECRET")
	viper.BindEnv("summary.api_key", "OPENAI_API_KEY")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Store.APIKey == "" {
		return fmt.Errorf("store.api_key is required")
	}
	if c.Store.BaseID == "" {
		return fmt.Errorf("store.base_id is required")
	}
	if c.Store.BatchSize <= 0 || c.Store.BatchSize > 20 {
		return fmt.Errorf("store.batch_size must be between 1 and 20, got %d", c.Store.BatchSize)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if err := c.Schema.Validate(); err != nil {
		return err
	}

	if c.Summary.Enabled && c.Summary.APIKey == "" {
		return fmt.Errorf("summary.api_key is required when summary.enabled is true")
	}

	return nil
}

// Validate checks that every table identifier and required field key is mapped
func (s *SchemaConfig) Validate() error {
	tables := map[string]string{
		"schema.tables.employees":  s.Tables.Employees,
		"schema.tables.approvals":  s.Tables.Approvals,
		"schema.tables.payments":   s.Tables.Payments,
		"schema.tables.contracts":  s.Tables.Contracts,
		"schema.tables.milestones": s.Tables.Milestones,
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if tables[name] == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	for _, key := range requiredFieldKeys {
		if s.Fields[key] == "" {
			return fmt.Errorf("schema.fields.%s is required", key)
		}
	}

	statuses := map[string]string{
		"schema.status.waiting":  s.Status.Waiting,
		"schema.status.signed":   s.Status.Signed,
		"schema.status.rejected": s.Status.Rejected,
		"schema.status.delayed":  s.Status.Delayed,
	}
	for name, value := range statuses {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	return nil
}
