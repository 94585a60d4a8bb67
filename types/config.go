/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

// AppConfig represents the complete application configuration
type AppConfig struct {
	Verbose   bool            `mapstructure:"verbose"`
	Config    string          `mapstructure:"config"`
	DataDir   string          `mapstructure:"dataDir"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Store     StoreConfig     `mapstructure:"store" validate:"required"`
	Notion    NotionConfig    `mapstructure:"notion"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" validate:"required"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig holds transport settings
type ServerConfig struct {
	Port      int    `mapstructure:"port" validate:"min=1,max=65535"`
	Host      string `mapstructure:"host"`
	Transport string `mapstructure:"transport" validate:"required,oneof=http stdio"`
	// AllowedOrigins enables CORS on the HTTP transport for these origins.
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// StoreConfig selects the external document store backend
type StoreConfig struct {
	Backend    string `mapstructure:"backend" validate:"required,oneof=notion sqlite"`
	SQLitePath string `mapstructure:"sqlitePath" validate:"required_if=Backend sqlite"`
}

// NotionConfig holds the access token and collection identifiers
type NotionConfig struct {
	Token     string            `mapstructure:"token"`
	Databases CollectionsConfig `mapstructure:"databases"`
}

// CollectionsConfig names the collection (database) for each record kind.
// An empty ContentQueue means content drafts go to Artifacts.
type CollectionsConfig struct {
	RouterTasks     string `mapstructure:"routerTasks" validate:"required"`
	Artifacts       string `mapstructure:"artifacts" validate:"required"`
	Patterns        string `mapstructure:"patterns" validate:"required"`
	Sessions        string `mapstructure:"sessions" validate:"required"`
	SystemKnowledge string `mapstructure:"systemKnowledge" validate:"required"`
	ContentQueue    string `mapstructure:"contentQueue"`
}

// PolicyConfig points at optional policy overrides
type PolicyConfig struct {
	File     string `mapstructure:"file"`
	RulesDir string `mapstructure:"rulesDir"`
}

// RateLimitConfig holds limiter settings
type RateLimitConfig struct {
	// MaxPerMinute overrides the policy ceiling when non-zero.
	MaxPerMinute int    `mapstructure:"maxPerMinute" validate:"omitempty,min=1"`
	MaxCallers   int    `mapstructure:"maxCallers" validate:"min=1"`
	KeyBy        string `mapstructure:"keyBy" validate:"oneof=session tool session_tool"`
	RedisAddr    string `mapstructure:"redisAddr"`
}

// LifecycleConfig controls task transition guards
type LifecycleConfig struct {
	StrictTransitions bool `mapstructure:"strictTransitions"`
}

// AuditConfig enables the invocation audit log
type AuditConfig struct {
	Path string `mapstructure:"path"`
}

// TelemetryConfig enables anonymous usage events
type TelemetryConfig struct {
	PostHogKey string `mapstructure:"posthogKey"`
	Endpoint   string `mapstructure:"endpoint"`
	// SampleEvery sends one successful dispatch in N per operation.
	SampleEvery int `mapstructure:"sampleEvery" validate:"gte=0"`
}

// LogConfig controls the structured logger
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}
