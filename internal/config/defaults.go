// Package config loads the gateway configuration once at startup from flags,
// environment, an optional YAML file and .env, and validates it.
package config

import "github.com/spf13/viper"

const (
	// EnvPrefix prefixes every namespaced environment variable.
	EnvPrefix = "JENOS"

	// ConfigName is the base name of the optional config file.
	ConfigName = "jenos"

	DefaultPort       = 3847
	DefaultTransport  = "http"
	DefaultBackend    = "notion"
	DefaultMaxCallers = 10000
	DefaultKeyBy      = "session"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
)

// Default collection identifiers of the production workspace.
const (
	DefaultRouterTasksDB     = "f65e7d1486474bd88c0598add298f0d8"
	DefaultArtifactsDB       = "d425ea1f026c4ad997e458fe3fd6c5b3"
	DefaultPatternsDB        = "f1d4bb3548854086b099e368a5c2449b"
	DefaultSessionsDB        = "67f12bf0eafb4321aba88f922969bc90"
	DefaultSystemKnowledgeDB = "f5169ab773924c8ba93f185930c76c12"
)

// legacyEnv maps config keys to the unprefixed variables earlier
// deployments set. The JENOS_ form is always accepted too.
var legacyEnv = map[string]string{
	"server.port":                      "PORT",
	"server.transport":                 "TRANSPORT",
	"notion.token":                     "NOTION_TOKEN",
	"notion.databases.routerTasks":     "ROUTER_TASKS_DB",
	"notion.databases.artifacts":       "ARTIFACTS_DB",
	"notion.databases.patterns":        "PATTERNS_DB",
	"notion.databases.sessions":        "SESSIONS_DB",
	"notion.databases.systemKnowledge": "SYSTEM_KNOWLEDGE_DB",
	"notion.databases.contentQueue":    "CONTENT_QUEUE_DB",
}

// SetDefaults registers every default on v. Every key the config struct
// reads has a default so AutomaticEnv can see it during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("dataDir", "")

	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.host", "")
	v.SetDefault("server.transport", DefaultTransport)
	v.SetDefault("server.allowedOrigins", []string{})

	v.SetDefault("store.backend", DefaultBackend)
	v.SetDefault("store.sqlitePath", "")

	v.SetDefault("notion.token", "")
	v.SetDefault("notion.databases.routerTasks", DefaultRouterTasksDB)
	v.SetDefault("notion.databases.artifacts", DefaultArtifactsDB)
	v.SetDefault("notion.databases.patterns", DefaultPatternsDB)
	v.SetDefault("notion.databases.sessions", DefaultSessionsDB)
	v.SetDefault("notion.databases.systemKnowledge", DefaultSystemKnowledgeDB)
	v.SetDefault("notion.databases.contentQueue", "")

	v.SetDefault("policy.file", "")
	v.SetDefault("policy.rulesDir", "")

	// Zero defers to the policy's maxRequestsPerMinute.
	v.SetDefault("ratelimit.maxPerMinute", 0)
	v.SetDefault("ratelimit.maxCallers", DefaultMaxCallers)
	v.SetDefault("ratelimit.keyBy", DefaultKeyBy)
	v.SetDefault("ratelimit.redisAddr", "")

	v.SetDefault("lifecycle.strictTransitions", false)
	v.SetDefault("audit.path", "")
	v.SetDefault("telemetry.posthogKey", "")
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.sampleEvery", 1)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
}
