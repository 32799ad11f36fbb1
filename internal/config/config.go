package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/credobot/credo/internal/reddit"
	"github.com/joho/godotenv"
)

// Load reads the .env file specified by CREDO_ENV (or .env by default),
// then loads the corresponding .secret file if it exists.
// All config is flat env vars read via os.Getenv after loading.
func Load() error {
	envFile := os.Getenv("CREDO_ENV")
	if envFile == "" {
		envFile = ".env"
	}

	// Load main env file (ignore error if file doesn't exist)
	_ = godotenv.Load(envFile)

	// Load secret sidecar if it exists
	_ = godotenv.Load(envFile + ".secret")

	return nil
}

func ServerPort() int {
	port, err := strconv.Atoi(os.Getenv("SERVER_PORT"))
	if err != nil {
		return 8080
	}
	return port
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

func OpenAIAPIKey() string {
	return os.Getenv("OPENAI_API_KEY")
}

// LLMProvider returns the configured LLM provider.
// Defaults to "openai" if not set. Valid values: openai, mock
func LLMProvider() string {
	p := os.Getenv("LLM_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// EmbeddingProvider returns the configured embedding provider.
// Defaults to "openai" if not set. Valid values: openai, mock
func EmbeddingProvider() string {
	p := os.Getenv("EMBEDDING_PROVIDER")
	if p == "" {
		return "openai"
	}
	return p
}

// RedditProvider returns the configured Reddit client provider.
// Defaults to "script" if not set. Valid values: script, mock
func RedditProvider() string {
	p := os.Getenv("REDDIT_PROVIDER")
	if p == "" {
		return "script"
	}
	return p
}

// RedditCredentials returns the script-app credentials for the Reddit API.
func RedditCredentials() reddit.Credentials {
	return reddit.Credentials{
		ClientID:     os.Getenv("REDDIT_CLIENT_ID"),
		ClientSecret: os.Getenv("REDDIT_CLIENT_SECRET"),
		Username:     os.Getenv("REDDIT_USERNAME"),
		Password:     os.Getenv("REDDIT_PASSWORD"),
		UserAgent:    redditUserAgent(),
	}
}

func redditUserAgent() string {
	ua := os.Getenv("REDDIT_USER_AGENT")
	if ua == "" {
		return "credo/0.1"
	}
	return ua
}

// DashboardTokenHash returns the sha256 hash of the dashboard bearer token.
func DashboardTokenHash() string {
	return os.Getenv("DASHBOARD_TOKEN_HASH")
}

// AgentPollInterval returns how often the agent loop scans subreddits.
// Defaults to 5 minutes.
func AgentPollInterval() time.Duration {
	d, err := time.ParseDuration(os.Getenv("AGENT_POLL_INTERVAL"))
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}

// ContextTokenBudget returns the token budget for context assembly.
// Defaults to 3000.
func ContextTokenBudget() int {
	budget, err := strconv.Atoi(os.Getenv("CONTEXT_TOKEN_BUDGET"))
	if err != nil || budget <= 0 {
		return 3000
	}
	return budget
}

// CORSAllowedOrigins returns the origins allowed to call the dashboard API.
// Defaults to "*".
func CORSAllowedOrigins() []string {
	raw := os.Getenv("CORS_ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if o := strings.TrimSpace(p); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func MigrationsPath() string {
	p := os.Getenv("MIGRATIONS_PATH")
	if p == "" {
		return "migrations"
	}
	return p
}

// RateLimitRPS returns requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

// RateLimitBurst returns the burst size for rate limiting.
// Defaults to 20 if not set.
func RateLimitBurst() int {
	burst, err := strconv.Atoi(os.Getenv("RATE_LIMIT_BURST"))
	if err != nil || burst <= 0 {
		return 20
	}
	return burst
}

// LogLevel returns the log level (debug, info, warn, error).
// Defaults to "info" if not set.
func LogLevel() string {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return "info"
	}
	return level
}
