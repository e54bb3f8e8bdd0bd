package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type Config struct {
	Port int `env:"PORT" envDefault:"8080"`

	// Admin bootstrap: this user is created (or promoted) as admin on startup.
	AdminUserID string `env:"ADMIN_USER"`

	// Provider credentials and models
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`
	GoogleModel  string `env:"GOOGLE_MODEL" envDefault:"gemini-2.5-flash"`
	GroqAPIKey   string `env:"GROQ_API_KEY"`
	GroqBaseURL  string `env:"GROQ_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	GroqModel    string `env:"GROQ_MODEL" envDefault:"llama-3.3-70b-versatile"`

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`

	// Admission
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"60s"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"20"`
	StreamTimeout   time.Duration `env:"STREAM_TIMEOUT" envDefault:"120s"`

	// Storage
	DBPath      string `env:"DB_PATH" envDefault:"data/turbolearn.db"`
	LogFilePath string `env:"LOG_FILE_PATH" envDefault:"logs/interactions.jsonl"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}
