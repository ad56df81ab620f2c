package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string
	DBDSN         string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AI provider
	AIProvider        string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
	OllamaBaseURL     string
	OllamaModel       string
	CompletionTimeout time.Duration

	// bot
	BotConcurrency int
	NotesEnabled   bool

	// ops api
	HTTPAddr       string
	AdminJWTSecret string

	LogLevel  string
	LogFormat string
}

// Load reads the environment, after merging an optional .env file from the
// working directory. Variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	// DSN demo:
	// app:apppass@tcp(127.0.0.1:3306)/social_bot?charset=utf8mb4&parseTime=true&loc=Local
	// sqlite:social-bot.db
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "sqlite:social-bot.db"
	}

	redisDB := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			redisDB = n
		}
	}

	aiProvider := strings.ToLower(strings.TrimSpace(os.Getenv("AI_PROVIDER")))
	if aiProvider == "" {
		aiProvider = "openai"
	}

	openAIBaseURL := os.Getenv("OPENAI_BASE_URL")
	if openAIBaseURL == "" {
		openAIBaseURL = "https://api.openai.com/v1"
	}
	openAIModel := os.Getenv("OPENAI_MODEL")
	if openAIModel == "" {
		openAIModel = "gpt-4o-mini"
	}

	openRouterBaseURL := os.Getenv("OPENROUTER_BASE_URL")
	if openRouterBaseURL == "" {
		openRouterBaseURL = "https://openrouter.ai/api/v1"
	}
	openRouterModel := os.Getenv("OPENROUTER_MODEL")
	if openRouterModel == "" {
		openRouterModel = "openrouter/auto"
	}

	ollamaBaseURL := os.Getenv("OLLAMA_BASE_URL")
	if ollamaBaseURL == "" {
		ollamaBaseURL = "http://localhost:11434"
	}
	ollamaModel := os.Getenv("OLLAMA_MODEL")
	if ollamaModel == "" {
		ollamaModel = "llama3:latest"
	}

	var completionTimeout time.Duration
	if v := os.Getenv("COMPLETION_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			completionTimeout = d
		}
	}

	notesEnabled := true
	if v := os.Getenv("NOTES_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			notesEnabled = b
		}
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return Config{
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DBDSN:         dsn,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		AIProvider:        aiProvider,
		OpenAIBaseURL:     openAIBaseURL,
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       openAIModel,
		OpenRouterBaseURL: openRouterBaseURL,
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   openRouterModel,
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),
		OllamaBaseURL:     ollamaBaseURL,
		OllamaModel:       ollamaModel,
		CompletionTimeout: completionTimeout,

		BotConcurrency: botConcurrency(),
		NotesEnabled:   notesEnabled,

		HTTPAddr:       os.Getenv("HTTP_ADDR"),
		AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),

		LogLevel:  logLevel,
		LogFormat: os.Getenv("LOG_FORMAT"),
	}
}

func botConcurrency() int {
	v := os.Getenv("BOT_CONCURRENCY")
	if v == "" {
		return 4
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 4
	}
	if n > 50 {
		return 50
	}
	return n
}
